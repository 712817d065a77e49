package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/reliquary/reliquary/internal/catalog"
	"github.com/reliquary/reliquary/internal/paths"
	"github.com/reliquary/reliquary/internal/upstream"
)

// Status bodies are kept bytewise stable; deployed clients grep for them.
const (
	bodyOK                     = `{"status":"ok"}`
	bodyNotConfigured          = `{"status":"error","reliquary not configured"}`
	bodyInvalidLocation        = `{"status":"error","invalid channel/index"}`
	bodyInvalidRelicName       = `{"status":"error","invalid relic name"}`
	bodyNoRelicName            = `{"status":"error","relic name not given"}`
	bodyIndexNotFound          = `{"status":"error","/channel/index not found"}`
	bodyChannelIndexNotFound   = `{"status":"error","channel/index not found"}`
	bodyPackageNotFound        = `{"status":"error","package not found"}`
	bodyPackageVersionNotFound = `{"status":"error","package/version not found"}`
	bodyNoUpstreamURL          = `{"status":"error","no upstream url given"}`
	bodyNoDist                 = `{"status":"error - no dist"}`
	bodyNoTarball              = `{"status":"error - no tarball"}`
	bodyNoVersions             = `{"status":"error - no versions"}`
	bodyBadUpstreamJSON        = `{"status":"error decoding of upstream json failed"}`
	bodyXSendfileUnsupported   = `{"status":"not implemented yet -- only nginx xsend support is enabled"}`
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// writeSortedJSON renders a registry document with two-space indent and
// sorted keys, the stable output format of the CommonJS endpoints.
func writeSortedJSON(w http.ResponseWriter, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Error("failed to encode registry document", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// locationError maps path validation failures onto the stable error bodies.
func locationError(w http.ResponseWriter, err error) {
	if errors.Is(err, paths.ErrNotConfigured) {
		writeJSON(w, http.StatusInternalServerError, bodyNotConfigured)
		return
	}
	what := ""
	var inv *paths.InvalidNameError
	var esc *paths.EscapeError
	switch {
	case errors.As(err, &inv):
		what = inv.What
	case errors.As(err, &esc):
		what = esc.What
	}
	if what == "relic name" {
		writeJSON(w, http.StatusInternalServerError, bodyInvalidRelicName)
		return
	}
	writeJSON(w, http.StatusInternalServerError, bodyInvalidLocation)
}

// lookupFailed answers 404 for missing rows and 500 for real store errors.
// An ambiguous row is a data-integrity problem worth logging, but to the
// client the resource is simply not addressable.
func lookupFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	var amb *catalog.AmbiguousError
	if errors.As(err, &amb) {
		slog.Error("ambiguous catalog row", "error", err)
		http.NotFound(w, r)
		return
	}
	slog.Error("catalog lookup failed", "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// upstreamError renders proxy failures. A non-200 upstream response keeps
// its status visible in the body; transport failures become a 502.
func upstreamError(w http.ResponseWriter, err error) {
	var se *upstream.StatusError
	if errors.As(err, &se) {
		writeJSON(w, http.StatusNotFound,
			fmt.Sprintf(`{"status":"error","upstream had error %d"}`, se.StatusCode))
		return
	}
	slog.Error("upstream request failed", "error", err)
	http.Error(w, "bad gateway", http.StatusBadGateway)
}

func isJSONDecodeError(err error) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syn) || errors.As(err, &typ)
}

// render writes an HTML page from the embedded templates.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// requestScheme guesses the external scheme, honoring a forwarding proxy.
func requestScheme(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// absoluteURL turns an API path into the absolute form embedded in pages
// and registry documents.
func absoluteURL(r *http.Request, path string) string {
	return fmt.Sprintf("%s://%s%s", requestScheme(r), r.Host, path)
}

// rawRelicURL is the absolute download URL for a stored relic.
func rawRelicURL(r *http.Request, channel, index, relic string) string {
	return absoluteURL(r, fmt.Sprintf("/api/v1/raw/%s/%s/%s",
		url.PathEscape(channel), url.PathEscape(index), url.PathEscape(relic)))
}
