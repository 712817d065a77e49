package server

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/reliquary/reliquary/relname"
)

type simpleData struct {
	Lines []template.HTML
}

// pypiSimple renders the PEP-503 root page: one link per distinct package
// name found in the index.
func (s *Server) pypiSimple(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")

	idx, err := s.store.IndexByNames(r.Context(), channel, index)
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	relics, err := s.store.RelicsByIndex(r.Context(), idx.ID)
	if err != nil {
		lookupFailed(w, r, err)
		return
	}

	uniq := make(map[string]struct{})
	for _, relic := range relics {
		pkg, _, _ := relname.SplitPyPI(relic.Name)
		uniq[relname.NormalizePyPI(pkg)] = struct{}{}
	}
	lines := make([]string, 0, len(uniq))
	for name := range uniq {
		lines = append(lines, fmt.Sprintf("<a href='%s'>%s</a><br/>", name, name))
	}
	sort.Strings(lines)

	s.renderSimple(w, lines)
}

// pypiSimplePackage renders the project page: every relic whose decoded
// name normalizes to the requested package, linked for direct install.
func (s *Server) pypiSimplePackage(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	pkg := relname.NormalizePyPI(r.PathValue("package"))

	idx, err := s.store.IndexByNames(r.Context(), channel, index)
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	relics, err := s.store.RelicsByIndex(r.Context(), idx.ID)
	if err != nil {
		lookupFailed(w, r, err)
		return
	}

	type match struct {
		name string
		norm string
	}
	var matched []match
	for _, relic := range relics {
		name, _, _ := relname.SplitPyPI(relic.Name)
		norm := relname.NormalizePyPI(name)
		if norm == pkg {
			matched = append(matched, match{name: relic.Name, norm: norm})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].norm < matched[j].norm })

	lines := make([]string, 0, len(matched))
	for _, m := range matched {
		lines = append(lines, fmt.Sprintf("<a href='%s' rel='internal'>%s</a><br/>",
			rawRelicURL(r, channel, index, m.name), m.name))
	}
	s.renderSimple(w, lines)
}

func (s *Server) renderSimple(w http.ResponseWriter, lines []string) {
	html := make([]template.HTML, len(lines))
	for i, l := range lines {
		html[i] = template.HTML(l)
	}
	s.render(w, "pypi_simple.html", simpleData{Lines: html})
}

// pypiProxySimple passes the upstream simple index through untouched.
func (s *Server) pypiProxySimple(w http.ResponseWriter, r *http.Request) {
	if s.pypi == nil {
		writeJSON(w, http.StatusNotFound, bodyChannelIndexNotFound)
		return
	}
	body, err := s.pypi.SimpleIndex(r.Context())
	if err != nil {
		upstreamError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write(body)
}

func (s *Server) pypiProxySimplePackage(w http.ResponseWriter, r *http.Request) {
	if s.pypi == nil {
		writeJSON(w, http.StatusNotFound, bodyPackageNotFound)
		return
	}
	body, err := s.pypi.SimpleProject(r.Context(), r.PathValue("package"))
	if err != nil {
		upstreamError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write(body)
}

// pypiProxyPackage fetches a distribution from the upstream package store
// on first request, then serves it from local storage. The hash fragment
// pip appends to the filename is not part of the stored relic name.
func (s *Server) pypiProxyPackage(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	pkg := r.PathValue("package")

	base := s.cfg.Upstream.PyPI
	if base == "" {
		writeJSON(w, http.StatusNotFound, bodyPackageNotFound)
		return
	}

	relicName, _, _ := strings.Cut(pkg, "#")
	upstreamURL := fmt.Sprintf("%s/packages/%s/%s/%s/%s",
		base, r.PathValue("parta"), r.PathValue("partb"), r.PathValue("hash"), pkg)

	if err := s.fetcher.FetchIfAbsent(r.Context(), channel, index, relicName, upstreamURL); err != nil {
		slog.Warn("proxy fetch failed", "relic", relicName, "upstream", upstreamURL, "error", err)
	}
	s.serveRelic(w, r, channel, index, relicName)
}
