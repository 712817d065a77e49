package server

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/reliquary/reliquary/internal/paths"
)

// suffixAliases rewrites combined suffixes before type detection.
var suffixAliases = map[string]string{
	".tgz":  ".tar.gz",
	".taz":  ".tar.gz",
	".tz":   ".tar.gz",
	".tbz2": ".tar.bz2",
	".txz":  ".tar.xz",
}

// encodingByExt names the transfer encoding of a compression extension,
// reported in Content-Encoding rather than the content type.
var encodingByExt = map[string]string{
	".gz":  "gzip",
	".bz2": "bzip2",
	".xz":  "xz",
}

var typeByExt = map[string]string{
	".tar":  "application/x-tar",
	".zip":  "application/zip",
	".deb":  "application/vnd.debian.binary-package",
	".txt":  "text/plain",
	".html": "text/html",
	".json": "application/json",
	".xml":  "text/xml",
	".pdf":  "application/pdf",
}

// guessType resolves a download name to a MIME type and transfer encoding:
// combined suffixes expand first, then compression extensions strip off
// into the encoding, then the remaining extension picks the type.
func guessType(name string) (mimeType, encoding string) {
	base := strings.ToLower(filepath.Base(name))
	for alias, repl := range suffixAliases {
		if strings.HasSuffix(base, alias) {
			base = strings.TrimSuffix(base, alias) + repl
			break
		}
	}
	ext := filepath.Ext(base)
	if enc, ok := encodingByExt[ext]; ok {
		encoding = enc
		base = strings.TrimSuffix(base, ext)
		ext = filepath.Ext(base)
	}
	// Gzipped tarballs report the compressed type; pip and npm expect
	// application/x-gzip for .tgz downloads.
	if ext == ".tar" && encoding == "gzip" {
		return "application/x-gzip", encoding
	}
	if t, ok := typeByExt[ext]; ok {
		return t, encoding
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t, encoding
	}
	return "application/octet-stream", encoding
}

// serveRelic delivers a stored relic as an attachment. With xsendfile
// enabled the response only carries the header telling the frontend which
// file to stream.
func (s *Server) serveRelic(w http.ResponseWriter, r *http.Request, channel, index, relic string) {
	resolved, err := paths.Resolve(s.cfg.Location, channel, index, relic)
	if err != nil {
		locationError(w, err)
		return
	}

	fi, err := os.Stat(resolved.Path)
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		slog.Error("failed to stat relic", "path", resolved.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if s.cfg.XSendfile.Enabled && s.cfg.XSendfile.Frontend != "nginx" {
		writeJSON(w, http.StatusOK, bodyXSendfileUnsupported)
		return
	}

	mimeType, encoding := guessType(relic)
	h := w.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", relic))
	if encoding != "" {
		h.Set("Content-Encoding", encoding)
	}

	if s.cfg.XSendfile.Enabled {
		// The frontend streams the file and sets the length itself; the
		// response here carries only the redirect header.
		h.Set("X-Accel-Redirect", resolved.Path)
		w.WriteHeader(http.StatusOK)
		return
	}
	h.Set("Content-Length", strconv.FormatInt(fi.Size(), 10))

	f, err := os.Open(resolved.Path)
	if err != nil {
		slog.Error("failed to open relic", "path", resolved.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("relic download interrupted", "path", resolved.Path, "error", err)
	}
}

func (s *Server) getRelic(w http.ResponseWriter, r *http.Request) {
	s.serveRelic(w, r, r.PathValue("channel"), r.PathValue("index"), r.PathValue("relic"))
}

// putRelic stores an uploaded relic. The catalog is not touched here; the
// next sweep picks the file up.
func (s *Server) putRelic(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	relic := r.PathValue("relic")
	if relic == "" {
		writeJSON(w, http.StatusInternalServerError, bodyNoRelicName)
		return
	}

	resolved, err := paths.Resolve(s.cfg.Location, channel, index, relic)
	if err != nil {
		locationError(w, err)
		return
	}

	if err := os.MkdirAll(resolved.Folder, 0755); err != nil {
		slog.Error("failed to create relic folder", "folder", resolved.Folder, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	f, err := os.Create(resolved.Path)
	if err != nil {
		slog.Error("failed to create relic", "path", resolved.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	if _, err := io.Copy(f, r.Body); err != nil {
		slog.Error("failed to store relic", "path", resolved.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	slog.Info("relic stored", "channel", channel, "index", index, "relic", relic)
	writeJSON(w, http.StatusOK, bodyOK)
}
