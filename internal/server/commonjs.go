package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/reliquary/reliquary/relname"
)

// commonjsRoot lists every distinct package in the index, mapped to its
// package document URL.
func (s *Server) commonjsRoot(w http.ResponseWriter, r *http.Request) {
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

	uniq := make(map[string]string)
	for _, relic := range relics {
		name, _, _ := relname.SplitCommonJS(relic.Name)
		if _, ok := uniq[name]; !ok {
			uniq[name] = absoluteURL(r, fmt.Sprintf("/api/v1/commonjs/%s/%s/%s/",
				url.PathEscape(channel), url.PathEscape(index), url.PathEscape(name)))
		}
	}
	writeSortedJSON(w, uniq)
}

// commonjsPackage builds the package document from stored tarballs. The
// name prefix scan may overmatch, so each candidate is decoded and compared
// against the requested package before it contributes a version.
func (s *Server) commonjsPackage(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	pkg := r.PathValue("package")

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

	versions := make(map[string]any)
	for _, relic := range relics {
		if !strings.HasPrefix(relic.Name, pkg) {
			continue
		}
		name, version, _ := relname.SplitCommonJS(relic.Name)
		if version == "" || !commonjsNameEqual(name, pkg) {
			continue
		}
		versions[version] = map[string]any{
			"name":    name,
			"version": version,
			"dist": map[string]any{
				"tarball": rawRelicURL(r, channel, index, relic.Name),
			},
		}
	}
	writeSortedJSON(w, map[string]any{"name": pkg, "versions": versions})
}

// commonjsVersion answers a single version document, or an empty object
// when the index holds no matching tarball.
func (s *Server) commonjsVersion(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	pkg := r.PathValue("package")
	version := r.PathValue("version")

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

	doc := make(map[string]any)
	for _, relic := range relics {
		if !strings.HasPrefix(relic.Name, pkg) {
			continue
		}
		name, pversion, _ := relname.SplitCommonJS(relic.Name)
		if pversion != version || !commonjsNameEqual(name, pkg) {
			continue
		}
		doc["name"] = name
		doc["version"] = version
		doc["dist"] = map[string]any{
			"tarball": rawRelicURL(r, channel, index, relic.Name),
		}
	}
	writeSortedJSON(w, doc)
}

func commonjsNameEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// commonjsProxyRoot passes the upstream registry dump through untouched.
func (s *Server) commonjsProxyRoot(w http.ResponseWriter, r *http.Request) {
	if s.npm == nil {
		writeJSON(w, http.StatusNotFound, bodyChannelIndexNotFound)
		return
	}
	body, err := s.npm.All(r.Context())
	if err != nil {
		upstreamError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write(body)
}

// commonjsProxyPackage rewrites every dist.tarball URL in the upstream
// package document so installs resolve through the proxy download route,
// which fills local storage on first request.
func (s *Server) commonjsProxyPackage(w http.ResponseWriter, r *http.Request) {
	if s.npm == nil {
		writeJSON(w, http.StatusNotFound, bodyPackageNotFound)
		return
	}
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	pkg := r.PathValue("package")

	doc, err := s.npm.Package(r.Context(), pkg)
	if err != nil {
		if isJSONDecodeError(err) {
			writeJSON(w, http.StatusInternalServerError, bodyBadUpstreamJSON)
			return
		}
		upstreamError(w, err)
		return
	}

	versions, ok := doc["versions"].(map[string]any)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, bodyNoVersions)
		return
	}
	for version, obj := range versions {
		vdoc, ok := obj.(map[string]any)
		if !ok {
			writeJSON(w, http.StatusInternalServerError, bodyNoDist)
			return
		}
		if !s.rewriteTarball(w, r, vdoc, channel, index, pkg, version) {
			return
		}
	}
	writeSortedJSON(w, doc)
}

// commonjsProxyVersion is the single-version variant of the package proxy.
func (s *Server) commonjsProxyVersion(w http.ResponseWriter, r *http.Request) {
	if s.npm == nil {
		writeJSON(w, http.StatusNotFound, bodyPackageVersionNotFound)
		return
	}
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	pkg := r.PathValue("package")
	version := r.PathValue("version")

	doc, err := s.npm.Version(r.Context(), pkg, version)
	if err != nil {
		if isJSONDecodeError(err) {
			writeJSON(w, http.StatusInternalServerError, bodyBadUpstreamJSON)
			return
		}
		upstreamError(w, err)
		return
	}
	if !s.rewriteTarball(w, r, doc, channel, index, pkg, version) {
		return
	}
	writeSortedJSON(w, doc)
}

// rewriteTarball swaps the dist.tarball URL of one version document for the
// proxy download URL carrying the upstream location as a query parameter.
// On failure the error response has been written and false is returned.
func (s *Server) rewriteTarball(w http.ResponseWriter, r *http.Request, doc map[string]any, channel, index, pkg, version string) bool {
	dist, ok := doc["dist"].(map[string]any)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, bodyNoDist)
		return false
	}
	tarball, ok := dist["tarball"].(string)
	if !ok || tarball == "" {
		writeJSON(w, http.StatusInternalServerError, bodyNoTarball)
		return false
	}
	tarball = strings.ReplaceAll(tarball, `\`, "")
	dist["tarball"] = absoluteURL(r, fmt.Sprintf(
		"/api/v1/commonjs/proxy/package/%s/%s/%s/%s?upstream=%s",
		url.PathEscape(channel), url.PathEscape(index),
		url.PathEscape(pkg), url.PathEscape(version),
		url.QueryEscape(tarball)))
	return true
}

// commonjsProxyDownload fetches the tarball from the upstream named in the
// query on first request, then serves it from local storage under the
// conventional <package>-<version>.tgz name.
func (s *Server) commonjsProxyDownload(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	pkg := r.PathValue("package")
	version := r.PathValue("version")

	upstreamURL := r.URL.Query().Get("upstream")
	if upstreamURL == "" {
		writeJSON(w, http.StatusInternalServerError, bodyNoUpstreamURL)
		return
	}

	relicName := fmt.Sprintf("%s-%s.tgz", pkg, version)
	if err := s.fetcher.FetchIfAbsent(r.Context(), channel, index, relicName, upstreamURL); err != nil {
		slog.Warn("proxy fetch failed", "relic", relicName, "upstream", upstreamURL, "error", err)
	}
	s.serveRelic(w, r, channel, index, relicName)
}
