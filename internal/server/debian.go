package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/reliquary/reliquary/internal/catalog"
	"github.com/reliquary/reliquary/internal/debrepo"
)

type debianItem struct {
	URL  string
	Text string
	Cls  string
}

type debianIndexData struct {
	PageTitle string
	Items     []debianItem
	ShowUpdir bool
}

// archFromDir strips the binary- prefix from a dist architecture directory.
func archFromDir(dir string) (string, bool) {
	arch, ok := strings.CutPrefix(dir, "binary-")
	if !ok || arch == "" {
		return "", false
	}
	return arch, true
}

func packagesContentType(comp debrepo.Compression) string {
	switch comp {
	case debrepo.CompressionGzip:
		return "application/gzip"
	case debrepo.CompressionBzip2:
		return "application/x-bzip2"
	default:
		return "text/plain"
	}
}

func (s *Server) renderDebianIndex(w http.ResponseWriter, title string, items []debianItem, updir bool) {
	sort.Slice(items, func(i, j int) bool { return items[i].Text < items[j].Text })
	s.render(w, "debian_index.html", debianIndexData{
		PageTitle: title,
		Items:     items,
		ShowUpdir: updir,
	})
}

// indexFolderItems lists every index of a channel as folder entries under
// the given base path segment ("dist" or "pool").
func (s *Server) indexFolderItems(r *http.Request, channel *catalog.Channel, base string) ([]debianItem, error) {
	indices, err := s.store.IndexesByChannel(r.Context(), channel.ID)
	if err != nil {
		return nil, err
	}
	items := make([]debianItem, 0, len(indices))
	for _, idx := range indices {
		items = append(items, debianItem{
			URL: absoluteURL(r, fmt.Sprintf("/api/v1/debian/%s/%s/%s/",
				url.PathEscape(channel.Name), base, url.PathEscape(idx.Name))),
			Text: idx.Name,
			Cls:  "folder",
		})
	}
	return items, nil
}

func (s *Server) debianChannelIndex(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	if _, err := s.store.ChannelByName(r.Context(), channel); err != nil {
		lookupFailed(w, r, err)
		return
	}
	items := []debianItem{
		{URL: absoluteURL(r, fmt.Sprintf("/api/v1/debian/%s/dist/", url.PathEscape(channel))), Text: "dist", Cls: "folder"},
		{URL: absoluteURL(r, fmt.Sprintf("/api/v1/debian/%s/pool/", url.PathEscape(channel))), Text: "pool", Cls: "folder"},
	}
	s.renderDebianIndex(w, fmt.Sprintf("Index of /%s", channel), items, false)
}

func (s *Server) debianDistRootIndex(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	channelobj, err := s.store.ChannelByName(r.Context(), channel)
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	items, err := s.indexFolderItems(r, channelobj, "dist")
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	s.renderDebianIndex(w, fmt.Sprintf("Index of /%s/dist/", channel), items, true)
}

func (s *Server) debianDistIndex(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	if _, err := s.store.IndexByNames(r.Context(), channel, index); err != nil {
		lookupFailed(w, r, err)
		return
	}
	base := fmt.Sprintf("/api/v1/debian/%s/dist/%s", url.PathEscape(channel), url.PathEscape(index))
	items := []debianItem{
		{URL: absoluteURL(r, base+"/main/"), Text: "main", Cls: "folder"},
		{URL: absoluteURL(r, base+"/Release"), Text: "Release", Cls: "file"},
	}
	s.renderDebianIndex(w, fmt.Sprintf("Index of /%s/dist/%s/", channel, index), items, true)
}

func (s *Server) debianCompIndex(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	idx, err := s.store.IndexByNames(r.Context(), channel, index)
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	arches, err := s.gen.Architectures(r.Context(), idx.ID)
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	items := make([]debianItem, 0, len(arches))
	for _, arch := range arches {
		items = append(items, debianItem{
			URL: absoluteURL(r, fmt.Sprintf("/api/v1/debian/%s/dist/%s/main/binary-%s/",
				url.PathEscape(channel), url.PathEscape(index), url.PathEscape(arch))),
			Text: "binary-" + arch,
			Cls:  "folder",
		})
	}
	s.renderDebianIndex(w, fmt.Sprintf("Index of /%s/dist/%s/main/", channel, index), items, true)
}

func (s *Server) debianArchIndex(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	arch, ok := archFromDir(r.PathValue("archdir"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, err := s.store.IndexByNames(r.Context(), channel, index); err != nil {
		lookupFailed(w, r, err)
		return
	}
	base := fmt.Sprintf("/api/v1/debian/%s/dist/%s/main/binary-%s",
		url.PathEscape(channel), url.PathEscape(index), url.PathEscape(arch))
	items := []debianItem{
		{URL: absoluteURL(r, base+"/Release"), Text: "Release", Cls: "file"},
		{URL: absoluteURL(r, base+"/Packages"), Text: "Packages", Cls: "file"},
		{URL: absoluteURL(r, base+"/Packages.gz"), Text: "Packages.gz", Cls: "file"},
		{URL: absoluteURL(r, base+"/Packages.bz2"), Text: "Packages.bz2", Cls: "file"},
	}
	s.renderDebianIndex(w, fmt.Sprintf("Index of /%s/dist/%s/main/binary-%s", channel, index, arch), items, true)
}

// debianArchRelease answers the per-architecture Release stub; it is cheap
// to build and never cached.
func (s *Server) debianArchRelease(w http.ResponseWriter, r *http.Request) {
	arch, ok := archFromDir(r.PathValue("archdir"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	arch = strings.ToLower(strings.TrimSpace(arch))
	if _, err := s.store.IndexByNames(r.Context(), r.PathValue("channel"), r.PathValue("index")); err != nil {
		lookupFailed(w, r, err)
		return
	}
	blob := s.gen.ArchRelease(arch)
	w.Header().Set("Content-Type", "text/plain")
	w.Write(blob.Data)
}

// debianArchPackages serves the Packages list in the requested compression,
// generating and caching it on first request.
func (s *Server) debianArchPackages(comp debrepo.Compression) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := r.PathValue("channel")
		index := r.PathValue("index")
		arch, ok := archFromDir(r.PathValue("archdir"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		arch = strings.ToLower(strings.TrimSpace(arch))

		if _, err := s.store.IndexByNames(r.Context(), channel, index); err != nil {
			lookupFailed(w, r, err)
			return
		}
		blob, err := s.gen.PackageIndex(r.Context(), channel, index, arch, comp, false)
		if err != nil {
			slog.Error("package index generation failed",
				"channel", channel, "index", index, "arch", arch, "compression", string(comp), "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", packagesContentType(comp))
		w.Write(blob.Data)
	}
}

func (s *Server) debianDistRelease(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")
	idx, err := s.store.IndexByNames(r.Context(), channel, index)
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	data, err := s.gen.DistRelease(r.Context(), idx.ID, channel, index)
	if err != nil {
		slog.Error("dist release generation failed", "channel", channel, "index", index, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write(data)
}

func (s *Server) debianPoolRootIndex(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	channelobj, err := s.store.ChannelByName(r.Context(), channel)
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	items, err := s.indexFolderItems(r, channelobj, "pool")
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	s.renderDebianIndex(w, fmt.Sprintf("Index of /%s/pool/", channel), items, true)
}

func (s *Server) debianPoolDistIndex(w http.ResponseWriter, r *http.Request) {
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
	items := make([]debianItem, 0, len(relics))
	for _, relic := range relics {
		items = append(items, debianItem{
			URL: absoluteURL(r, fmt.Sprintf("/api/v1/debian/%s/pool/%s/%s",
				url.PathEscape(channel), url.PathEscape(index), url.PathEscape(relic.Name))),
			Text: relic.Name,
			Cls:  "file",
		})
	}
	s.renderDebianIndex(w, fmt.Sprintf("Index of /%s/pool/%s/", channel, index), items, true)
}

func (s *Server) debianPoolPackage(w http.ResponseWriter, r *http.Request) {
	s.serveRelic(w, r, r.PathValue("channel"), r.PathValue("index"), r.PathValue("relic"))
}
