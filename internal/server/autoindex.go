package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/reliquary/reliquary/internal/catalog"
)

type homeData struct {
	Realm   string
	Indices []catalog.IndexRef
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	refs, err := s.store.AllIndexes(r.Context())
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Channel+refs[i].Index < refs[j].Channel+refs[j].Index
	})
	s.render(w, "home.html", homeData{Realm: s.cfg.Realm, Indices: refs})
}

type autoindexData struct {
	DisplayPath string
	Relics      []template.HTML
}

// autoindex renders an nginx style directory listing of an index.
func (s *Server) autoindex(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	index := r.PathValue("index")

	idx, err := s.store.IndexByNames(r.Context(), channel, index)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, bodyIndexNotFound)
			return
		}
		lookupFailed(w, r, err)
		return
	}
	relics, err := s.store.RelicsByIndex(r.Context(), idx.ID)
	if err != nil {
		lookupFailed(w, r, err)
		return
	}
	if len(relics) == 0 {
		writeJSON(w, http.StatusNotFound, bodyIndexNotFound)
		return
	}

	lines := make([]template.HTML, 0, len(relics))
	for _, relic := range relics {
		lines = append(lines, template.HTML(autoindexLine(r, channel, index, relic)))
	}
	s.render(w, "autoindex.html", autoindexData{
		DisplayPath: fmt.Sprintf("/autoindex/%s/%s", channel, index),
		Relics:      lines,
	})
}

// autoindexLine lays out one relic the way nginx autoindex does: anchor,
// then the mtime right-aligned so that it ends at column 79 past the name,
// then the size in a 20-character column.
func autoindexLine(r *http.Request, channel, index string, relic catalog.Relic) string {
	mtime := "-"
	if secs, err := strconv.ParseFloat(relic.MTime, 64); err == nil {
		mtime = time.Unix(int64(secs), 0).UTC().Format("02-Jan-2006 15:04")
	}
	return fmt.Sprintf("<a href=\"%s\">%s</a>%s%s",
		rawRelicURL(r, channel, index, relic.Name),
		relic.Name,
		rjust(mtime, 79-len(relic.Name)),
		rjust(strconv.FormatInt(relic.Size, 10), 20))
}

func rjust(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
