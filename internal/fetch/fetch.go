// Package fetch pulls relics from an upstream registry into local storage
// the first time they are requested through a proxy index.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/cavaliergopher/grab/v3"

	"github.com/reliquary/reliquary/internal/catalog"
	"github.com/reliquary/reliquary/internal/paths"
)

// Catalog is the slice of the catalog store fetching needs.
type Catalog interface {
	IndexByNames(ctx context.Context, channel, index string) (*catalog.Index, error)
	RelicByName(ctx context.Context, indexID int64, name string) (*catalog.Relic, error)
	InsertRelic(ctx context.Context, indexID int64, name, mtime string, size int64) error
}

// Fetcher downloads missing relics and registers them in the catalog.
// Concurrent requests for the same relic share one download.
type Fetcher struct {
	cat      Catalog
	location string
	client   *grab.Client

	inflight sync.Map // map[string]*waiter keyed by destination path
}

// waiter lets every requester of an in-flight download share its outcome.
type waiter struct {
	done chan struct{}
	err  error
}

// New creates a Fetcher storing into the tree rooted at location.
func New(cat Catalog, location string, httpClient *http.Client) *Fetcher {
	return &Fetcher{
		cat:      cat,
		location: location,
		client:   &grab.Client{HTTPClient: httpClient},
	}
}

// FetchIfAbsent makes sure the named relic exists locally, downloading it
// from upstream if the catalog does not know it yet. A relic in an unknown
// channel or index is not fetched; proxying only fills indices created by a
// sweep.
func (f *Fetcher) FetchIfAbsent(ctx context.Context, channel, index, relic, upstream string) error {
	idx, err := f.cat.IndexByNames(ctx, channel, index)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = f.cat.RelicByName(ctx, idx.ID, relic)
	if err == nil {
		return nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return err
	}

	resolved, err := paths.Resolve(f.location, channel, index, relic)
	if err != nil {
		return err
	}

	w := &waiter{done: make(chan struct{})}
	if actual, loaded := f.inflight.LoadOrStore(resolved.Path, w); loaded {
		shared := actual.(*waiter)
		select {
		case <-shared.done:
			return shared.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer f.inflight.Delete(resolved.Path)

	w.err = f.download(ctx, idx.ID, relic, resolved, upstream)
	close(w.done)
	return w.err
}

func (f *Fetcher) download(ctx context.Context, indexID int64, relic string, resolved paths.Resolved, upstream string) error {
	if err := os.MkdirAll(resolved.Folder, 0755); err != nil {
		return err
	}

	req, err := grab.NewRequest(resolved.Path, upstream)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)

	resp := f.client.Do(req)
	<-resp.Done
	if err := resp.Err(); err != nil {
		// A failed transfer must not leave a partial file behind, or the
		// next sweep would index it.
		if rerr := os.Remove(resolved.Path); rerr != nil && !os.IsNotExist(rerr) {
			slog.Warn("failed to remove partial download", "path", resolved.Path, "error", rerr)
		}
		return fmt.Errorf("%s: %w", filepath.Base(resolved.Path), err)
	}

	fi, err := os.Stat(resolved.Path)
	if err != nil {
		return err
	}
	slog.Info("fetched relic from upstream", "relic", relic, "upstream", upstream, "bytes", fi.Size())
	return f.cat.InsertRelic(ctx, indexID, relic, catalog.FormatMTime(fi.ModTime()), fi.Size())
}
