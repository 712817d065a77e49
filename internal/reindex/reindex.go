// Package reindex reconciles the catalog with the storage tree. A sweep
// marks every row dirty, revalidates what it finds on disk, deletes what is
// left over, and regenerates the Debian metadata cache.
package reindex

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/reliquary/reliquary/internal/catalog"
	"github.com/reliquary/reliquary/internal/debrepo"
)

// Catalog is the slice of the catalog store a sweep needs.
type Catalog interface {
	MarkAllDirty(ctx context.Context) error
	DeleteDirty(ctx context.Context) error
	UpsertChannel(ctx context.Context, name string) (int64, error)
	UpsertIndex(ctx context.Context, channelID int64, name string) (int64, error)
	UpsertRelic(ctx context.Context, indexID int64, name, mtime string, size int64) (int64, error)
	UpsertDebInfo(ctx context.Context, info *catalog.DebInfo) error
	AllIndexes(ctx context.Context) ([]catalog.IndexRef, error)
}

// Generator regenerates the cached Packages variants after a sweep.
type Generator interface {
	Architectures(ctx context.Context, indexID int64) ([]string, error)
	PackageIndex(ctx context.Context, channel, index, arch string, comp debrepo.Compression, force bool) (*debrepo.Blob, error)
}

// Reindexer walks the storage tree and keeps the catalog in sync with it.
type Reindexer struct {
	cat      Catalog
	gen      Generator
	location string
	workers  uint
}

// New creates a Reindexer over the storage root at location. Control file
// extraction runs on up to workers goroutines per sweep.
func New(cat Catalog, gen Generator, location string, workers uint) *Reindexer {
	if workers == 0 {
		workers = 1
	}
	return &Reindexer{cat: cat, gen: gen, location: location, workers: workers}
}

// Run performs one full sweep. Problems with individual relics are logged
// and skipped so one broken file cannot hold up the rest of the tree.
func (r *Reindexer) Run(ctx context.Context) error {
	start := time.Now()
	if err := r.cat.MarkAllDirty(ctx); err != nil {
		return err
	}

	pool := pond.NewPool(int(r.workers), pond.WithContext(ctx), pond.WithoutPanicRecovery())
	group := pool.NewGroup()

	channels, err := os.ReadDir(r.location)
	if err != nil {
		return err
	}
	for _, channel := range channels {
		if !channel.IsDir() {
			continue
		}
		if err := r.sweepChannel(ctx, group, channel.Name()); err != nil {
			return err
		}
	}

	group.Wait()
	pool.StopAndWait()

	if err := r.cat.DeleteDirty(ctx); err != nil {
		return err
	}
	if err := r.Pregenerate(ctx); err != nil {
		return err
	}

	slog.Info("reindex complete", "location", r.location, "duration", time.Since(start))
	return nil
}

// sweepChannel and sweepIndex keep the per-level catalog rows in step with
// the directories on disk.

func (r *Reindexer) sweepChannel(ctx context.Context, group pond.TaskGroup, channel string) error {
	channelID, err := r.cat.UpsertChannel(ctx, channel)
	if err != nil {
		return err
	}
	channelPath := filepath.Join(r.location, channel)
	indices, err := os.ReadDir(channelPath)
	if err != nil {
		return err
	}
	for _, index := range indices {
		if !index.IsDir() {
			continue
		}
		if err := r.sweepIndex(ctx, group, channelID, channelPath, index.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reindexer) sweepIndex(ctx context.Context, group pond.TaskGroup, channelID int64, channelPath, index string) error {
	indexID, err := r.cat.UpsertIndex(ctx, channelID, index)
	if err != nil {
		return err
	}
	indexPath := filepath.Join(channelPath, index)
	relics, err := os.ReadDir(indexPath)
	if err != nil {
		return err
	}
	for _, relic := range relics {
		if relic.IsDir() {
			continue
		}
		name := relic.Name()
		path := filepath.Join(indexPath, name)

		fi, err := relic.Info()
		if err != nil {
			slog.Error("failed to stat relic", "path", path, "error", err)
			continue
		}
		relicID, err := r.cat.UpsertRelic(ctx, indexID, name, catalog.FormatMTime(fi.ModTime()), fi.Size())
		if err != nil {
			slog.Error("failed to index relic", "path", path, "error", err)
			continue
		}

		// Debian archives carry control metadata worth extracting up front
		// so package index generation does not have to open archives.
		if strings.HasSuffix(name, ".deb") {
			group.Submit(func() {
				r.indexDeb(ctx, path, index, name, relicID)
			})
		}
	}
	return nil
}

func (r *Reindexer) indexDeb(ctx context.Context, path, index, name string, relicID int64) {
	info, err := ExtractDebInfo(path, index, name, relicID)
	if err != nil {
		slog.Error("failed to extract deb info", "path", path, "error", err)
		return
	}
	slog.Info("adding deb info", "relic", name)
	if err := r.cat.UpsertDebInfo(ctx, info); err != nil {
		slog.Error("failed to store deb info", "path", path, "error", err)
	}
}

// Pregenerate rebuilds every cached Packages variant so the first client
// request after a sweep does not pay for generation.
func (r *Reindexer) Pregenerate(ctx context.Context) error {
	refs, err := r.cat.AllIndexes(ctx)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		arches, err := r.gen.Architectures(ctx, ref.IndexID)
		if err != nil {
			slog.Error("failed to enumerate architectures",
				"channel", ref.Channel, "index", ref.Index, "error", err)
			continue
		}
		for _, arch := range arches {
			// The uncompressed variant goes first so the compressed ones
			// derive from the fresh body.
			for _, comp := range debrepo.Compressions {
				if _, err := r.gen.PackageIndex(ctx, ref.Channel, ref.Index, arch, comp, true); err != nil {
					slog.Error("failed to pregenerate package index",
						"channel", ref.Channel, "index", ref.Index,
						"arch", arch, "compression", string(comp), "error", err)
				}
			}
		}
	}
	return nil
}
