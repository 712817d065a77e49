package reindex

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay batches bursts of filesystem events, like a multi-file
// upload, into a single sweep.
const debounceDelay = 2 * time.Second

// Watch runs an initial sweep and then keeps resweeping whenever the storage
// tree changes, until the context is cancelled. Channel and index
// directories are watched individually since inotify is not recursive.
func (r *Reindexer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := r.addWatches(watcher); err != nil {
		return err
	}
	if err := r.Run(ctx); err != nil {
		return err
	}

	debounce := time.NewTimer(debounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			slog.Debug("storage changed", "path", event.Name, "op", event.Op.String())
			debounce.Reset(debounceDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		case <-debounce.C:
			if err := r.Run(ctx); err != nil {
				slog.Error("reindex failed", "error", err)
			}
			// New channel or index directories may have appeared.
			if err := r.addWatches(watcher); err != nil {
				slog.Warn("failed to refresh watches", "error", err)
			}
		}
	}
}

// addWatches (re)registers the root plus every channel and index directory.
// Adding an already watched directory is a no-op.
func (r *Reindexer) addWatches(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(r.location); err != nil {
		return err
	}
	channels, err := os.ReadDir(r.location)
	if err != nil {
		return err
	}
	for _, channel := range channels {
		if !channel.IsDir() {
			continue
		}
		channelPath := filepath.Join(r.location, channel.Name())
		if err := watcher.Add(channelPath); err != nil {
			slog.Warn("failed to watch channel", "path", channelPath, "error", err)
			continue
		}
		indices, err := os.ReadDir(channelPath)
		if err != nil {
			continue
		}
		for _, index := range indices {
			if !index.IsDir() {
				continue
			}
			indexPath := filepath.Join(channelPath, index.Name())
			if err := watcher.Add(indexPath); err != nil {
				slog.Warn("failed to watch index", "path", indexPath, "error", err)
			}
		}
	}
	return nil
}
