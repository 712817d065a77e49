// Package app wires the runtime components from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/reliquary/reliquary/internal/catalog"
	"github.com/reliquary/reliquary/internal/config"
	"github.com/reliquary/reliquary/internal/debrepo"
	"github.com/reliquary/reliquary/internal/fetch"
	"github.com/reliquary/reliquary/internal/reindex"
	"github.com/reliquary/reliquary/internal/server"
	"github.com/reliquary/reliquary/internal/upstream"
)

// Application holds the initialized runtime components and configuration
type Application struct {
	Config     *config.Config
	Store      *catalog.Store
	Engine     *debrepo.Engine
	Fetcher    *fetch.Fetcher
	Reindexer  *reindex.Reindexer
	HTTPClient *http.Client
}

// New creates and initializes a new Application from configuration
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	store, err := catalog.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	// Shared by the upstream registry clients and the relic downloader.
	// Proxy downloads can be large, so the timeout is generous.
	httpClient := &http.Client{Timeout: 10 * time.Minute}

	engine := debrepo.NewEngine(store)

	return &Application{
		Config:     cfg,
		Store:      store,
		Engine:     engine,
		Fetcher:    fetch.New(store, cfg.Location, httpClient),
		Reindexer:  reindex.New(store, engine, cfg.Location, cfg.Workers.Extract),
		HTTPClient: httpClient,
	}, nil
}

// Shutdown releases the catalog connection pool.
func (a *Application) Shutdown() {
	if a.Store != nil {
		a.Store.Close()
	}
}

// Serve runs the HTTP API until the context is cancelled. Proxy surfaces
// are only wired when an upstream base is configured.
func (a *Application) Serve(ctx context.Context) error {
	var pypi upstream.PyPI
	if a.Config.Upstream.PyPI != "" {
		pypi = &upstream.HTTPPyPI{Base: a.Config.Upstream.PyPI, Client: a.HTTPClient}
	}
	var npm upstream.CommonJS
	if a.Config.Upstream.CommonJS != "" {
		npm = &upstream.HTTPCommonJS{Base: a.Config.Upstream.CommonJS, Client: a.HTTPClient}
	}

	srv, err := server.New(a.Config, a.Store, a.Engine, a.Fetcher, pypi, npm)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	return srv.Run(ctx)
}

// Reindex sweeps the storage tree into the catalog once, or keeps watching
// it when watch is set.
func (a *Application) Reindex(ctx context.Context, watch bool) error {
	if watch {
		return a.Reindexer.Watch(ctx)
	}
	return a.Reindexer.Run(ctx)
}
