// Package server exposes the reliquary HTTP API under /api/v1/: raw relic
// up/download, autoindex pages, the PEP-503 simple index, the CommonJS
// registry and the Debian repository layout, plus proxy variants that fill
// storage from an upstream on first request.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reliquary/reliquary/internal/catalog"
	"github.com/reliquary/reliquary/internal/config"
	"github.com/reliquary/reliquary/internal/debrepo"
	"github.com/reliquary/reliquary/internal/upstream"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Store is the slice of the catalog store the handlers need.
type Store interface {
	ChannelByName(ctx context.Context, name string) (*catalog.Channel, error)
	IndexByNames(ctx context.Context, channel, index string) (*catalog.Index, error)
	IndexesByChannel(ctx context.Context, channelID int64) ([]catalog.Index, error)
	RelicsByIndex(ctx context.Context, indexID int64) ([]catalog.Relic, error)
	AllIndexes(ctx context.Context) ([]catalog.IndexRef, error)
}

// Generator produces the Debian repository metadata.
type Generator interface {
	PackageIndex(ctx context.Context, channel, index, arch string, comp debrepo.Compression, force bool) (*debrepo.Blob, error)
	ArchRelease(arch string) *debrepo.Blob
	Architectures(ctx context.Context, indexID int64) ([]string, error)
	DistRelease(ctx context.Context, indexID int64, channel, index string) ([]byte, error)
}

// Fetcher fills storage from an upstream on proxy misses.
type Fetcher interface {
	FetchIfAbsent(ctx context.Context, channel, index, relic, upstream string) error
}

// Server carries the handler dependencies.
type Server struct {
	cfg     *config.Config
	store   Store
	gen     Generator
	fetcher Fetcher
	pypi    upstream.PyPI
	npm     upstream.CommonJS
	auth    *authenticator
	tmpl    *template.Template
}

// New assembles a Server. The upstream clients may be nil when no proxy
// bases are configured; the proxy endpoints then answer 404.
func New(cfg *config.Config, store Store, gen Generator, fetcher Fetcher, pypi upstream.PyPI, npm upstream.CommonJS) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:     cfg,
		store:   store,
		gen:     gen,
		fetcher: fetcher,
		pypi:    pypi,
		npm:     npm,
		auth:    newAuthenticator(cfg.Realm, cfg.Credentials()),
		tmpl:    tmpl,
	}, nil
}

// parseTemplates loads the embedded HTML templates with sprig functions
func parseTemplates() (*template.Template, error) {
	tmpl := template.New("").Funcs(sprig.FuncMap())
	return tmpl.ParseFS(templatesFS, "templates/*.html")
}

// Routes builds the API mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// ui
	mux.HandleFunc("GET /api/v1/{$}", s.home)

	mux.Handle("GET /metrics", promhttp.Handler())

	// basic api
	mux.HandleFunc("PUT /api/v1/raw/{channel}/{index}/{relic}", s.auth.requirePut(s.putRelic))
	mux.HandleFunc("GET /api/v1/raw/{channel}/{index}/{relic}", s.getRelic)

	// autoindex (nginx autogenerated index page compatible)
	mux.HandleFunc("GET /api/v1/autoindex/{channel}/{index}/{$}", s.autoindex)

	// python package index (PEP-503 compliant), proxy and self-hosted.
	// The proxy and self-hosted patterns overlap ambiguously for a channel
	// literally named "proxy", so the subtree dispatches by prefix before
	// pattern matching.
	proxyMux := http.NewServeMux()
	proxyMux.HandleFunc("GET /api/v1/python/proxy/{channel}/{index}/simple/{$}", s.pypiProxySimple)
	proxyMux.HandleFunc("GET /api/v1/python/proxy/{channel}/{index}/simple/{package}/{$}", s.pypiProxySimplePackage)
	proxyMux.HandleFunc("GET /api/v1/python/proxy/{channel}/{index}/packages/{parta}/{partb}/{hash}/{package}", s.pypiProxyPackage)
	selfMux := http.NewServeMux()
	selfMux.HandleFunc("GET /api/v1/python/{channel}/{index}/simple/{$}", s.pypiSimple)
	selfMux.HandleFunc("GET /api/v1/python/{channel}/{index}/simple/{package}/{$}", s.pypiSimplePackage)
	mux.HandleFunc("/api/v1/python/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/v1/python/proxy/") {
			proxyMux.ServeHTTP(w, r)
			return
		}
		selfMux.ServeHTTP(w, r)
	})

	// commonjs registry, proxy and self-hosted
	mux.HandleFunc("GET /api/v1/commonjs/proxy/{channel}/{index}/{$}", s.commonjsProxyRoot)
	mux.HandleFunc("GET /api/v1/commonjs/proxy/{channel}/{index}/{package}/{$}", s.commonjsProxyPackage)
	mux.HandleFunc("GET /api/v1/commonjs/proxy/{channel}/{index}/{package}/{version}/{$}", s.commonjsProxyVersion)
	mux.HandleFunc("GET /api/v1/commonjs/proxy/package/{channel}/{index}/{package}/{version}", s.commonjsProxyDownload)
	mux.HandleFunc("GET /api/v1/commonjs/{channel}/{index}/{$}", s.commonjsRoot)
	mux.HandleFunc("GET /api/v1/commonjs/{channel}/{index}/{package}/{$}", s.commonjsPackage)
	mux.HandleFunc("GET /api/v1/commonjs/{channel}/{index}/{package}/{version}/{$}", s.commonjsVersion)

	// debian repository layout
	mux.HandleFunc("GET /api/v1/debian/{channel}/{$}", s.debianChannelIndex)
	mux.HandleFunc("GET /api/v1/debian/{channel}/dist/{$}", s.debianDistRootIndex)
	mux.HandleFunc("GET /api/v1/debian/{channel}/dist/{index}/{$}", s.debianDistIndex)
	mux.HandleFunc("GET /api/v1/debian/{channel}/dist/{index}/Release", s.debianDistRelease)
	mux.HandleFunc("GET /api/v1/debian/{channel}/dist/{index}/main/{$}", s.debianCompIndex)
	mux.HandleFunc("GET /api/v1/debian/{channel}/dist/{index}/main/{archdir}/{$}", s.debianArchIndex)
	mux.HandleFunc("GET /api/v1/debian/{channel}/dist/{index}/main/{archdir}/Release", s.debianArchRelease)
	mux.HandleFunc("GET /api/v1/debian/{channel}/dist/{index}/main/{archdir}/Packages", s.debianArchPackages(debrepo.CompressionNone))
	mux.HandleFunc("GET /api/v1/debian/{channel}/dist/{index}/main/{archdir}/Packages.gz", s.debianArchPackages(debrepo.CompressionGzip))
	mux.HandleFunc("GET /api/v1/debian/{channel}/dist/{index}/main/{archdir}/Packages.bz2", s.debianArchPackages(debrepo.CompressionBzip2))
	mux.HandleFunc("GET /api/v1/debian/{channel}/pool/{$}", s.debianPoolRootIndex)
	mux.HandleFunc("GET /api/v1/debian/{channel}/pool/{index}/{$}", s.debianPoolDistIndex)
	mux.HandleFunc("GET /api/v1/debian/{channel}/pool/{index}/{relic}", s.debianPoolPackage)

	return mux
}

// Run serves the API until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Serve.Host, s.cfg.Serve.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server is ready", "url", fmt.Sprintf("http://%s/api/v1/", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("failed to start server: %w", err)
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		slog.Info("server stopped gracefully")
	}
	return nil
}
