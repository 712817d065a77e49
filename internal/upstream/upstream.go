// Package upstream holds the clients for the registries proxied by the
// PyPI and CommonJS endpoints.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError reports a non-200 upstream response. Handlers surface the
// upstream status in their error body.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream had error %d", e.StatusCode)
}

// PyPI is an upstream Python package index. The simple API pages pass
// through untouched.
type PyPI interface {
	SimpleIndex(ctx context.Context) ([]byte, error)
	SimpleProject(ctx context.Context, pkg string) ([]byte, error)
}

// HTTPPyPI is a PyPI implementation over the upstream HTTP API.
type HTTPPyPI struct {
	Base   string // e.g. https://pypi.org
	Client *http.Client
}

func (r *HTTPPyPI) SimpleIndex(ctx context.Context) ([]byte, error) {
	return fetchRaw(ctx, r.Client, r.Base+"/simple/")
}

func (r *HTTPPyPI) SimpleProject(ctx context.Context, pkg string) ([]byte, error) {
	return fetchRaw(ctx, r.Client, fmt.Sprintf("%s/simple/%s/", r.Base, pkg))
}

// CommonJS is an upstream CommonJS/npm registry. Package documents come
// back as generic JSON so the proxy can rewrite tarball URLs without
// caring about the rest of the schema.
type CommonJS interface {
	All(ctx context.Context) ([]byte, error)
	Package(ctx context.Context, pkg string) (map[string]any, error)
	Version(ctx context.Context, pkg, version string) (map[string]any, error)
}

// HTTPCommonJS is a CommonJS implementation over the upstream HTTP API.
type HTTPCommonJS struct {
	Base   string // e.g. https://registry.npmjs.org
	Client *http.Client
}

func (r *HTTPCommonJS) All(ctx context.Context) ([]byte, error) {
	return fetchRaw(ctx, r.Client, r.Base+"/-/all")
}

func (r *HTTPCommonJS) Package(ctx context.Context, pkg string) (map[string]any, error) {
	return fetchJSON(ctx, r.Client, fmt.Sprintf("%s/%s/", r.Base, pkg))
}

func (r *HTTPCommonJS) Version(ctx context.Context, pkg, version string) (map[string]any, error) {
	return fetchJSON(ctx, r.Client, fmt.Sprintf("%s/%s/%s/", r.Base, pkg, version))
}

func fetchRaw(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	resp, err := get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func fetchJSON(ctx context.Context, client *http.Client, url string) (map[string]any, error) {
	resp, err := get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}
