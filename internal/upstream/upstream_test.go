package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPPyPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/simple/":
			fmt.Fprint(w, "<html>index</html>")
		case "/simple/requests/":
			fmt.Fprint(w, "<html>requests</html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := &HTTPPyPI{Base: srv.URL, Client: srv.Client()}
	ctx := context.Background()

	body, err := r.SimpleIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<html>index</html>", string(body))

	body, err = r.SimpleProject(ctx, "requests")
	require.NoError(t, err)
	assert.Equal(t, "<html>requests</html>", string(body))

	_, err = r.SimpleProject(ctx, "missing")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestHTTPCommonJS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/left-pad/":
			fmt.Fprint(w, `{"name":"left-pad","versions":{"1.3.0":{"dist":{"tarball":"https://example.com/left-pad-1.3.0.tgz"}}}}`)
		case "/left-pad/1.3.0/":
			fmt.Fprint(w, `{"name":"left-pad","version":"1.3.0","dist":{"tarball":"https://example.com/left-pad-1.3.0.tgz"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := &HTTPCommonJS{Base: srv.URL, Client: srv.Client()}
	ctx := context.Background()

	doc, err := r.Package(ctx, "left-pad")
	require.NoError(t, err)
	assert.Equal(t, "left-pad", doc["name"])
	versions, ok := doc["versions"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, versions, "1.3.0")

	doc, err = r.Version(ctx, "left-pad", "1.3.0")
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", doc["version"])

	_, err = r.Package(ctx, "missing")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}
