package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptbridge/internal/bridge"
	artifactcache "promptbridge/internal/cache/artifact"
	"promptbridge/internal/gateway/handler"
	artifactrepo "promptbridge/internal/gateway/repository/artifact"
)

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, _ bridge.Workflow, base *url.URL) (*bridge.Result, error) {
	return &bridge.Result{URLs: []string{bridge.PublicURL(base, "c-9.png")}}, nil
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

func newTestMux(t *testing.T) http.Handler {
	t.Helper()
	origin := artifactrepo.NewMemoryStore()
	require.NoError(t, origin.Put(context.Background(), "c-9.png", []byte("png")))
	cache := artifactcache.NewCachedStore(origin, artifactcache.DefaultCacheConfig())

	prompt, err := handler.NewPromptHandler(stubRunner{}, "", 1<<20)
	require.NoError(t, err)
	return NewMux(prompt, handler.NewImageHandler(cache), handler.NewHealthHandler(stubPinger{}), handler.NewDebugHandler(cache))
}

func TestMuxRoutes(t *testing.T) {
	srv := httptest.NewServer(newTestMux(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/prompt", "application/json", strings.NewReader(`{"prompt":{}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	for path, want := range map[string]int{
		"/images/c-9.png":    http.StatusOK,
		"/images/other.png":  http.StatusNotFound,
		"/health":            http.StatusOK,
		"/debug/cache-stats": http.StatusOK,
		"/nowhere":           http.StatusNotFound,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}

	resp, err = http.Get(srv.URL + "/prompt")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
