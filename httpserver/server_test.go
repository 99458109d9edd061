package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/model-registry-backend/api"
	"github.com/ruteri/model-registry-backend/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) RegisterRoutes(r chi.Router) {
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.PathValue("id"))
	})
}

func newTestServer(t *testing.T, mutate func(cfg *api.HTTPServerConfig)) *Server {
	t.Helper()
	cfg := &api.HTTPServerConfig{
		ListenAddr: "127.0.0.1:0",
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := New(cfg, echoHandler{})
	require.NoError(t, err)
	return srv
}

func get(h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServer_MountsHandlers(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := get(srv.Handler(), "/items/abc", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc", rr.Body.String())

	rr = get(srv.Handler(), "/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_DrainUndrain(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rr := get(h, "/livez", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rr.Body.String())

	rr = get(h, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = get(h, "/drain", nil)
	assert.JSONEq(t, `{"status":"draining"}`, rr.Body.String())
	rr = get(h, "/drain", nil)
	assert.JSONEq(t, `{"status":"already draining"}`, rr.Body.String())

	rr = get(h, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = get(h, "/undrain", nil)
	assert.JSONEq(t, `{"status":"ready"}`, rr.Body.String())
	rr = get(h, "/undrain", nil)
	assert.JSONEq(t, `{"status":"already ready"}`, rr.Body.String())

	rr = get(h, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_RequestMetricsUseRoutePattern(t *testing.T) {
	srv := newTestServer(t, nil)
	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/{id}", "200")
	before := testutil.ToFloat64(counter)

	get(srv.Handler(), "/items/one", nil)
	get(srv.Handler(), "/items/two", nil)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestServer_CORS(t *testing.T) {
	origin := http.Header{"Origin": []string{"http://dashboard.local"}}

	disabled := newTestServer(t, nil)
	rr := get(disabled.Handler(), "/items/x", origin)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	allowAll := newTestServer(t, func(cfg *api.HTTPServerConfig) { cfg.EnableCORS = true })
	rr = get(allowAll.Handler(), "/items/x", origin)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	restricted := newTestServer(t, func(cfg *api.HTTPServerConfig) {
		cfg.EnableCORS = true
		cfg.CORSAllowedOrigins = []string{"http://dashboard.local"}
	})
	rr = get(restricted.Handler(), "/items/x", origin)
	assert.Equal(t, "http://dashboard.local", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = get(restricted.Handler(), "/items/x", http.Header{"Origin": []string{"http://evil.local"}})
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Pprof(t *testing.T) {
	srv := newTestServer(t, func(cfg *api.HTTPServerConfig) { cfg.EnablePprof = true })
	rr := get(srv.Handler(), "/debug/pprof/", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
