package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gcpacer/pkg/observability"
)

func serve(t *testing.T, handler http.Handler, path string) (int, map[string]string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return rec.Code, body
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	t.Parallel()

	code, body := serve(t, observability.HealthHandler(), "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyHandler_AllChecksPass(t *testing.T) {
	t.Parallel()

	pass := func(context.Context) error { return nil }
	handler := observability.ReadyHandler(
		observability.ReadyCheck{Name: "a", Check: pass},
		observability.ReadyCheck{Name: "b", Check: pass},
	)

	code, body := serve(t, handler, "/readyz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyHandler_NamesFirstFailure(t *testing.T) {
	t.Parallel()

	handler := observability.ReadyHandler(
		observability.ReadyCheck{Name: "ok", Check: func(context.Context) error { return nil }},
		observability.ReadyCheck{Name: "event_loop", Check: func(context.Context) error { return errors.New("stopped") }},
	)

	code, body := serve(t, handler, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])
	assert.Equal(t, "event_loop", body["failed"])
	assert.Equal(t, "stopped", body["error"])
}

func TestDiagnosticsServer_ServesAndShutsDown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(rw, "gcpacer_test 1\n")
	})

	srv, err := observability.NewDiagnosticsServer(ctx, "127.0.0.1:0", metrics, nil)
	require.NoError(t, err)

	served := make(chan error, 1)

	go func() { served <- srv.Serve(ctx) }()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, getErr := http.Get("http://" + srv.Addr() + path) //nolint:noctx // test request.
		require.NoError(t, getErr)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	cancel()

	select {
	case err = <-served:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("diagnostics server did not stop")
	}
}
