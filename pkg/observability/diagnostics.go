package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const diagnosticsHeaderTimeout = 5 * time.Second

// DiagnosticsServer serves /healthz, /readyz, and, when a metrics handler is
// given, /metrics.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// NewDiagnosticsServer listens on addr and mounts the probe endpoints.
// Call Serve to start answering requests.
func NewDiagnosticsServer(
	ctx context.Context,
	addr string,
	metricsHandler http.Handler,
	logger *slog.Logger,
	checks ...ReadyCheck,
) (*DiagnosticsServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(checks...))

	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: diagnosticsHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	return &DiagnosticsServer{server: srv, listener: listener, logger: logger}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Serve answers requests until ctx is done, then shuts the server down.
// It returns ctx.Err() after a clean shutdown.
func (d *DiagnosticsServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticsHeaderTimeout)
		defer cancel()

		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("diagnostics server shutdown failed", "error", err)
		}
	}()

	d.logger.InfoContext(ctx, "serving diagnostics", slog.String("addr", d.Addr()))

	err := d.server.Serve(d.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}

	return fmt.Errorf("diagnostics server: %w", err)
}
