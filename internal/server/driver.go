package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"kinetic/pkg/kinetic"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultDrainTimeout      = 10 * time.Second
)

// DriverOption mutates HTTP driver configuration.
type DriverOption func(*Driver)

// WithDriverLogger overrides the default logger.
func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(driver *Driver) {
		if logger != nil {
			driver.logger = logger
		}
	}
}

// WithDrainTimeout bounds graceful connection draining on shutdown.
func WithDrainTimeout(timeout time.Duration) DriverOption {
	return func(driver *Driver) {
		if timeout > 0 {
			driver.drainTimeout = timeout
		}
	}
}

// Driver runs the HTTP server under kernel supervision. It publishes no
// events; the kernel only owns its lifecycle.
type Driver struct {
	name         string
	addr         string
	handler      http.Handler
	logger       *slog.Logger
	drainTimeout time.Duration
}

// NewDriver wraps an HTTP handler as a kernel driver.
func NewDriver(name, addr string, handler http.Handler, options ...DriverOption) *Driver {
	driver := &Driver{
		name:         name,
		addr:         addr,
		handler:      handler,
		logger:       slog.Default(),
		drainTimeout: defaultDrainTimeout,
	}
	for _, option := range options {
		option(driver)
	}

	return driver
}

// Name returns the configured driver instance identifier.
func (d *Driver) Name() string {
	return d.name
}

// Start serves until context cancellation, then drains connections.
func (d *Driver) Start(ctx context.Context, _ kinetic.EventSink) error {
	httpServer := &http.Server{
		Addr:              d.addr,
		Handler:           d.handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()
	d.logger.InfoContext(ctx, "http server started", "driver", d.name, "addr", d.addr)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server %s: %w", d.name, err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.drainTimeout)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("http server %s drain: %w", d.name, err)
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server %s: %w", d.name, err)
	}

	return ctx.Err()
}

// Shutdown releases driver resources. Draining happens in Start.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.logger.InfoContext(ctx, "http server stopped", "driver", d.name)

	return nil
}

var _ kinetic.Driver = (*Driver)(nil)
