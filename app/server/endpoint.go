package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type (
	Config struct {
		Address         string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		IdleTimeout     time.Duration
		ShutdownTimeout time.Duration
	}

	// Endpoint is an HTTP server which knows how long it may take to drain.
	Endpoint struct {
		*http.Server
		shutdownTimeout time.Duration
	}
)

func newEndpoint(config Config, handler http.Handler) *Endpoint {
	return &Endpoint{
		Server: &http.Server{
			Addr:         config.Address,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
			Handler:      handler,
		},
		shutdownTimeout: config.ShutdownTimeout,
	}
}

// NewMain serves the proxied traffic.
func NewMain(config Config, handler http.Handler) *Endpoint {
	return newEndpoint(config, handler)
}

// Serve listens until the endpoint is stopped. A stopped endpoint is not
// an error.
func (e *Endpoint) Serve() error {
	if err := e.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to listen on %s: %w", e.Addr, err)
	}

	return nil
}

// Stop drains open connections, giving up after the shutdown timeout when
// one is configured.
func (e *Endpoint) Stop(ctx context.Context) error {
	if e.shutdownTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.shutdownTimeout)
		defer cancel()
	}

	e.SetKeepAlivesEnabled(false)

	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to gracefully shutdown server on %s: %w", e.Addr, err)
	}

	return nil
}
