package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hellofresh/health-go/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultCheckTimeout = 2 * time.Second

var ErrShuttingDown = errors.New("server is shutting down")

type (
	// Pinger is implemented by stores reachable over the network.
	Pinger interface {
		Ping(context.Context) error
	}

	// Readiness reports whether the main server accepts traffic.
	Readiness struct{ ready int32 }
)

func (r *Readiness) Set(ready bool) {
	var v int32
	if ready {
		v = 1
	}

	atomic.StoreInt32(&r.ready, v)
}

func (r *Readiness) check(context.Context) error {
	if atomic.LoadInt32(&r.ready) == 1 {
		return nil
	}

	return ErrShuttingDown
}

// NewHealth builds the /healthz handler. A failing store ping is reported
// but does not fail the check, since requests fall back to memory.
func NewHealth(component, version string, r *Readiness, p Pinger) (http.Handler, error) {
	checks := []health.Config{{
		Name:    "server",
		Timeout: defaultCheckTimeout,
		Check:   r.check,
	}}

	if p != nil {
		checks = append(checks, health.Config{
			Name:      "redis",
			Timeout:   defaultCheckTimeout,
			SkipOnErr: true,
			Check:     p.Ping,
		})
	}

	h, err := health.New(
		health.WithComponent(health.Component{Name: component, Version: version}),
		health.WithChecks(checks...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize health checks: %w", err)
	}

	return h.Handler(), nil
}

func NewObservability(config Config, healthz http.Handler) *Endpoint {
	router := http.NewServeMux()
	router.Handle("/healthz", healthz)
	router.Handle("/metrics", promhttp.Handler())

	return newEndpoint(config, router)
}
