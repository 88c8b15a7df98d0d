package ratelimit

import (
	"context"
	"fmt"

	"github.com/mpraski/quota/app/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Limiter is a fixed window rate limiter. Every evaluation counts, including
// the ones that are denied, so the counter keeps growing past the limit
// until the window resets.
type Limiter struct {
	store store.Incrementer
}

var (
	_ Evaluator = (*Limiter)(nil)

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_decisions_total",
		Help: "The total number of rate limit decisions",
	}, []string{"outcome"})
	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quota_evaluation_duration_seconds",
		Help:    "The histogram of rate limit evaluation duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

func New(s store.Incrementer) *Limiter {
	return &Limiter{store: s}
}

func (l *Limiter) Evaluate(ctx context.Context, r Request) (Decision, error) {
	timer := prometheus.NewTimer(evaluationDuration)
	defer timer.ObserveDuration()

	c, err := l.store.Increment(ctx, r.Key, r.Window)
	if err != nil {
		decisionsTotal.WithLabelValues("error").Inc()
		return Decision{}, fmt.Errorf("failed to count request for key %q: %w", r.Key, err)
	}

	d := decide(r.Limit, c)

	if d.Success {
		decisionsTotal.WithLabelValues("allow").Inc()
	} else {
		decisionsTotal.WithLabelValues("deny").Inc()
	}

	return d, nil
}

func decide(limit int64, c store.Counter) Decision {
	remaining := limit - c.Count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Success:   c.Count <= limit,
		Limit:     limit,
		Remaining: remaining,
		Reset:     c.ResetAt,
	}
}
