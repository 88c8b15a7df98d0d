package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quota_store_fallbacks_total",
		Help: "The total number of increments served by the fallback store",
	})
	sweepRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quota_sweep_removed_total",
		Help: "The total number of expired counters removed from the memory store",
	})
)
