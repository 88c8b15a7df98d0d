package ratelimit

import (
	"context"
	"time"
)

type (
	Evaluator interface {
		Evaluate(context.Context, Request) (Decision, error)
		EvaluateAll(context.Context, ...Request) (Decision, error)
	}

	Request struct {
		Key    string
		Limit  int64
		Window time.Duration
	}

	Decision struct {
		Success   bool
		Limit     int64
		Remaining int64
		Reset     time.Time
	}

	// Dimension namespaces keys of one kind, e.g. client addresses.
	Dimension string
)

const (
	IP     Dimension = "ip"
	Email  Dimension = "email"
	Header Dimension = "header"
)

// Key builds the namespaced key "<dimension>:<value>".
func Key(d Dimension, value string) string {
	return string(d) + ":" + value
}

// RetryAfter is the time left in the window of d.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if r := d.Reset.Sub(now); r > 0 {
		return r
	}

	return 0
}
