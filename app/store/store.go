package store

import (
	"context"
	"time"
)

type (
	// Counter is the state of a fixed window for one key.
	Counter struct {
		Count   int64
		ResetAt time.Time
	}

	// Incrementer counts one observation of key. The first observation
	// of a window creates the counter at 1 with an expiry of window.
	Incrementer interface {
		Increment(ctx context.Context, key string, window time.Duration) (Counter, error)
	}

	Deleter interface {
		Del(context.Context, string) error
	}

	Store interface {
		Incrementer
		Deleter
	}
)
