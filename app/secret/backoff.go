package secret

import (
	"context"
	"errors"
	"time"
)

type BackoffSource struct {
	tries   int
	backoff time.Duration
	source  Source
}

var _ Source = (*BackoffSource)(nil)

func NewBackoffSource(tries int, backoff time.Duration, source Source) *BackoffSource {
	if tries < 1 {
		tries = 1
	}

	return &BackoffSource{tries: tries, backoff: backoff, source: source}
}

// Get retries the source until it succeeds, reports a missing secret or
// runs out of tries.
func (s *BackoffSource) Get(ctx context.Context, name string) (Secret, error) {
	var (
		secret []byte
		err    error
	)

	for i := 0; i < s.tries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff):
			}
		}

		if secret, err = s.source.Get(ctx, name); err == nil || errors.Is(err, ErrSecretNotFound) {
			return secret, err
		}
	}

	return nil, err
}
