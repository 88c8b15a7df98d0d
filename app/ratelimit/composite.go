package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EvaluateAll evaluates every request concurrently and reduces the
// decisions with Reduce.
func (l *Limiter) EvaluateAll(ctx context.Context, rs ...Request) (Decision, error) {
	var (
		group, gctx = errgroup.WithContext(ctx)
		decisions   = make([]Decision, len(rs))
	)

	for i := range rs {
		i := i

		group.Go(func() error {
			d, err := l.Evaluate(gctx, rs[i])
			if err != nil {
				return err
			}

			decisions[i] = d

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate rate limits: %w", err)
	}

	return Reduce(decisions), nil
}

// Reduce returns the first denied decision unchanged. When every decision
// succeeded it returns the most conservative combination: the lowest limit
// and remaining quota and the latest reset.
func Reduce(ds []Decision) Decision {
	if len(ds) == 0 {
		return Decision{Success: true}
	}

	for _, d := range ds {
		if !d.Success {
			return d
		}
	}

	r := ds[0]

	for _, d := range ds[1:] {
		if d.Limit < r.Limit {
			r.Limit = d.Limit
		}

		if d.Remaining < r.Remaining {
			r.Remaining = d.Remaining
		}

		if d.Reset.After(r.Reset) {
			r.Reset = d.Reset
		}
	}

	return r
}
