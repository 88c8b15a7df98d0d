package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

type (
	// DemotionPolicy decides when a TieredStore serves a call from its
	// fallback instead of its primary.
	DemotionPolicy interface {
		// UsePrimary reports whether the primary should be attempted.
		UsePrimary() bool
		// Demote reports whether a primary failure is served by the fallback.
		// When false the error is returned to the caller.
		Demote(error) bool
		// Recovered is called after the primary served a call.
		Recovered()
	}

	// DemoteOnError demotes the failing call only. The next call tries the
	// primary again.
	DemoteOnError struct{}

	// CooldownPolicy demotes on any error and keeps the primary out of
	// rotation until the cooldown elapsed since the last failure.
	CooldownPolicy struct {
		mu       sync.Mutex
		cooldown time.Duration
		now      func() time.Time
		failedAt time.Time
	}

	// TieredStore routes increments to a primary store and falls back to a
	// secondary one when the primary fails.
	//
	// A key that flips between tiers is counted independently in each of
	// them for the duration of its window.
	TieredStore struct {
		primary  Store
		fallback Store
		policy   DemotionPolicy
		degraded int32
	}
)

var (
	_ Store          = (*TieredStore)(nil)
	_ DemotionPolicy = DemoteOnError{}
	_ DemotionPolicy = (*CooldownPolicy)(nil)
)

func (DemoteOnError) UsePrimary() bool { return true }

func (DemoteOnError) Demote(error) bool { return true }

func (DemoteOnError) Recovered() {}

func NewCooldownPolicy(cooldown time.Duration, now func() time.Time) *CooldownPolicy {
	if now == nil {
		now = time.Now
	}

	return &CooldownPolicy{cooldown: cooldown, now: now}
}

func (p *CooldownPolicy) UsePrimary() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.failedAt.IsZero() || !p.now().Before(p.failedAt.Add(p.cooldown))
}

func (p *CooldownPolicy) Demote(error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failedAt = p.now()

	return true
}

func (p *CooldownPolicy) Recovered() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failedAt = time.Time{}
}

func NewTieredStore(primary, fallback Store, policy DemotionPolicy) *TieredStore {
	if policy == nil {
		policy = DemoteOnError{}
	}

	return &TieredStore{primary: primary, fallback: fallback, policy: policy}
}

func (t *TieredStore) Increment(ctx context.Context, key string, window time.Duration) (Counter, error) {
	if t.policy.UsePrimary() {
		c, err := t.primary.Increment(ctx, key, window)
		if err == nil {
			t.policy.Recovered()
			t.setDegraded(false)

			return c, nil
		}

		if !t.policy.Demote(err) {
			return Counter{}, fmt.Errorf("failed to increment primary store: %w", err)
		}

		log.WithError(err).WithField("key", key).Warn("quota store unavailable, using fallback store")
	}

	t.setDegraded(true)
	fallbacksTotal.Inc()

	return t.fallback.Increment(ctx, key, window)
}

// Del removes key from both tiers so a reset holds whichever tier serves
// the next call.
func (t *TieredStore) Del(ctx context.Context, key string) error {
	var errPrimary error
	if err := t.primary.Del(ctx, key); err != nil {
		errPrimary = fmt.Errorf("failed to delete key from primary store: %w", err)
	}

	if err := t.fallback.Del(ctx, key); err != nil {
		return fmt.Errorf("failed to delete key from fallback store: %w", err)
	}

	return errPrimary
}

// Degraded reports whether the last increment was served by the fallback.
func (t *TieredStore) Degraded() bool {
	return atomic.LoadInt32(&t.degraded) == 1
}

func (t *TieredStore) setDegraded(v bool) {
	var i int32
	if v {
		i = 1
	}

	atomic.StoreInt32(&t.degraded, i)
}
