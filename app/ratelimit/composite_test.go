package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mpraski/quota/app/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce(t *testing.T) {
	var (
		t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		t1 = t0.Add(time.Hour)
	)

	tests := []struct {
		name string
		in   []Decision
		want Decision
	}{
		{
			name: "empty",
			want: Decision{Success: true},
		},
		{
			name: "first fails",
			in: []Decision{
				{Success: false, Limit: 10, Remaining: 0, Reset: t0},
				{Success: true, Limit: 3, Remaining: 1, Reset: t1},
			},
			want: Decision{Success: false, Limit: 10, Remaining: 0, Reset: t0},
		},
		{
			name: "second fails",
			in: []Decision{
				{Success: true, Limit: 10, Remaining: 9, Reset: t1},
				{Success: false, Limit: 3, Remaining: 0, Reset: t0},
			},
			want: Decision{Success: false, Limit: 3, Remaining: 0, Reset: t0},
		},
		{
			name: "both fail",
			in: []Decision{
				{Success: false, Limit: 10, Remaining: 0, Reset: t1},
				{Success: false, Limit: 3, Remaining: 0, Reset: t0},
			},
			want: Decision{Success: false, Limit: 10, Remaining: 0, Reset: t1},
		},
		{
			name: "all succeed",
			in: []Decision{
				{Success: true, Limit: 10, Remaining: 2, Reset: t0},
				{Success: true, Limit: 3, Remaining: 1, Reset: t1},
				{Success: true, Limit: 5, Remaining: 4, Reset: t0},
			},
			want: Decision{Success: true, Limit: 3, Remaining: 1, Reset: t1},
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(tt.in))
		})
	}
}

func TestLimiter_EvaluateAll(t *testing.T) {
	var (
		ctx   = context.Background()
		clock = newFakeClock()
		l     = New(store.NewMemoryStore(clock.Now))
		ip    = Request{Key: Key(IP, "1.2.3.4"), Limit: 5, Window: time.Hour}
		email = Request{Key: Key(Email, "a@b.c"), Limit: 2, Window: 15 * time.Minute}
	)

	d, err := l.EvaluateAll(ctx, ip, email)
	require.NoError(t, err)
	assert.Equal(t, Decision{
		Success:   true,
		Limit:     2,
		Remaining: 1,
		Reset:     clock.Now().Add(time.Hour),
	}, d)

	_, err = l.EvaluateAll(ctx, ip, email)
	require.NoError(t, err)

	d, err = l.EvaluateAll(ctx, ip, email)
	require.NoError(t, err)
	assert.Equal(t, Decision{
		Success:   false,
		Limit:     2,
		Remaining: 0,
		Reset:     clock.Now().Add(15 * time.Minute),
	}, d, "the failing email decision is returned verbatim")
}

// barrierStore holds every Increment until all expected callers entered.
type barrierStore struct {
	wg *sync.WaitGroup
}

func (s barrierStore) Increment(_ context.Context, _ string, window time.Duration) (store.Counter, error) {
	s.wg.Done()
	s.wg.Wait()

	return store.Counter{Count: 1, ResetAt: time.Now().Add(window)}, nil
}

func TestLimiter_EvaluateAllConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)

	done := make(chan Decision, 1)

	go func() {
		d, err := New(barrierStore{wg: &wg}).EvaluateAll(context.Background(),
			Request{Key: Key(IP, "1.2.3.4"), Limit: 5, Window: time.Minute},
			Request{Key: Key(Email, "a@b.c"), Limit: 3, Window: time.Minute},
		)
		assert.NoError(t, err)
		done <- d
	}()

	select {
	case d := <-done:
		assert.True(t, d.Success)
		assert.Equal(t, int64(3), d.Limit)
		assert.Equal(t, int64(2), d.Remaining)
	case <-time.After(5 * time.Second):
		t.Fatal("requests were not evaluated concurrently")
	}
}

func TestLimiter_EvaluateAllError(t *testing.T) {
	errDown := errors.New("down")

	_, err := New(brokenStore{err: errDown}).EvaluateAll(context.Background(),
		Request{Key: "a", Limit: 1, Window: time.Second},
		Request{Key: "b", Limit: 1, Window: time.Second},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDown))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ip:1.2.3.4", Key(IP, "1.2.3.4"))
	assert.Equal(t, "email:a@b.c", Key(Email, "a@b.c"))
}
