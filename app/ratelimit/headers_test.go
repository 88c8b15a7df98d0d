package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecision_Headers(t *testing.T) {
	var (
		loc = time.FixedZone("CET", 3600)
		d   = Decision{
			Success:   false,
			Limit:     3,
			Remaining: 0,
			Reset:     time.Date(2024, 3, 1, 13, 1, 0, int(500*time.Millisecond), loc),
		}
		h = d.Headers()
	)

	assert.Equal(t, "3", h.Get(HeaderLimit))
	assert.Equal(t, "0", h.Get(HeaderRemaining))
	assert.Equal(t, "2024-03-01T12:01:00.500Z", h.Get(HeaderReset))
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		reset time.Time
		want  int64
	}{
		{"rounds up", now.Add(1200 * time.Millisecond), 2},
		{"whole seconds", now.Add(30 * time.Second), 30},
		{"elapsed", now.Add(-time.Second), 1},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryAfterSeconds(Decision{Reset: tt.reset}, now))
		})
	}
}

func TestDecision_RetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Minute, Decision{Reset: now.Add(time.Minute)}.RetryAfter(now))
	assert.Equal(t, time.Duration(0), Decision{Reset: now.Add(-time.Minute)}.RetryAfter(now))
}
