package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"

	// ISO-8601 with millisecond precision, always rendered in UTC.
	resetLayout = "2006-01-02T15:04:05.000Z07:00"
)

func (d Decision) Headers() http.Header {
	h := make(http.Header, 3)
	WriteHeaders(h, d)

	return h
}

func WriteHeaders(h http.Header, d Decision) {
	h.Set(HeaderLimit, strconv.FormatInt(d.Limit, decimalBase))
	h.Set(HeaderRemaining, strconv.FormatInt(d.Remaining, decimalBase))
	h.Set(HeaderReset, d.Reset.UTC().Format(resetLayout))
}

// RetryAfterSeconds rounds the time left in the window up to whole seconds,
// never below one.
func RetryAfterSeconds(d Decision, now time.Time) int64 {
	s := int64((d.RetryAfter(now) + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}

	return s
}
