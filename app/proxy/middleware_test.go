package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLogging_RequestID(t *testing.T) {
	var seen string

	h := WithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	id := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, id)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, id, seen)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))
}

func TestWithMetrics(t *testing.T) {
	var (
		counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_routed_total"}, []string{"method", "path", "code"})
		hist    = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_routed_duration_seconds"})
	)

	h := WithMetrics(counter, hist)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/otp/send", nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(counter.WithLabelValues(http.MethodPost, "/api/otp/send", "429")))
}
