package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMain(t *testing.T) {
	e := NewMain(Config{
		Address:         "127.0.0.1:0",
		ReadTimeout:     time.Second,
		WriteTimeout:    2 * time.Second,
		IdleTimeout:     3 * time.Second,
		ShutdownTimeout: 4 * time.Second,
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	assert.Equal(t, "127.0.0.1:0", e.Addr)
	assert.Equal(t, time.Second, e.ReadTimeout)
	assert.Equal(t, 2*time.Second, e.WriteTimeout)
	assert.Equal(t, 3*time.Second, e.IdleTimeout)
	assert.Equal(t, 4*time.Second, e.shutdownTimeout)

	w := httptest.NewRecorder()
	e.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestEndpoint_ServeStop(t *testing.T) {
	e := NewMain(Config{Address: "127.0.0.1:0", ShutdownTimeout: time.Second}, http.NotFoundHandler())

	served := make(chan error, 1)

	go func() { served <- e.Serve() }()

	require.NoError(t, e.Stop(context.Background()))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestEndpoint_StopTimeout(t *testing.T) {
	var (
		entered = make(chan struct{})
		release = make(chan struct{})
	)

	e := NewMain(Config{ShutdownTimeout: 50 * time.Millisecond}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = e.Server.Serve(l) }()

	go func() {
		resp, errg := http.Get("http://" + l.Addr().String())
		if errg == nil {
			_ = resp.Body.Close()
		}
	}()

	<-entered

	err = e.Stop(context.Background())
	close(release)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
