package proxy

import (
	"net"
	"net/http"
	"time"
)

const (
	DefaultMaxIdleConns          = 100
	DefaultDialTimeout           = 30 * time.Second
	DefaultKeepalive             = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultExpectContinueTimeout = time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultIdleConnsPerHost      = 64
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultRecycleInterval       = time.Minute
)

// transport periodically drops idle upstream connections so that new
// replicas behind a service address start receiving traffic.
type transport struct {
	*http.Transport
	ticker *time.Ticker
	done   chan struct{}
}

func newTransport() *transport {
	t := &transport{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DefaultDialTimeout,
				KeepAlive: DefaultKeepalive,
			}).DialContext,
			MaxIdleConns:          DefaultMaxIdleConns,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
			ExpectContinueTimeout: DefaultExpectContinueTimeout,
			ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
			MaxIdleConnsPerHost:   DefaultIdleConnsPerHost,
		},
		ticker: time.NewTicker(DefaultRecycleInterval),
		done:   make(chan struct{}),
	}

	go t.recycle()

	return t
}

func (t *transport) recycle() {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			t.CloseIdleConnections()
		}
	}
}

func (t *transport) stop() {
	t.ticker.Stop()
	close(t.done)
	t.CloseIdleConnections()
}
