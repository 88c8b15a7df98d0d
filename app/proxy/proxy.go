package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"

	"github.com/mpraski/quota/app/ratelimit"
	log "github.com/sirupsen/logrus"
)

type (
	Proxy struct {
		routes    *routes
		limit     ratelimit.HandleFunc
		proxy     *httputil.ReverseProxy
		transport *transport
	}

	contextKey uint
)

const matchKey contextKey = 10

func New(configData string, e ratelimit.Evaluator) (*Proxy, error) {
	r, err := parseRoutes(configData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy routes: %w", err)
	}

	t := newTransport()

	return &Proxy{
		routes:    r,
		limit:     ratelimit.NewHandler(e),
		proxy:     newReverseProxy(t),
		transport: t,
	}, nil
}

func (p *Proxy) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := p.routes.match(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		if !p.limit(w, r, m.route.rateLimit.active()) {
			return
		}

		r = r.WithContext(context.WithValue(r.Context(), matchKey, &m))

		r.Header.Set("X-Forwarded-Host", r.Host)

		p.proxy.ServeHTTP(w, r)
	})
}

func (p *Proxy) Close() { p.transport.stop() }

func newReverseProxy(t *transport) *httputil.ReverseProxy {
	director := func(req *http.Request) {
		var (
			m            = req.Context().Value(matchKey).(*match)
			targetScheme = m.route.target.Scheme
			targetHost   = m.route.target.Host
			targetQuery  = m.route.target.RawQuery
		)

		if targetScheme == "" {
			targetScheme = "http"
		}

		req.URL.Path = m.path
		req.URL.RawPath = ""
		req.URL.Host = targetHost
		req.URL.Scheme = targetScheme

		if targetQuery == "" || req.URL.RawQuery == "" {
			req.URL.RawQuery = targetQuery + req.URL.RawQuery
		} else {
			req.URL.RawQuery = targetQuery + "&" + req.URL.RawQuery
		}

		if _, ok := req.Header["User-Agent"]; !ok {
			req.Header.Set("User-Agent", "")
		}
	}

	return &httputil.ReverseProxy{
		Director:     director,
		Transport:    t.Transport,
		BufferPool:   newPool(),
		ErrorHandler: handleUpstreamError,
	}
}

func handleUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	log.WithError(err).WithFields(log.Fields{
		"path":    r.URL.Path,
		"host":    r.URL.Host,
		"upgrade": upgradeType(r.Header),
	}).Error("upstream request failed")

	w.WriteHeader(http.StatusBadGateway)
}
