package ratelimit

import "strings"

// HeaderGetter is satisfied by http.Header.
type HeaderGetter interface {
	Get(string) string
}

const (
	UnknownIP = "unknown"

	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
	headerCFConnecting = "CF-Connecting-IP"
)

// ClientIP returns the client address reported by the proxy headers, in
// order X-Forwarded-For (first entry), X-Real-IP, CF-Connecting-IP. The
// headers are client supplied and can only be trusted behind a reverse
// proxy that overwrites them.
func ClientIP(h HeaderGetter) string {
	if f := h.Get(headerForwardedFor); f != "" {
		if i := strings.IndexByte(f, ','); i >= 0 {
			f = f[:i]
		}

		if f = strings.TrimSpace(f); f != "" {
			return f
		}
	}

	for _, k := range []string{headerRealIP, headerCFConnecting} {
		if v := strings.TrimSpace(h.Get(k)); v != "" {
			return v
		}
	}

	return UnknownIP
}
