package ratelimit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type (
	KeyFunc func(*http.Request) (string, error)

	HandleFunc func(http.ResponseWriter, *http.Request, []Rule) bool

	Middleware func(http.Handler) http.Handler

	// Rule limits requests sharing the value returned by Key to Limit
	// per Window. Scope separates counters of otherwise equal keys, for
	// example the same address hitting two endpoints.
	Rule struct {
		Scope     string
		Dimension Dimension
		Key       KeyFunc
		Limit     int64
		Window    time.Duration
	}
)

const (
	decimalBase  = 10
	maxBodyBytes = 1 << 20
)

var (
	ErrMissingKey  = errors.New("missing rate limit key")
	ErrBodyTooLong = errors.New("request body too long")
)

func NewMiddleware(e Evaluator, rules ...Rule) Middleware {
	handle := NewHandler(e)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if handle(w, r, rules) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// NewHandler returns a HandleFunc which evaluates the rules for a request,
// writes the rate limit headers and reports whether the request may
// proceed. A rejected request has been answered already.
func NewHandler(e Evaluator) HandleFunc {
	return func(w http.ResponseWriter, r *http.Request, rules []Rule) bool {
		if len(rules) == 0 {
			return true
		}

		rs, err := Requests(r, rules)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return false
		}

		d, err := e.EvaluateAll(r.Context(), rs...)
		if err != nil {
			log.WithError(err).WithField("path", r.URL.Path).Error("rate limit evaluation failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return false
		}

		h := w.Header()

		WriteHeaders(h, d)

		if !d.Success {
			h.Set(HeaderRetryAfter, strconv.FormatInt(RetryAfterSeconds(d, time.Now()), decimalBase))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)

			return false
		}

		return true
	}
}

// Requests resolves the key of every rule for r.
func Requests(r *http.Request, rules []Rule) ([]Request, error) {
	rs := make([]Request, 0, len(rules))

	for _, u := range rules {
		v, err := u.Key(r)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s key: %w", u.Dimension, err)
		}

		k := Key(u.Dimension, v)
		if u.Scope != "" {
			k = u.Scope + ":" + k
		}

		rs = append(rs, Request{Key: k, Limit: u.Limit, Window: u.Window})
	}

	return rs, nil
}

func KeyFromClientIP() KeyFunc {
	return func(r *http.Request) (string, error) {
		return ClientIP(r.Header), nil
	}
}

func KeyFromHeader(headers ...string) KeyFunc {
	return func(r *http.Request) (string, error) {
		var sb strings.Builder

		for i, k := range headers {
			if i > 0 {
				sb.WriteRune('-')
			}

			sb.WriteString(strings.TrimSpace(r.Header.Get(k)))
		}

		if strings.Trim(sb.String(), "-") == "" {
			return "", ErrMissingKey
		}

		return sb.String(), nil
	}
}

// KeyFromBodyField reads field from a JSON, urlencoded or multipart form
// body. The value is trimmed and lower-cased, which suits email addresses.
// The body is restored for the next handler. Bodies above 1 MiB, uploads
// included, are rejected with ErrBodyTooLong.
func KeyFromBodyField(field string) KeyFunc {
	return func(r *http.Request) (string, error) {
		if r.Body == nil {
			return "", ErrMissingKey
		}

		b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		_ = r.Body.Close()

		r.Body = io.NopCloser(bytes.NewReader(b))

		if err != nil {
			return "", fmt.Errorf("failed to read request body: %w", err)
		}

		if len(b) > maxBodyBytes {
			return "", ErrBodyTooLong
		}

		v, err := bodyField(r.Header.Get("Content-Type"), b, field)
		if err != nil {
			return "", err
		}

		if v = strings.ToLower(strings.TrimSpace(v)); v == "" {
			return "", ErrMissingKey
		}

		return v, nil
	}
}

func bodyField(contentType string, b []byte, field string) (string, error) {
	t, params, _ := mime.ParseMediaType(contentType)

	switch t {
	case "application/x-www-form-urlencoded":
		q, err := url.ParseQuery(string(b))
		if err != nil {
			return "", fmt.Errorf("failed to parse form body: %w", err)
		}

		return q.Get(field), nil

	case "multipart/form-data":
		return multipartField(b, params["boundary"], field)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return "", fmt.Errorf("failed to decode json body: %w", err)
	}

	v, ok := m[field].(string)
	if !ok {
		return "", ErrMissingKey
	}

	return v, nil
}

func multipartField(b []byte, boundary, field string) (string, error) {
	if boundary == "" {
		return "", fmt.Errorf("failed to parse multipart body: %w", http.ErrMissingBoundary)
	}

	f, err := multipart.NewReader(bytes.NewReader(b), boundary).ReadForm(maxBodyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse multipart body: %w", err)
	}

	defer func() { _ = f.RemoveAll() }()

	if v := f.Value[field]; len(v) > 0 {
		return v[0], nil
	}

	return "", ErrMissingKey
}
