package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dghubble/trie"
	"gopkg.in/yaml.v2"
)

type (
	routes struct{ t *trie.PathTrie }

	route struct {
		target    *url.URL
		rateLimit rateLimit
		prefix    string
		rewrite   string
	}

	match struct {
		path  string
		route *route
	}

	configRoute struct {
		Prefix    string           `yaml:"prefix"`
		Target    *string          `yaml:"target"`
		Rewrite   *string          `yaml:"rewrite"`
		RateLimit *configRateLimit `yaml:"rateLimit"`
		Routes    []configRoute    `yaml:"routes,flow"`
	}

	configRateLimit struct {
		Enabled *bool        `yaml:"enabled"`
		Rules   []configRule `yaml:"rules,flow"`
	}

	configRule struct {
		Dimension string        `yaml:"dimension"`
		Field     string        `yaml:"field"`
		Limit     int64         `yaml:"limit"`
		Window    time.Duration `yaml:"window"`
	}
)

var (
	ErrInvalidRateLimit       = errors.New("invalid rate limit")
	ErrInvalidRateLimitWindow = errors.New("invalid rate limit window")
	ErrNoRateLimitRules       = errors.New("no rate limit rules")
	ErrUnknownDimension       = errors.New("unknown rate limit dimension")
	ErrInvalidHeaderName      = errors.New("invalid header name")
)

func parseRoutes(configData string) (*routes, error) {
	var c struct {
		Routes []configRoute `yaml:"routes,flow"`
	}

	if err := yaml.NewDecoder(strings.NewReader(configData)).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config data: %w", err)
	}

	pathTrie := trie.NewPathTrie()

	if err := addRoutes(pathTrie, "/", nil, c.Routes); err != nil {
		return nil, fmt.Errorf("failed to add routes: %w", err)
	}

	return &routes{t: pathTrie}, nil
}

// addRoutes maps r below p. Nested routes inherit target, rewrite and the
// rate limit of their parent unless they declare their own.
func addRoutes(t *trie.PathTrie, p string, a *route, r []configRoute) error {
	for i := range r {
		if r[i].Prefix == "" {
			continue
		}

		m := path.Join(p, r[i].Prefix)

		var (
			u *url.URL
			e error
		)

		if r[i].Target != nil {
			u, e = url.Parse(*r[i].Target)
			if e != nil {
				return fmt.Errorf("failed to parse target: %w", e)
			}
		}

		var re string
		if r[i].Rewrite != nil {
			re = *r[i].Rewrite
		}

		var l rateLimit
		if a != nil {
			l = a.rateLimit
		}

		if err := l.parse(m, r[i].RateLimit); err != nil {
			return fmt.Errorf("route %q: failed to parse rate limit: %w", m, err)
		}

		c := route{
			target:    u,
			rewrite:   re,
			rateLimit: l,
			prefix:    m,
		}

		if a != nil {
			if c.target == nil && a.target != nil {
				c.target = a.target
			}

			if c.rewrite == "" && a.rewrite != "" {
				c.rewrite = a.rewrite
			}
		}

		if err := c.rateLimit.validate(); err != nil {
			return fmt.Errorf("route %q to %q is invalid: %w", c.prefix, c.target, err)
		}

		if !t.Put(m, &c) {
			return fmt.Errorf("route %q to %q is already mapped", c.prefix, c.target)
		}

		if err := addRoutes(t, m, &c, r[i].Routes); err != nil {
			return err
		}
	}

	return nil
}

// match finds the most specific route for p.
func (r *routes) match(p string) (match, bool) {
	var (
		l int
		t *route
		e = r.t.WalkPath(p, func(key string, value interface{}) error {
			//nolint:errcheck //always known
			t = value.(*route)
			l = len(key)

			return nil
		})
	)

	if e != nil || t == nil || t.target == nil {
		return match{}, false
	}

	m := match{path: p, route: t}

	if m.route.rewrite != "" {
		m.path = singleJoiningSlash(m.route.rewrite, p[l:])
	}

	return m, true
}
