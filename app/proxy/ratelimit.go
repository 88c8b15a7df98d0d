package proxy

import (
	"fmt"
	"strings"

	"github.com/mpraski/quota/app/ratelimit"
	"golang.org/x/net/http/httpguts"
)

const defaultEmailField = "email"

type rateLimit struct {
	enabled bool
	rules   []ratelimit.Rule
}

// parse replaces the inherited rules when the route declares its own. Rules
// are scoped by the prefix which declares them, so a rule inherited by a
// nested route shares its counters with the parent.
func (c *rateLimit) parse(scope string, r *configRateLimit) error {
	if r == nil {
		return nil
	}

	if r.Enabled != nil {
		c.enabled = *r.Enabled
	}

	if r.Rules == nil {
		return nil
	}

	rules := make([]ratelimit.Rule, 0, len(r.Rules))

	for i := range r.Rules {
		u, err := parseRule(scope, &r.Rules[i])
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}

		rules = append(rules, u)
	}

	c.rules = rules

	return nil
}

func (c *rateLimit) validate() error {
	if !c.enabled {
		return nil
	}

	if len(c.rules) == 0 {
		return ErrNoRateLimitRules
	}

	for _, u := range c.rules {
		if u.Limit <= 0 {
			return ErrInvalidRateLimit
		}

		if u.Window <= 0 {
			return ErrInvalidRateLimitWindow
		}
	}

	return nil
}

// active returns the rules to evaluate, nil when limiting is disabled.
func (c *rateLimit) active() []ratelimit.Rule {
	if !c.enabled {
		return nil
	}

	return c.rules
}

func parseRule(scope string, r *configRule) (ratelimit.Rule, error) {
	u := ratelimit.Rule{
		Scope:     scope,
		Dimension: ratelimit.Dimension(strings.ToLower(strings.TrimSpace(r.Dimension))),
		Limit:     r.Limit,
		Window:    r.Window,
	}

	switch u.Dimension {
	case ratelimit.IP:
		u.Key = ratelimit.KeyFromClientIP()

	case ratelimit.Email:
		f := r.Field
		if f == "" {
			f = defaultEmailField
		}

		u.Key = ratelimit.KeyFromBodyField(f)

	case ratelimit.Header:
		if !httpguts.ValidHeaderFieldName(r.Field) {
			return ratelimit.Rule{}, fmt.Errorf("%w: %q", ErrInvalidHeaderName, r.Field)
		}

		u.Key = ratelimit.KeyFromHeader(r.Field)

	default:
		return ratelimit.Rule{}, fmt.Errorf("%w: %q", ErrUnknownDimension, r.Dimension)
	}

	return u, nil
}
