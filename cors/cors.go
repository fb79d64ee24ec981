// Package cors decides whether a browser origin may call the gateway and
// computes the matching response headers.
//
// Allow-list entries are exact origins ("https://consent.in") or suffix
// wildcards ("https://*.figma.site"). An entry without a scheme matches the
// host under any scheme. A wildcard never matches the bare suffix domain.
package cors

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-consent-gateway/core"
)

const (
	AllowedHeaders = "Content-Type, Authorization"
	AllowedMethods = "POST, OPTIONS"
	wildcardOrigin = "*"
)

type Policy string

const (
	// PolicyStrict rejects preflights from unknown origins.
	PolicyStrict Policy = core.CORSPolicyStrict
	// PolicyLegacy answers unknown preflights with a wildcard origin.
	PolicyLegacy Policy = core.CORSPolicyLegacy
)

func ParsePolicy(raw string) Policy {
	if strings.EqualFold(strings.TrimSpace(raw), string(PolicyLegacy)) {
		return PolicyLegacy
	}
	return PolicyStrict
}

type pattern struct {
	scheme string
	suffix string
}

type Matcher struct {
	exact     map[string]struct{}
	hosts     map[string]struct{}
	wildcards []pattern
}

func NewMatcher(origins []string) *Matcher {
	m := &Matcher{
		exact: map[string]struct{}{},
		hosts: map[string]struct{}{},
	}
	for _, raw := range origins {
		entry := strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), "/"))
		if entry == "" {
			continue
		}
		scheme, host := splitOrigin(entry)
		if strings.HasPrefix(host, "*.") {
			m.wildcards = append(m.wildcards, pattern{scheme: scheme, suffix: host[1:]})
			continue
		}
		if scheme == "" {
			m.hosts[host] = struct{}{}
			continue
		}
		m.exact[entry] = struct{}{}
	}
	return m
}

// Allowed reports whether origin is on the allow-list. Empty origins are not
// matched here; callers treat them as non-browser traffic.
func (m *Matcher) Allowed(origin string) bool {
	if m == nil {
		return false
	}
	normalized := strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
	if normalized == "" {
		return false
	}
	if _, ok := m.exact[normalized]; ok {
		return true
	}
	scheme, host := splitOrigin(normalized)
	if host == "" {
		return false
	}
	if _, ok := m.hosts[host]; ok {
		return true
	}
	for _, wildcard := range m.wildcards {
		if wildcard.scheme != "" && wildcard.scheme != scheme {
			continue
		}
		if strings.HasSuffix(host, wildcard.suffix) && len(host) > len(wildcard.suffix) {
			return true
		}
	}
	return false
}

func splitOrigin(value string) (string, string) {
	if !strings.Contains(value, "://") {
		return "", value
	}
	if strings.Contains(value, "*") {
		scheme, host, _ := strings.Cut(value, "://")
		return scheme, host
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", ""
	}
	return parsed.Scheme, parsed.Host
}

// Decision is the single CORS verdict for one request. Every response built
// for that request derives its headers from it.
type Decision struct {
	Origin  string
	Present bool
	Allowed bool
}

// Rejected reports a browser origin that is not on the allow-list.
func (d Decision) Rejected() bool {
	return d.Present && !d.Allowed
}

type Resolver struct {
	matcher *Matcher
	policy  Policy
}

func New(cfg core.CORSConfig) *Resolver {
	return &Resolver{
		matcher: NewMatcher(cfg.AllowedOrigins),
		policy:  ParsePolicy(cfg.Policy),
	}
}

func (r *Resolver) Policy() Policy {
	if r == nil {
		return PolicyStrict
	}
	return r.policy
}

func (r *Resolver) Decide(origin string) Decision {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return Decision{Allowed: true}
	}
	return Decision{
		Origin:  origin,
		Present: true,
		Allowed: r != nil && r.matcher.Allowed(origin),
	}
}

// Preflight answers an OPTIONS request. Under the strict policy an unknown
// origin gets 403 with its own origin echoed.
func (r *Resolver) Preflight(d Decision) (int, map[string]string) {
	if d.Rejected() {
		if r.Policy() == PolicyLegacy {
			return http.StatusOK, r.headers(wildcardOrigin)
		}
		return http.StatusForbidden, r.headers(d.Origin)
	}
	return http.StatusOK, r.headers(echoOrigin(d))
}

// Headers returns the CORS headers for a non-preflight response.
func (r *Resolver) Headers(d Decision) map[string]string {
	return r.headers(echoOrigin(d))
}

func (r *Resolver) headers(origin string) map[string]string {
	headers := map[string]string{
		core.HeaderAccessControlAllowOrigin:  origin,
		core.HeaderAccessControlAllowHeaders: AllowedHeaders,
		core.HeaderAccessControlAllowMethods: AllowedMethods,
	}
	if origin != wildcardOrigin {
		headers[core.HeaderVary] = core.HeaderOrigin
	}
	return headers
}

func echoOrigin(d Decision) string {
	if !d.Present {
		return wildcardOrigin
	}
	return d.Origin
}
