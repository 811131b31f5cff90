package cors

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	AllowMethods = "POST, OPTIONS"
	AllowHeaders = "Content-Type"
)

// MatchMode selects how an inbound Origin is compared with the allow-list.
type MatchMode string

const (
	// MatchStrict accepts an exact scheme://host[:port] match or a DNS
	// subdomain of an allowed host with the same scheme and port.
	MatchStrict MatchMode = "strict"
	// MatchPrefix accepts any origin that starts with an allowed entry.
	// "https://txchya.com.evil.example" passes in this mode.
	MatchPrefix MatchMode = "prefix"
)

// DefaultOrigins is the allow-list used when none is configured. The first
// entry is the fallback origin.
func DefaultOrigins() []string {
	return []string{
		"https://txchya.com",
		"https://txchyon.com",
		"https://everrank.app",
		"https://renterrate.com",
		"http://localhost:4321",
		"http://localhost:3000",
	}
}

type allowed struct {
	raw    string
	scheme string
	host   string
	port   string
}

// Policy is an immutable ordered allow-list.
type Policy struct {
	mode    MatchMode
	origins []allowed
}

// NewPolicy validates the allow-list. Order is preserved.
func NewPolicy(origins []string, mode MatchMode) (*Policy, error) {
	switch mode {
	case MatchStrict, MatchPrefix:
	case "":
		mode = MatchStrict
	default:
		return nil, fmt.Errorf("cors: unknown match mode %q", mode)
	}

	p := &Policy{mode: mode}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		scheme, host, port, ok := splitOrigin(o)
		if !ok {
			return nil, fmt.Errorf("cors: invalid allowed origin %q", o)
		}
		p.origins = append(p.origins, allowed{raw: o, scheme: scheme, host: host, port: port})
	}
	if len(p.origins) == 0 {
		return nil, errors.New("cors: allow-list must not be empty")
	}
	return p, nil
}

// Fallback is the first allow-listed origin.
func (p *Policy) Fallback() string {
	return p.origins[0].raw
}

// OriginFor returns the Access-Control-Allow-Origin value for a request
// Origin header. An allowed origin is echoed back verbatim; anything else,
// including an absent header, gets the fallback origin.
func (p *Policy) OriginFor(origin string) string {
	if p.Allows(origin) {
		return origin
	}
	return p.Fallback()
}

// Allows reports whether origin matches the allow-list.
func (p *Policy) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.mode == MatchPrefix {
		for _, a := range p.origins {
			if strings.HasPrefix(origin, a.raw) {
				return true
			}
		}
		return false
	}

	scheme, host, port, ok := splitOrigin(origin)
	if !ok {
		return false
	}
	for _, a := range p.origins {
		if a.scheme != scheme || a.port != port {
			continue
		}
		if host == a.host || strings.HasSuffix(host, "."+a.host) {
			return true
		}
	}
	return false
}

// Headers returns the CORS response headers for origin.
func (p *Policy) Headers(origin string) map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  p.OriginFor(origin),
		"Access-Control-Allow-Methods": AllowMethods,
		"Access-Control-Allow-Headers": AllowHeaders,
	}
}

func splitOrigin(origin string) (scheme, host, port string, ok bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", "", false
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.User != nil {
		return "", "", "", false
	}
	return strings.ToLower(u.Scheme), strings.ToLower(u.Hostname()), u.Port(), true
}
