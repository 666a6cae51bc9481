package router

import (
	"net/http"
	"strings"

	"MultiDB/internal/config"
)

// corsPolicy is the parsed form of the configured CORS settings.
type corsPolicy struct {
	origins          []string
	wildcard         bool
	allowCredentials bool
}

// withCORS stamps CORS headers from the configured policy and answers
// preflight requests. The origin list is parsed once at registration.
func withCORS(cfg config.CORSConfig, h http.HandlerFunc) http.HandlerFunc {
	policy := newCORSPolicy(cfg)
	return func(w http.ResponseWriter, r *http.Request) {
		policy.apply(w.Header(), r.Header.Get("Origin"))
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

func newCORSPolicy(cfg config.CORSConfig) corsPolicy {
	p := corsPolicy{allowCredentials: cfg.AllowCredentials}
	for _, o := range strings.Split(cfg.AllowOrigin, ",") {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			p.wildcard = true
		default:
			p.origins = append(p.origins, o)
		}
	}
	return p
}

func (p corsPolicy) apply(h http.Header, requestOrigin string) {
	value, varyOrigin := p.allowValue(requestOrigin)
	if value != "" {
		h.Set("Access-Control-Allow-Origin", value)
	}
	if varyOrigin {
		h.Set("Vary", "Origin")
	}
	if p.allowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set("Access-Control-Max-Age", "86400")
}

// allowValue picks the Allow-Origin value for a request. A wildcard or
// empty policy allows everyone; with credentials the wildcard must echo
// the concrete origin back. An explicit list echoes matching origins
// and answers with Vary either way.
func (p corsPolicy) allowValue(requestOrigin string) (value string, varyOrigin bool) {
	if p.wildcard || len(p.origins) == 0 {
		if p.wildcard && p.allowCredentials && requestOrigin != "" {
			return requestOrigin, true
		}
		return "*", false
	}
	if requestOrigin == "" {
		return "", true
	}
	for _, o := range p.origins {
		if o == requestOrigin {
			return requestOrigin, true
		}
	}
	return "", true
}
