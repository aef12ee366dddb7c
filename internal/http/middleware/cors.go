package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowHeaders = "Content-Type, X-Request-Id"
	corsAllowMethods = "GET, POST, OPTIONS"
	corsMaxAge       = "600"
)

// originPolicy is the parsed CORS_ALLOWED_ORIGINS list.
type originPolicy struct {
	any     bool
	origins map[string]bool
}

func newOriginPolicy(list []string) originPolicy {
	p := originPolicy{origins: make(map[string]bool, len(list))}
	for _, o := range list {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = true
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	return origin != "" && (p.any || p.origins[origin])
}

// CORS lets the dashboard call the automation endpoints from the browser.
// Allowed origins are echoed back; "*" allows any origin. Preflights from an
// allowed origin are answered here with 204.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if !policy.allows(origin) {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Max-Age", corsMaxAge)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
