package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// HTTPMiddleware returns middleware enforcing the same API key policy as
// APIKeyInterceptor on REST and WebSocket routes.
//
// The key is read from header, or from "Authorization: Bearer <key>" when
// header is absent. Paths listed in open bypass the check (health probes).
// Browsers cannot set headers on WebSocket upgrades, so an "api_key" query
// parameter is accepted as well.
func HTTPMiddleware(mode, header, key string, open ...string) func(http.Handler) http.Handler {
	p := newPolicy(mode, header, key)
	return func(next http.Handler) http.Handler {
		if p == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range open {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}
			if !p.admits(p.fromRequest(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p *policy) fromRequest(r *http.Request) string {
	if v := r.Header.Get(p.header); v != "" {
		return v
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return v
	}
	return r.URL.Query().Get("api_key")
}
