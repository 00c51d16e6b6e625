package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyAuth validates the API key from the Authorization or X-API-Key header.
// With no keys configured every request passes.
func APIKeyAuth(validKeys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				// Support both "Bearer <key>" and "<key>" formats
				apiKey = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			}
			if apiKey == "" {
				http.Error(w, "missing API key", http.StatusUnauthorized)
				return
			}

			// constant-time comparison, checked against every key
			valid := 0
			for _, key := range validKeys {
				valid |= subtle.ConstantTimeCompare([]byte(apiKey), []byte(key))
			}
			if valid != 1 {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
