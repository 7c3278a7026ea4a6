// internal/api/middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/newthinker/tradeboard/internal/api/response"
	"github.com/newthinker/tradeboard/internal/core"
)

// APIKeyHeader carries the API key on mutating requests.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns middleware that validates the X-API-Key header.
// If apiKey is empty, authentication is disabled.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || checkKey(w, r, apiKey) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// WriteKeyAuth is APIKeyAuth for state-changing methods only. GET, HEAD and
// OPTIONS pass through so the dashboard can read without a key.
func WriteKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || safeMethod(r.Method) || checkKey(w, r, apiKey) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

// checkKey writes a 401 and returns false when the request's key is missing
// or wrong.
func checkKey(w http.ResponseWriter, r *http.Request, apiKey string) bool {
	provided := r.Header.Get(APIKeyHeader)
	if provided == "" {
		response.Error(w, http.StatusUnauthorized,
			core.WrapError(core.ErrConfigMissing, errors.New("api key required")))
		return false
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
		response.Error(w, http.StatusUnauthorized,
			core.WrapError(core.ErrConfigInvalid, errors.New("api key rejected")))
		return false
	}
	return true
}
