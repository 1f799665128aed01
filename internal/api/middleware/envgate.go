package middleware

import (
	"net/http"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/response"
)

// EnvironmentGate returns a middleware that rejects every request with
// 403 unless allowed is true. Used to keep test-only surfaces such as
// error simulation out of production.
func EnvironmentGate(allowed bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed {
				response.Error(w, http.StatusForbidden, "not available in this environment")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
