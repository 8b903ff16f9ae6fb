package httpmw

import (
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/ratelimit"
)

// RateLimit ограничивает частоту запросов пользователя. Ставится после AuthMiddleware.
func RateLimit(pool *ratelimit.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, ok := IdentityFromCtx(r.Context())
			if ok && pool != nil && !pool.Allow(who.UserID) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"limit_exceeded","message":"too many requests"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
