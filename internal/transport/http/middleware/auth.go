package httpmw

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type Verifier interface {
	Verify(token string) (domain.Identity, error)
}

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

// AuthMiddleware требует Authorization: Bearer <jwt> и кладёт личность в контекст.
func AuthMiddleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
				unauthorized(w, "missing bearer token")
				return
			}

			who, err := v.Verify(strings.TrimSpace(auth[7:]))
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), who)))
		})
	}
}

func WithIdentity(ctx context.Context, who domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, who)
}

func IdentityFromCtx(ctx context.Context) (domain.Identity, bool) {
	who, ok := ctx.Value(ctxKeyIdentity).(domain.Identity)
	return who, ok && who.UserID > 0
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthenticated", "message": msg},
	})
}
