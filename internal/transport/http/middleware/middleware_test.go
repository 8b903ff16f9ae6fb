package httpmw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]domain.Identity

func (s stubVerifier) Verify(token string) (domain.Identity, error) {
	who, ok := s[token]
	if !ok {
		return domain.Identity{}, errors.New("bad token")
	}
	return who, nil
}

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	who, ok := IdentityFromCtx(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(who.DisplayName))
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware(stubVerifier{"good": {UserID: 7, DisplayName: "alice"}})(http.HandlerFunc(echoIdentity))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"ok", "Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "alice", rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"unauthenticated"`)
			}
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromCtx(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.NotEqual(t, "req-42", seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
}

func TestRateLimitPerUser(t *testing.T) {
	pool := ratelimit.New(0.001, 2)
	h := RateLimit(pool)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(uid int64) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), domain.Identity{UserID: uid}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call(1))
	assert.Equal(t, http.StatusNoContent, call(1))
	assert.Equal(t, http.StatusTooManyRequests, call(1))
	assert.Equal(t, http.StatusNoContent, call(2))
}

func TestStatusWriterDefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec}
	_, err := sw.Write([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, sw.status)
	assert.EqualValues(t, 2, sw.bytes)
}
