package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestVerifyHMAC(t *testing.T) {
	v, err := NewHMACVerifier(secret, Options{Issuer: "auth-service", ClockSkew: 30 * time.Second})
	require.NoError(t, err)

	now := time.Now()
	tok := sign(t, jwt.MapClaims{
		"sub":      "42",
		"iss":      "auth-service",
		"exp":      now.Add(time.Hour).Unix(),
		"username": "alice",
		"email":    "alice@example.com",
	})

	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: 42, DisplayName: "alice"}, id)
}

func TestVerifyUserIDClaim(t *testing.T) {
	v, err := NewHMACVerifier(secret, Options{})
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour).Unix()

	id, err := v.Verify(sign(t, jwt.MapClaims{"userId": 9007199254740993, "email": "bob@example.com", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), id.UserID)
	assert.Equal(t, "bob@example.com", id.DisplayName)

	id, err = v.Verify(sign(t, jwt.MapClaims{"userId": "7", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.UserID)
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewHMACVerifier(secret, Options{Issuer: "auth-service", Audience: "chat", ClockSkew: 10 * time.Second})
	require.NoError(t, err)
	now := time.Now()

	valid := jwt.MapClaims{"sub": "1", "iss": "auth-service", "aud": "chat", "exp": now.Add(time.Minute).Unix()}
	with := func(k string, val any) jwt.MapClaims {
		c := jwt.MapClaims{}
		for kk, vv := range valid {
			c[kk] = vv
		}
		if val == nil {
			delete(c, k)
		} else {
			c[k] = val
		}
		return c
	}

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, valid).SignedString([]byte("other"))
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"wrong secret":   other,
		"expired":        sign(t, with("exp", now.Add(-time.Minute).Unix())),
		"no exp":         sign(t, with("exp", nil)),
		"not yet valid":  sign(t, with("nbf", now.Add(time.Minute).Unix())),
		"wrong issuer":   sign(t, with("iss", "someone")),
		"wrong audience": sign(t, with("aud", "billing")),
		"no subject":     sign(t, with("sub", nil)),
		"bad subject":    sign(t, with("sub", "abc")),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, domain.ErrInvalidToken)
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestVerifyClockSkew(t *testing.T) {
	v, err := NewHMACVerifier(secret, Options{ClockSkew: time.Minute})
	require.NoError(t, err)

	// истёк 30 секунд назад, но в пределах люфта
	_, err = v.Verify(sign(t, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-30 * time.Second).Unix()}))
	assert.NoError(t, err)
}

func TestVerifyRSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	v, err := NewRSAVerifier(&key.PublicKey, Options{})
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "5",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)

	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id.UserID)

	// HS256-токен не должен приниматься RSA-проверяющим
	_, err = v.Verify(sign(t, jwt.MapClaims{"sub": "5", "exp": time.Now().Add(time.Hour).Unix()}))
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestNewVerifierValidation(t *testing.T) {
	_, err := NewHMACVerifier(nil, Options{})
	assert.Error(t, err)
	_, err = NewRSAVerifier(nil, Options{})
	assert.Error(t, err)
}
