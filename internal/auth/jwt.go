// Package auth проверяет JWT, выпущенные auth-service, и превращает их в domain.Identity.
package auth

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/golang-jwt/jwt"
)

// Claims: полезная нагрузка токена. Идентификатор берётся из sub,
// а если его нет, из userId (число или строка).
type Claims struct {
	jwt.StandardClaims
	UserID   any    `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Valid отключает встроенную проверку времени: её делает Verifier с учётом clockSkew.
func (c *Claims) Valid() error { return nil }

type Options struct {
	Issuer    string // пусто: не проверять
	Audience  string // пусто: не проверять
	ClockSkew time.Duration
}

// Verifier проверяет подпись и временные клеймы. Поддерживается HS256 (общий секрет)
// и RS256 (публичный ключ auth-service).
type Verifier struct {
	key    any
	method jwt.SigningMethod
	opts   Options
	now    func() time.Time
}

func NewHMACVerifier(secret []byte, opts Options) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	return &Verifier{key: secret, method: jwt.SigningMethodHS256, opts: opts, now: time.Now}, nil
}

func NewRSAVerifier(pub *rsa.PublicKey, opts Options) (*Verifier, error) {
	if pub == nil {
		return nil, errors.New("jwt public key is nil")
	}
	return &Verifier{key: pub, method: jwt.SigningMethodRS256, opts: opts, now: time.Now}, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return pub, nil
}

// Verify возвращает личность владельца токена. Любая ошибка оборачивает domain.ErrInvalidToken.
func (v *Verifier) Verify(tokenStr string) (domain.Identity, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty", domain.ErrInvalidToken)
	}

	parser := &jwt.Parser{ValidMethods: []string{v.method.Alg()}, UseJSONNumber: true}
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !token.Valid {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	if v.opts.Issuer != "" && !claims.VerifyIssuer(v.opts.Issuer, true) {
		return domain.Identity{}, fmt.Errorf("%w: issuer", domain.ErrInvalidToken)
	}
	if v.opts.Audience != "" && !claims.VerifyAudience(v.opts.Audience, true) {
		return domain.Identity{}, fmt.Errorf("%w: audience", domain.ErrInvalidToken)
	}

	// exp обязателен, nbf: если задан; оба с люфтом clockSkew
	now := v.now()
	if claims.ExpiresAt == 0 || now.After(time.Unix(claims.ExpiresAt, 0).Add(v.opts.ClockSkew)) {
		return domain.Identity{}, fmt.Errorf("%w: expired", domain.ErrInvalidToken)
	}
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.opts.ClockSkew)) {
		return domain.Identity{}, fmt.Errorf("%w: not valid yet", domain.ErrInvalidToken)
	}

	uid, err := claims.userID()
	if err != nil {
		return domain.Identity{}, err
	}

	name := strings.TrimSpace(claims.Username)
	if name == "" {
		name = strings.TrimSpace(claims.Email)
	}
	return domain.Identity{UserID: uid, DisplayName: name}, nil
}

func (c *Claims) userID() (int64, error) {
	raw := c.Subject
	if raw == "" {
		switch v := c.UserID.(type) {
		case json.Number:
			raw = v.String()
		case string:
			raw = v
		}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject", domain.ErrInvalidToken)
	}
	return id, nil
}
