// Package auth resolves the calling user of an HTTP request.
//
// An HS256 bearer token carrying a numeric "user_id" claim is preferred. When header identity is
// allowed, a request without a valid token may name its caller in the X-User-Id header.
package auth

import (
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderUserID = "X-User-Id"
	bearerPrefix = "Bearer "
)

var (
	ErrNoIdentity   = errors.New("no caller identity")
	ErrInvalidToken = errors.New("invalid token")
)

// Config defines fields parsed from environment variables
type Config struct {
	JWTSecret           string        `env:"JWT_SECRET"`
	TokenTTL            time.Duration `env:"JWT_TTL" envDefault:"720h"`
	AllowHeaderIdentity bool          `env:"ALLOW_HEADER_IDENTITY" envDefault:"true"`
}

// Claims is the token payload
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Verifier extracts caller id from requests
type Verifier struct {
	secret      []byte
	ttl         time.Duration
	allowHeader bool
	now         func() time.Time
}

func NewVerifier(cfg Config) *Verifier {
	return &Verifier{
		secret:      []byte(cfg.JWTSecret),
		ttl:         cfg.TokenTTL,
		allowHeader: cfg.AllowHeaderIdentity,
		now:         time.Now,
	}
}

// Issue signs token for user, used by tooling and tests
func (v *Verifier) Issue(userID int64) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}

	now := v.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if v.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(v.ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Parse validates token and returns the user id it carries
func (v *Verifier) Parse(token string) (int64, error) {
	if len(v.secret) == 0 {
		return 0, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID < 1 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

// UserID returns caller id from bearer token or, when allowed, from X-User-Id header.
// An invalid token falls back to the header.
func (v *Verifier) UserID(r *http.Request) (int64, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		id, err := v.Parse(strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix)))
		if err == nil {
			return id, nil
		}
		if !v.allowHeader {
			return 0, err
		}
	}

	if !v.allowHeader {
		return 0, ErrNoIdentity
	}

	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if raw == "" {
		return 0, ErrNoIdentity
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, ErrNoIdentity
	}

	return id, nil
}
