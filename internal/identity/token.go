package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rentwise/rentwise/internal/model"
)

// Token errors
var (
	ErrEmptySigningKey = errors.New("empty signing key")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("expired token")
)

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Signer signs and verifies HS256 access tokens.
type Signer struct {
	key    []byte
	issuer string
}

// NewSigner creates a signer for the shared key.
func NewSigner(key, issuer string) (*Signer, error) {
	if key == "" {
		return nil, ErrEmptySigningKey
	}
	return &Signer{key: []byte(key), issuer: issuer}, nil
}

// Sign issues a token for subject valid for ttl.
func (s *Signer) Sign(subject string, role model.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
}

// Verify checks the token signature, expiry and issuer and returns the
// caller it names.
func (s *Signer) Verify(token string) (Caller, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Caller{}, ErrExpiredToken
		}
		return Caller{}, ErrInvalidToken
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Subject == "" {
		return Caller{}, ErrInvalidToken
	}
	return Caller{Subject: c.Subject, Role: model.Role(c.Role)}, nil
}
