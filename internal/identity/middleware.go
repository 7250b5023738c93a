package identity

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/model"
	"github.com/rentwise/rentwise/internal/response"
	"go.uber.org/zap"
)

// Header errors
var (
	// ErrEmptyHeader represents an empty header.
	ErrEmptyHeader = errors.New("empty header")

	// ErrIncorrectHeaderFormat means the formatting of the header was incorrect.
	ErrIncorrectHeaderFormat = errors.New("incorrect header format")
)

// validTokenRegex matches only valid token characters (RFC6750 b64token).
var validTokenRegex = regexp.MustCompile(`^[a-zA-Z0-9-._~+/]+=*$`)

// ParseBearerAuthorizationHeader parses the Authorization header field
// and returns the bearer token, if present and valid.
//
// The Authorization header should be in the form (RFC6750 2.1)
// b64token    = 1*( ALPHA / DIGIT /
// 					"-" / "." / "_" / "~" / "+" / "/" ) *"="
// credentials = "Bearer" 1*SP b64token
func ParseBearerAuthorizationHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrEmptyHeader
	}
	fields := strings.Fields(authHeader)
	if len(fields) != 2 || fields[0] != "Bearer" {
		return "", ErrIncorrectHeaderFormat
	}
	if !validTokenRegex.MatchString(fields[1]) {
		return "", ErrInvalidToken
	}
	return fields[1], nil
}

// Middleware provides methods for creating HTTP middleware.
type Middleware struct {
	signer *Signer
}

// NewMiddleware creates a middleware factory verifying tokens with signer.
func NewMiddleware(signer *Signer) *Middleware {
	return &Middleware{signer: signer}
}

func (m *Middleware) authenticate(r *http.Request) (Caller, error) {
	token, err := ParseBearerAuthorizationHeader(r.Header.Get("Authorization"))
	if err != nil {
		return Caller{}, err
	}
	return m.signer.Verify(token)
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrEmptyHeader) {
		w.Header().Set("WWW-Authenticate", "Bearer")
	} else {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	response.Error(w, r, model.ErrUnauthenticated())
}

// BearerAuthenticated protects endpoints based off a user's Bearer auth token.
func (m *Middleware) BearerAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := m.authenticate(r)
		if err != nil {
			logger.FromContext(r.Context()).Debug("Rejected bearer token", zap.Error(err))
			unauthorized(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// RequireRole rejects authenticated callers without the given role. It
// must run after BearerAuthenticated.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFrom(r.Context())
			if !ok {
				unauthorized(w, r, ErrEmptyHeader)
				return
			}
			if caller.Role != role {
				response.Error(w, r, model.ErrForbidden())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
