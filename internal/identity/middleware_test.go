package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rentwise/rentwise/internal/model"
	"github.com/rentwise/rentwise/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-signing-key"

func newTestSigner(t *testing.T) *Signer {
	signer, err := NewSigner(testKey, "rentwise")
	require.NoError(t, err)
	return signer
}

func TestParseBearerAuthorizationHeader(t *testing.T) {
	tt := []struct {
		name   string
		header string
		token  string
		err    error
	}{
		{name: "Empty", header: "", err: ErrEmptyHeader},
		{name: "Wrong Scheme", header: "Basic abc", err: ErrIncorrectHeaderFormat},
		{name: "Too Many Fields", header: "Bearer a b", err: ErrIncorrectHeaderFormat},
		{name: "Invalid Characters", header: "Bearer a$b", err: ErrInvalidToken},
		{name: "Valid", header: "Bearer abc.def-ghi", token: "abc.def-ghi"},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			token, err := ParseBearerAuthorizationHeader(test.header)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.token, token)
		})
	}
}

func TestSignerVerify(t *testing.T) {
	signer := newTestSigner(t)

	token, err := signer.Sign("user-1", model.RoleLandlord, time.Hour)
	require.NoError(t, err)

	caller, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", caller.Subject)
	assert.Equal(t, model.RoleLandlord, caller.Role)

	expired, err := signer.Sign("user-1", model.RoleTenant, -time.Minute)
	require.NoError(t, err)
	_, err = signer.Verify(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	other, err := NewSigner("other-key", "rentwise")
	require.NoError(t, err)
	forged, err := other.Sign("user-1", model.RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = signer.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewSigner(testKey, "someone-else")
	require.NoError(t, err)
	foreign, err := wrongIssuer.Sign("user-1", model.RoleTenant, time.Hour)
	require.NoError(t, err)
	_, err = signer.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewSigner("", "rentwise")
	assert.ErrorIs(t, err, ErrEmptySigningKey)
}

func TestBearerAuthenticated(t *testing.T) {
	signer := newTestSigner(t)
	m := NewMiddleware(signer)

	valid, err := signer.Sign("user-1", model.RoleTenant, time.Hour)
	require.NoError(t, err)

	var resolved string
	h := m.BearerAuthenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved, _ = ContextResolver{}.CurrentIdentity(r.Context())
	}))

	tt := []struct {
		name       string
		header     string
		statusCode int
		challenge  string
	}{
		{name: "Missing", statusCode: http.StatusUnauthorized, challenge: "Bearer"},
		{name: "Garbage", header: "Bearer abc", statusCode: http.StatusUnauthorized, challenge: `Bearer error="invalid_token"`},
		{name: "Valid", header: "Bearer " + valid, statusCode: http.StatusOK},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			resolved = ""
			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if test.header != "" {
				req.Header.Set("Authorization", test.header)
			}
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, req)

			require.Equal(t, test.statusCode, resp.Code)
			assert.Equal(t, test.challenge, resp.Header().Get("WWW-Authenticate"))
			if test.statusCode == http.StatusOK {
				assert.Equal(t, "user-1", resolved)
				return
			}
			assertErrorCode(t, resp, model.CodeUnauthenticated)
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tt := []struct {
		name       string
		ctx        context.Context
		statusCode int
		code       string
	}{
		{name: "Anonymous", ctx: context.Background(), statusCode: http.StatusUnauthorized, code: model.CodeUnauthenticated},
		{name: "Tenant", ctx: WithCaller(context.Background(), Caller{Subject: "u", Role: model.RoleTenant}), statusCode: http.StatusForbidden, code: model.CodeForbidden},
		{name: "Admin", ctx: WithCaller(context.Background(), Caller{Subject: "u", Role: model.RoleAdmin}), statusCode: http.StatusOK},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(test.ctx)
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, req)
			assert.Equal(t, test.statusCode, resp.Code)
			if test.code != "" {
				assertErrorCode(t, resp, test.code)
			}
		})
	}
}

func assertErrorCode(t *testing.T, resp *httptest.ResponseRecorder, code string) {
	t.Helper()
	assert.Contains(t, resp.Header().Get("Content-Type"), "application/json")
	var body response.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, code, body.Error.Code)
}
