package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jusscott/risk-assessment-app-sub002/internal/authn"
	"github.com/jusscott/risk-assessment-app-sub002/internal/config"
	"github.com/jusscott/risk-assessment-app-sub002/internal/constants"
)

// stubAuthenticator returns a fixed principal or error and records the token
// it was asked to validate.
type stubAuthenticator struct {
	principal authn.Principal
	err       error
	gotToken  string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, rawToken string) (authn.Principal, error) {
	s.gotToken = rawToken
	if s.err != nil {
		return authn.Principal{}, s.err
	}
	return s.principal, nil
}

func newTestStack(validator TokenAuthenticator) *Stack {
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Security.AllowedOrigins = []string{"*"}
	cfg.Security.AllowedMethods = []string{"GET", "POST"}
	cfg.Security.RateLimitRPS = 100
	cfg.Security.RateLimitBurst = 200

	return NewStack(cfg, validator, nil, log)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi", ok: true},
		{name: "missing_header", header: "", ok: false},
		{name: "wrong_scheme", header: "Basic dXNlcjpwYXNz", ok: false},
		{name: "bearer_without_token", header: "Bearer ", ok: false},
		{name: "lowercase_scheme_rejected", header: "bearer abc", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(constants.HeaderAuthorization, tt.header)
			}

			got, ok := bearerToken(r)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticateSetsIdentityHeadersAndContext(t *testing.T) {
	stub := &stubAuthenticator{
		principal: authn.Principal{ID: "42", Email: "a@example.com", Role: "ADMIN"},
	}
	stack := newTestStack(stub)

	var (
		seenUserID   string
		seenUserRole string
		seenCtx      context.Context
	)
	handler := stack.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = r.Header.Get(constants.HeaderXUserID)
		seenUserRole = r.Header.Get(constants.HeaderXUserRole)
		seenCtx = r.Context()
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	r.Header.Set(constants.HeaderAuthorization, "Bearer sometoken")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sometoken", stub.gotToken)
	assert.Equal(t, "42", seenUserID)
	assert.Equal(t, "ADMIN", seenUserRole)

	principal, ok := PrincipalFromContext(seenCtx)
	require.True(t, ok)
	assert.Equal(t, "42", principal.ID)
}

func TestAuthenticateStripsSpoofedIdentityHeaders(t *testing.T) {
	stub := &stubAuthenticator{principal: authn.Principal{ID: "7", Role: "USER"}}
	stack := newTestStack(stub)

	var seenUserID, seenUserRole string
	handler := stack.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = r.Header.Get(constants.HeaderXUserID)
		seenUserRole = r.Header.Get(constants.HeaderXUserRole)
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	r.Header.Set(constants.HeaderAuthorization, "Bearer sometoken")
	r.Header.Set(constants.HeaderXUserID, "999")
	r.Header.Set(constants.HeaderXUserRole, "ADMIN")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, r)

	assert.Equal(t, "7", seenUserID, "client-supplied user ID must be replaced")
	assert.Equal(t, "USER", seenUserRole, "client-supplied role must be replaced")
}

func TestAuthenticateRejectsUniformly(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		err        error
	}{
		{name: "no_token", authHeader: ""},
		{name: "expired_token", authHeader: "Bearer t", err: authn.ErrTokenExpired},
		{name: "invalid_token", authHeader: "Bearer t", err: authn.ErrTokenInvalid},
		{name: "authority_unavailable", authHeader: "Bearer t", err: authn.ErrAuthorityUnavailable},
		{name: "unexpected_error", authHeader: "Bearer t", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := newTestStack(&stubAuthenticator{err: tt.err})

			handler := stack.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				t.Fatal("next handler must not run")
			}))

			r := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
			if tt.authHeader != "" {
				r.Header.Set(constants.HeaderAuthorization, tt.authHeader)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, r)

			// Every failure maps to the same generic response so callers
			// cannot distinguish failure kinds.
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t,
				`{"error": "unauthenticated", "error_description": "Authentication required"}`,
				rec.Body.String())
		})
	}
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	stack := newTestStack(&stubAuthenticator{})

	handler := stack.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	stack := newTestStack(&stubAuthenticator{})

	handler := stack.CORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("preflight must not reach the next handler")
	}))

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/reports", nil)
	r.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func TestSecurityHeaders(t *testing.T) {
	stack := newTestStack(&stubAuthenticator{})

	handler := stack.SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRecoveryConvertsPanicTo500(t *testing.T) {
	stack := newTestStack(&stubAuthenticator{})

	handler := stack.Recovery(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_server_error")
}

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	stack := newTestStack(&stubAuthenticator{})

	handler := stack.RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Generated when absent.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(constants.HeaderXRequestID))

	// Reused when the edge already assigned one.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(constants.HeaderXRequestID, "edge-id-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, "edge-id-1", rec.Header().Get(constants.HeaderXRequestID))
}

func TestChainOrder(t *testing.T) {
	stack := newTestStack(&stubAuthenticator{})

	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := stack.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { order = append(order, "handler") }),
		mw("outer"),
		mw("inner"),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
