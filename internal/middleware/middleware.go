// Package middleware provides HTTP middleware components for the gateway
// including bearer-token authentication, rate limiting, CORS, logging, and
// security headers.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jusscott/risk-assessment-app-sub002/internal/authn"
	"github.com/jusscott/risk-assessment-app-sub002/internal/config"
	"github.com/jusscott/risk-assessment-app-sub002/internal/constants"
	"github.com/jusscott/risk-assessment-app-sub002/pkg/logger"
)

const (
	// HTTPClientError minimum status code (4xx).
	HTTPClientError = 400
	// HTTPServerError minimum status code (5xx).
	HTTPServerError = 500
)

// contextKey is an unexported type for keys stored in context to avoid collisions.
type contextKey string

// principalKey is the context key under which the authenticated Principal is stored.
const principalKey contextKey = "principal"

// TokenAuthenticator validates a raw bearer token and returns the
// authenticated Principal. Implemented by authn.Validator.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, rawToken string) (authn.Principal, error)
}

// Stack holds all middleware dependencies and provides
// methods to create HTTP middleware handlers.
type Stack struct {
	config    *config.Config
	validator TokenAuthenticator
	limiter   *redis_rate.Limiter
	logger    *logrus.Logger
}

// NewStack creates a new middleware stack with the provided dependencies.
// The redisClient parameter is optional and only used for rate limiting.
// If nil, rate limiting is disabled gracefully.
func NewStack(cfg *config.Config, validator TokenAuthenticator, redisClient *redis.Client, log *logrus.Logger) *Stack {
	var limiter *redis_rate.Limiter
	if redisClient != nil {
		limiter = redis_rate.NewLimiter(redisClient)
	}

	return &Stack{
		config:    cfg,
		validator: validator,
		limiter:   limiter,
		logger:    log,
	}
}

// Chain applies multiple middleware functions to an HTTP handler.
func (m *Stack) Chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := range middleware {
		h = middleware[len(middleware)-1-i](h)
	}
	return h
}

// PrincipalFromContext returns the authenticated Principal stored by the
// Authenticate middleware, and whether one is present.
func PrincipalFromContext(ctx context.Context) (authn.Principal, bool) {
	p, ok := ctx.Value(principalKey).(authn.Principal)
	return p, ok
}

// Authenticate validates the request's bearer token and attaches the
// resulting Principal to the request context. Identity headers are forwarded
// for upstream services. Every validation failure is rejected with the same
// generic 401 body; the failure kind is logged, not exposed.
func (m *Stack) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken, ok := bearerToken(r)
		if !ok {
			m.rejectUnauthenticated(w, r, authn.ErrMissingToken)
			return
		}

		principal, err := m.validator.Authenticate(r.Context(), rawToken)
		if err != nil {
			m.rejectUnauthenticated(w, r, err)
			return
		}

		// Upstream services consume the identity from these headers; strip
		// any client-supplied values first so they cannot be spoofed.
		r.Header.Del(constants.HeaderXUserID)
		r.Header.Del(constants.HeaderXUserRole)
		r.Header.Set(constants.HeaderXUserID, principal.ID)
		r.Header.Set(constants.HeaderXUserRole, principal.Role)

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rejectUnauthenticated logs the real failure kind and writes the uniform
// 401 response.
func (m *Stack) rejectUnauthenticated(w http.ResponseWriter, r *http.Request, err error) {
	logger.WithCorrelationID(r.Context(), m.logger).WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"method": r.Method,
		"reason": err.Error(),
	}).Warn("Request rejected by authentication")

	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusUnauthorized)

	response := map[string]interface{}{
		"error":             "unauthenticated",
		"error_description": "Authentication required",
	}
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		m.logger.WithError(encodeErr).Error("Failed to encode authentication error response")
	}
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(constants.HeaderAuthorization)
	if header == "" {
		return "", false
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return "", false
	}
	return token, true
}

// RequestLogger logs HTTP requests with structured logging including
// request details, response status, and processing duration.
func (m *Stack) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Reuse an inbound request ID when a trusted edge already assigned
		// one; generate otherwise.
		requestID := r.Header.Get(constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := logger.SetCorrelationID(r.Context(), requestID)
		r = r.WithContext(ctx)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		wrapped.Header().Set(constants.HeaderXRequestID, requestID)

		next.ServeHTTP(wrapped, r)

		// Health probes would otherwise dominate the logs.
		if strings.HasPrefix(r.URL.Path, "/health") {
			return
		}

		duration := time.Since(start)

		fields := logrus.Fields{
			"method":         r.Method,
			"path":           r.URL.Path,
			"query":          r.URL.RawQuery,
			"status":         wrapped.statusCode,
			"duration":       duration.String(),
			"duration_ms":    duration.Milliseconds(),
			"remote_addr":    getClientIP(r),
			"user_agent":     r.UserAgent(),
			"content_length": r.ContentLength,
		}

		level := logrus.InfoLevel
		if wrapped.statusCode >= HTTPClientError {
			level = logrus.WarnLevel
		}
		if wrapped.statusCode >= HTTPServerError {
			level = logrus.ErrorLevel
		}

		logger.WithCorrelationID(r.Context(), m.logger).WithFields(fields).Log(level, "HTTP request processed")
	})
}

// RateLimit implements Redis-based rate limiting per client IP address.
// It uses a token bucket algorithm with configurable requests per second and burst limits.
func (m *Stack) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		clientIP := getClientIP(r)

		// Allow requests from trusted proxies without rate limiting
		if m.isTrustedProxy(clientIP) {
			next.ServeHTTP(w, r)
			return
		}

		// If the limiter is not available (no Redis), allow the request
		if m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		rateLimitKey := "gateway:ratelimit:client:" + clientIP

		result, err := m.limiter.Allow(ctx, rateLimitKey, redis_rate.Limit{
			Rate:   m.config.Security.RateLimitRPS,
			Burst:  m.config.Security.RateLimitBurst,
			Period: time.Second,
		})
		if err != nil {
			m.logger.WithError(err).Error("Failed to check rate limit")
			// Allow request on error to avoid blocking legitimate traffic
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-Ratelimit-Limit", strconv.Itoa(result.Limit.Burst))
		w.Header().Set("X-Ratelimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-Ratelimit-Reset", strconv.FormatInt(time.Now().Add(result.ResetAfter).Unix(), 10))

		if result.Allowed == 0 {
			m.logger.WithFields(logrus.Fields{
				"client_ip": clientIP,
				"path":      r.URL.Path,
				"method":    r.Method,
			}).Warn("Rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CORS handles Cross-Origin Resource Sharing headers based on configuration.
func (m *Stack) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.setCORSHeaders(w, r)

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setCORSHeaders sets the CORS headers based on the configured security settings.
func (m *Stack) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	if origin != "" && m.isOriginAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	} else if len(m.config.Security.AllowedOrigins) == 1 && m.config.Security.AllowedOrigins[0] == "*" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}

	if len(m.config.Security.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(m.config.Security.AllowedMethods, ", "))
	}

	if len(m.config.Security.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(m.config.Security.AllowedHeaders, ", "))
	}

	if m.config.Security.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	if m.config.Security.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(m.config.Security.MaxAge))
	}
}

// SecurityHeaders adds security-related HTTP headers to responses.
func (m *Stack) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// HSTS header for HTTPS
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// Recovery recovers from panics and logs them while returning a proper error response.
func (m *Stack) Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithCorrelationID(r.Context(), m.logger).WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  err,
				}).Error("Panic recovered")

				// Return generic error to client
				w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(
					`{"error": "internal_server_error", ` +
						`"error_description": "An unexpected error occurred"}`,
				))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter

	statusCode int
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the real client IP address from various headers.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (load balancers, proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	// Check X-Real-IP header (nginx, some proxies)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	return strings.Split(r.RemoteAddr, ":")[0]
}

// isTrustedProxy checks if the IP address is in the trusted proxies list.
func (m *Stack) isTrustedProxy(ip string) bool {
	for _, trustedIP := range m.config.Security.TrustedProxies {
		if ip == trustedIP {
			return true
		}
	}
	return false
}

// isOriginAllowed checks if an origin is allowed for CORS.
func (m *Stack) isOriginAllowed(origin string) bool {
	for _, allowedOrigin := range m.config.Security.AllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}
	return false
}
