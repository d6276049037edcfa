// Package constants contains shared HTTP header names and
// common content type strings used across the gateway.
package constants

// Header names commonly used across the application.
const (
	// HeaderAccept is the HTTP "Accept" header name.
	HeaderAccept = "Accept"

	// HeaderAuthorization is the HTTP "Authorization" header name.
	HeaderAuthorization = "Authorization"

	// HeaderContentType is the HTTP "Content-Type" header name.
	HeaderContentType = "Content-Type"

	// HeaderXRequestID is the request correlation ID header, propagated to
	// upstream services for cross-service tracing.
	HeaderXRequestID = "X-Request-Id"

	// HeaderXUserID carries the authenticated user ID to upstream services.
	HeaderXUserID = "X-User-Id"

	// HeaderXUserRole carries the authenticated user role to upstream services.
	HeaderXUserRole = "X-User-Role"

	// HeaderXForwardedFor is the standard forwarded-client-IP header.
	HeaderXForwardedFor = "X-Forwarded-For"
)

// Common media / content types used in requests and responses.
const (
	// ContentTypeJSON represents "application/json".
	ContentTypeJSON = "application/json"

	// ContentTypeFormURLEncoded represents
	// "application/x-www-form-urlencoded".
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"

	// ContentTypePlainUTF8 represents "text/plain; charset=utf-8".
	ContentTypePlainUTF8 = "text/plain; charset=utf-8"
)
