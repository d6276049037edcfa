package authn

import "errors"

// Sentinel errors returned by Validator.Authenticate. Callers map every one of
// them to a generic 401 response; the distinction exists for logging and
// metrics, not for clients.
var (
	// ErrMissingToken indicates no bearer token was supplied at all. This is
	// a caller precondition failure and is never retried.
	ErrMissingToken = errors.New("no bearer token supplied")

	// ErrTokenExpired indicates the token's expiry claim is in the past.
	// Expiry is unambiguous, so neither the remote authority nor the local
	// fallback is consulted.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the token failed validation on both the
	// remote and local paths: bad signature, malformed payload, or a payload
	// without a usable identity claim.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrAuthorityUnavailable indicates the remote authority is unreachable
	// and local fallback could not be attempted (disabled or no shared secret
	// configured). Kept distinct from ErrTokenInvalid so outages can be
	// alerted on separately from bad credentials.
	ErrAuthorityUnavailable = errors.New("authentication authority unavailable")
)
