package authn

import (
	"strconv"
)

const (
	// DefaultRole is assigned when the authority response or token claims
	// carry no role information.
	DefaultRole = "USER"

	// PlaceholderEmail is used when no email is present in the validated
	// identity. Downstream services expect the field to be populated.
	PlaceholderEmail = "unknown@placeholder.local"
)

// Principal is the authenticated identity derived from a bearer token.
// A Principal with an empty ID is never valid; validation either produces a
// Principal with a non-empty ID or an error. Principals live only in the
// in-memory validation cache and are never persisted.
type Principal struct {
	// ID is the user identifier, always normalized to a string. Upstream
	// services return numeric IDs in some responses; cross-service consumers
	// require the decimal string form.
	ID string `json:"id"`

	// Email is the user's email address, or PlaceholderEmail when absent.
	Email string `json:"email"`

	// Role is the user's role, defaulting to DefaultRole.
	Role string `json:"role"`

	// Fallback is true when this Principal was produced by local signature
	// verification rather than the remote authority. Surfaced for
	// observability since it indicates a degraded trust posture.
	Fallback bool `json:"fallback,omitempty"`
}

// identityClaimOrder is the fixed priority order of claim names checked when
// extracting an identity from token claims or an authority response. The
// legacy names are part of the historical authority contract and must all
// remain supported.
var identityClaimOrder = []string{"sub", "userId", "user_id", "id"}

// extractIdentity finds the identity value in a claims map, checking the
// known claim names in priority order and then a nested "user" object.
// Returns the normalized string ID and whether one was found.
func extractIdentity(claims map[string]interface{}) (string, bool) {
	for _, name := range identityClaimOrder {
		if v, ok := claims[name]; ok {
			if id := normalizeID(v); id != "" {
				return id, true
			}
		}
	}

	// Some authority responses nest the identity under a user object.
	if user, ok := claims["user"].(map[string]interface{}); ok {
		for _, name := range identityClaimOrder {
			if v, ok := user[name]; ok {
				if id := normalizeID(v); id != "" {
					return id, true
				}
			}
		}
	}

	return "", false
}

// normalizeID coerces an identity value of any upstream type to its string
// form. Numeric values become their decimal representation; unsupported
// types normalize to the empty string.
func normalizeID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		// JSON numbers decode as float64. Integral values must not gain a
		// fractional suffix.
		if id == float64(int64(id)) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}

// stringClaim reads an optional string claim, returning fallback when the
// claim is absent, empty, or not a string.
func stringClaim(claims map[string]interface{}, name, fallback string) string {
	if v, ok := claims[name].(string); ok && v != "" {
		return v
	}
	return fallback
}
