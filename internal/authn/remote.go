package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jusscott/risk-assessment-app-sub002/internal/constants"
)

// errTransient wraps a network-level failure against the authority (connection
// refused, timeout, DNS failure, 5xx). Transient errors are eligible for
// retry; everything else is final.
type errTransient struct {
	err error
}

func (e *errTransient) Error() string { return "transient authority error: " + e.err.Error() }
func (e *errTransient) Unwrap() error { return e.err }

// isTransient reports whether an authority error may be retried.
func isTransient(err error) bool {
	var te *errTransient
	return errors.As(err, &te)
}

// validationResponse is the authority's answer to a validate-token request.
// User is decoded loosely because the authority contract has historically
// varied both the identity claim name and its type.
type validationResponse struct {
	Valid bool                   `json:"valid"`
	User  map[string]interface{} `json:"user"`
}

// AuthorityClient calls the remote authentication authority's validate-token
// operation. It performs a single attempt per call; retry, backoff, and
// circuit breaking are layered on by the Validator.
type AuthorityClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Logger
}

// NewAuthorityClient creates a client for the remote authentication
// authority. The timeout bounds each individual validation attempt.
func NewAuthorityClient(baseURL string, httpClient *http.Client, logger *logrus.Logger) *AuthorityClient {
	return &AuthorityClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// ValidateToken asks the authority to validate a bearer token, passing the
// request ID through for cross-service tracing.
//
// Error classification:
//   - network failure or 5xx: transient (retryable)
//   - 401/403: ErrTokenInvalid (final)
//   - any other non-2xx or malformed body: final
func (c *AuthorityClient) ValidateToken(ctx context.Context, rawToken, requestID string) (*validationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate-token", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation request: %w", err)
	}

	req.Header.Set(constants.HeaderAuthorization, "Bearer "+rawToken)
	req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	if requestID != "" {
		req.Header.Set(constants.HeaderXRequestID, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err,
		}).Warn("Token validation request failed")
		return nil, &errTransient{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrTokenInvalid
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &errTransient{err: fmt.Errorf("authority returned status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("authority returned unexpected status %d", resp.StatusCode)
	}

	var vr validationResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&vr); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode validation response: %w", decodeErr)
	}

	if !vr.Valid || vr.User == nil {
		return nil, ErrTokenInvalid
	}

	return &vr, nil
}

// principalFromResponse builds a Principal from a successful authority
// response, normalizing the identity to a string.
func principalFromResponse(vr *validationResponse) (Principal, error) {
	id, ok := extractIdentity(vr.User)
	if !ok {
		return Principal{}, ErrTokenInvalid
	}

	return Principal{
		ID:    id,
		Email: stringClaim(vr.User, "email", PlaceholderEmail),
		Role:  stringClaim(vr.User, "role", DefaultRole),
	}, nil
}
