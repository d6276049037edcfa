// Package authn implements bearer-token validation for the gateway. A
// Validator checks an in-memory adaptive-TTL cache, coalesces concurrent
// validations of the same token into a single remote call, consults the
// remote authentication authority with bounded retry and a circuit breaker,
// and falls back to local signature verification when the authority is
// unreachable.
package authn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/jusscott/risk-assessment-app-sub002/internal/config"
	"github.com/jusscott/risk-assessment-app-sub002/pkg/logger"
)

// errRemoteDown marks a remote validation that failed for availability
// reasons: retries exhausted on transient errors, or the circuit breaker is
// open. It is the trigger for local fallback and never escapes Authenticate.
var errRemoteDown = errors.New("remote authority unreachable")

// hmacMethods are the signing algorithms accepted during local fallback
// verification. The platform signs tokens with the HMAC family only.
var hmacMethods = []string{"HS256", "HS384", "HS512"}

// remoteOutcome separates the authority's verdict from transport failures so
// that a definitive "token invalid" answer does not count against the
// circuit breaker.
type remoteOutcome struct {
	response *validationResponse
	verdict  error
}

// Validator validates bearer tokens. It owns the process-wide validation
// cache and the in-flight coalescing state; construct one at startup and
// share it across request handlers.
type Validator struct {
	cfg       *config.AuthConfig
	secret    string
	authority *AuthorityClient
	cache     *tokenCache
	breaker   *gobreaker.CircuitBreaker
	group     singleflight.Group
	logger    *logrus.Logger
	metrics   *Metrics

	// pending tracks when each coalesced validation started so the sweeper
	// can forget entries whose remote call never resolved.
	mu      sync.Mutex
	pending map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewValidator creates a Validator and starts its background sweep goroutine.
// The secret is the resolved shared signing secret for local fallback
// verification (empty disables fallback structurally). Call Close on
// shutdown to stop the sweeper.
func NewValidator(
	cfg *config.AuthConfig,
	secret string,
	authority *AuthorityClient,
	log *logrus.Logger,
	metrics *Metrics,
) *Validator {
	v := &Validator{
		cfg:       cfg,
		secret:    secret,
		authority: authority,
		cache:     newTokenCache(cfg.CacheTTL, cfg.CacheMaxTTL, cfg.CacheMaxIdle),
		logger:    log,
		metrics:   metrics,
		pending:   make(map[string]time.Time),
		stop:      make(chan struct{}),
	}

	v.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "auth-authority",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerFailureCount)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			v.metrics.breakerState(float64(to))
			v.logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Authority circuit breaker state changed")
		},
	})

	go v.runSweeper()

	return v
}

// Close stops the background sweeper. The Validator must not be used after
// Close returns.
func (v *Validator) Close() {
	v.stopOnce.Do(func() {
		close(v.stop)
	})
}

// Authenticate validates a bearer token and returns the authenticated
// Principal. The validation order is: expiry pre-check, cache lookup,
// coalesced remote validation with retry and circuit breaking, then local
// fallback verification. Any returned error is one of the package's sentinel
// errors and should be mapped to a generic 401 by the caller.
func (v *Validator) Authenticate(ctx context.Context, rawToken string) (Principal, error) {
	if rawToken == "" {
		v.metrics.result("missing")
		return Principal{}, ErrMissingToken
	}

	requestID := logger.CorrelationID(ctx)
	log := logger.WithCorrelationID(ctx, v.logger)

	// Expiry pre-check: a token already known to be dead never reaches the
	// network. The claims are decoded without signature verification; a
	// token too malformed to decode is left for the remote/local paths to
	// reject.
	if v.preCheckExpired(rawToken) {
		v.cache.remove(rawToken)
		v.metrics.result("expired")
		log.Debug("Token rejected by expiry pre-check")
		return Principal{}, ErrTokenExpired
	}

	if p, ok := v.cache.get(rawToken); ok {
		v.metrics.cacheHit()
		v.metrics.result("accepted")
		log.WithField("user_id", p.ID).Debug("Token validation cache hit")
		return p, nil
	}
	v.metrics.cacheMiss()

	// Coalesce: at most one remote validation per token is ever in flight;
	// every concurrent caller for the same token shares this one result.
	res, err, shared := v.group.Do(rawToken, func() (interface{}, error) {
		return v.validate(ctx, rawToken, requestID)
	})
	if shared {
		log.Debug("Token validation coalesced with in-flight request")
	}
	if err != nil {
		v.metrics.result(resultLabel(err))
		log.WithError(err).Info("Token validation rejected")
		return Principal{}, err
	}

	p, ok := res.(Principal)
	if !ok {
		return Principal{}, ErrTokenInvalid
	}
	v.metrics.result("accepted")
	return p, nil
}

// validate performs the uncached validation path for a single token. It runs
// at most once per token at any time, under the singleflight group.
func (v *Validator) validate(ctx context.Context, rawToken, requestID string) (interface{}, error) {
	v.trackPending(rawToken)
	defer v.untrackPending(rawToken)

	log := logger.WithCorrelationID(ctx, v.logger)

	p, err := v.validateRemote(ctx, rawToken, requestID)
	if err == nil {
		v.cache.put(rawToken, p)
		v.metrics.cacheSize(v.cache.size())
		log.WithField("user_id", p.ID).Debug("Token validated by remote authority")
		return p, nil
	}

	if !errors.Is(err, errRemoteDown) {
		// The authority gave a definitive verdict; fallback cannot improve
		// on it.
		return Principal{}, err
	}

	// Fallback is logged at elevated severity: serving traffic on local
	// verification means a degraded trust posture.
	log.WithError(err).Warn("Remote authority unreachable, attempting local fallback validation")

	if !v.cfg.FallbackEnabled {
		return Principal{}, ErrAuthorityUnavailable
	}
	v.metrics.fallback()

	fp, ferr := v.verifyLocal(rawToken)
	if ferr != nil {
		return Principal{}, ferr
	}

	v.cache.put(rawToken, fp)
	v.metrics.cacheSize(v.cache.size())
	log.WithField("user_id", fp.ID).Warn("Principal derived from local fallback validation")
	return fp, nil
}

// validateRemote calls the authority through the circuit breaker, retrying
// transient failures with exponential backoff. A definitive verdict (invalid
// token, malformed response) passes through the breaker as a success so that
// bad credentials cannot trip it.
func (v *Validator) validateRemote(ctx context.Context, rawToken, requestID string) (Principal, error) {
	result, err := v.breaker.Execute(func() (interface{}, error) {
		outcome, transportErr := v.callWithRetry(ctx, rawToken, requestID)
		if transportErr != nil {
			return nil, transportErr
		}
		return outcome, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			v.logger.Debug("Authority circuit breaker open, skipping remote validation")
		}
		return Principal{}, errors.Join(errRemoteDown, err)
	}

	outcome, ok := result.(*remoteOutcome)
	if !ok {
		return Principal{}, ErrTokenInvalid
	}
	if outcome.verdict != nil {
		return Principal{}, outcome.verdict
	}

	return principalFromResponse(outcome.response)
}

// callWithRetry issues the validate-token call with a bounded per-attempt
// timeout, retrying transient errors up to the configured maximum with
// exponential backoff. The returned error is transport-level only; the
// authority's own verdict travels inside the outcome.
func (v *Validator) callWithRetry(ctx context.Context, rawToken, requestID string) (*remoteOutcome, error) {
	outcome := &remoteOutcome{}
	attempt := 0

	operation := func() error {
		attempt++
		if attempt > 1 {
			v.metrics.remoteRetry()
			v.logger.WithFields(logrus.Fields{
				"attempt":    attempt,
				"request_id": requestID,
			}).Info("Retrying token validation against authority")
		}
		v.metrics.remoteAttempt()

		callCtx, cancel := context.WithTimeout(ctx, v.cfg.RemoteTimeout)
		defer cancel()

		resp, err := v.authority.ValidateToken(callCtx, rawToken, requestID)
		if err != nil {
			if isTransient(err) {
				return err
			}
			// Definitive answer: stop retrying and carry the verdict out.
			outcome.verdict = err
			return backoff.Permanent(err)
		}

		outcome.response = resp
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = v.cfg.RetryBackoffBase
	bo.MaxInterval = v.cfg.RetryBackoffCap
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithMaxRetries(bo, uint64(v.cfg.MaxRetries)))
	if err != nil && outcome.verdict == nil {
		return nil, err
	}
	return outcome, nil
}

// verifyLocal validates the token signature and expiry against the shared
// secret and builds a fallback Principal from its claims.
func (v *Validator) verifyLocal(rawToken string) (Principal, error) {
	if v.secret == "" {
		// No shared secret configured: fallback is structurally impossible.
		return Principal{}, ErrAuthorityUnavailable
	}

	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		return []byte(v.secret), nil
	}, jwt.WithValidMethods(hmacMethods))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrTokenInvalid
	}

	id, found := extractIdentity(claims)
	if !found {
		return Principal{}, ErrTokenInvalid
	}

	return Principal{
		ID:       id,
		Email:    stringClaim(claims, "email", PlaceholderEmail),
		Role:     stringClaim(claims, "role", DefaultRole),
		Fallback: true,
	}, nil
}

// preCheckExpired decodes the token claims without signature verification and
// reports whether the expiry claim is already in the past. Undecodable tokens
// and tokens without an expiry claim report false.
func (v *Validator) preCheckExpired(rawToken string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(rawToken, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

// CacheSize returns the number of live entries in the validation cache.
// Exposed for health reporting.
func (v *Validator) CacheSize() int {
	return v.cache.size()
}

func (v *Validator) trackPending(token string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.pending[token] = time.Now()
}

func (v *Validator) untrackPending(token string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.pending, token)
}

// purgeStalePending forgets coalescing entries whose validation has run past
// the stale cutoff, releasing future callers to start a fresh validation
// instead of waiting on a call that may never resolve.
func (v *Validator) purgeStalePending(now time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	purged := 0
	for token, started := range v.pending {
		if now.Sub(started) > v.cfg.PendingTimeout {
			v.group.Forget(token)
			delete(v.pending, token)
			purged++
		}
	}
	return purged
}

// runSweeper periodically evicts dead cache entries and purges stale
// in-flight markers until Close is called.
func (v *Validator) runSweeper() {
	ticker := time.NewTicker(v.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-v.stop:
			return
		case now := <-ticker.C:
			removed := v.cache.sweep(now)
			purged := v.purgeStalePending(now)
			v.metrics.cacheSize(v.cache.size())
			if removed > 0 || purged > 0 {
				v.logger.WithFields(logrus.Fields{
					"evicted":       removed,
					"stale_pending": purged,
					"remaining":     v.cache.size(),
				}).Debug("Validation cache sweep completed")
			}
		}
	}
}

// resultLabel maps a final validation error to its metrics label.
func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "missing"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrAuthorityUnavailable):
		return "unavailable"
	default:
		return "invalid"
	}
}
