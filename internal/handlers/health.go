// Package handlers provides the gateway's own HTTP endpoints: health and
// readiness probes. All other traffic is reverse-proxied.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jusscott/risk-assessment-app-sub002/internal/config"
	"github.com/jusscott/risk-assessment-app-sub002/internal/constants"
)

// HealthCheckTimeout is the default timeout for health check operations.
const HealthCheckTimeout = 5 * time.Second

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy HealthStatus = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy HealthStatus = "unhealthy"
	// StatusDegraded indicates the component has degraded performance.
	StatusDegraded HealthStatus = "degraded"
)

// CacheSizer reports the current size of the token validation cache.
// Implemented by authn.Validator.
type CacheSizer interface {
	CacheSize() int
}

// HealthHandler provides health check endpoints for the gateway.
type HealthHandler struct {
	config    *config.Config
	redis     *redis.Client
	validator CacheSizer
	logger    *logrus.Logger
	startTime time.Time
}

// HealthResponse represents the overall health check response.
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// ComponentHealth represents the health of an individual component.
type ComponentHealth struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
}

// ReadinessResponse represents the readiness check response.
type ReadinessResponse struct {
	Ready      bool                       `json:"ready"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// NewHealthHandler creates a new health check handler. The redis client may
// be nil when rate limiting is disabled.
func NewHealthHandler(cfg *config.Config, rdb *redis.Client, validator CacheSizer, log *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		config:    cfg,
		redis:     rdb,
		validator: validator,
		logger:    log,
		startTime: time.Now(),
	}
}

// Health reports overall gateway health including component states. A
// missing Redis connection degrades rather than fails the gateway since only
// rate limiting depends on it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	now := time.Now()
	components := map[string]ComponentHealth{
		"token_cache": {
			Status:      StatusHealthy,
			Message:     "validation cache operational",
			LastChecked: now,
		},
	}

	overall := StatusHealthy

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			components["redis"] = ComponentHealth{
				Status:      StatusUnhealthy,
				Message:     err.Error(),
				LastChecked: now,
			}
			overall = StatusDegraded
		} else {
			components["redis"] = ComponentHealth{
				Status:      StatusHealthy,
				LastChecked: now,
			}
		}
	} else {
		components["redis"] = ComponentHealth{
			Status:      StatusDegraded,
			Message:     "not configured, rate limiting disabled",
			LastChecked: now,
		}
		overall = StatusDegraded
	}

	resp := HealthResponse{
		Status:     overall,
		Timestamp:  now,
		Uptime:     time.Since(h.startTime).String(),
		Components: components,
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Liveness is a minimal probe: the process is up and serving.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// Readiness reports whether the gateway can serve traffic. The gateway is
// ready as soon as its configuration and route table are loaded; upstream
// outages surface per-request as 502s, not as unreadiness.
func (h *HealthHandler) Readiness(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()

	resp := ReadinessResponse{
		Ready:     true,
		Timestamp: now,
		Components: map[string]ComponentHealth{
			"config": {
				Status:      StatusHealthy,
				LastChecked: now,
			},
		},
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("Failed to encode health response")
	}
}
