package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jusscott/risk-assessment-app-sub002/internal/config"
	"github.com/jusscott/risk-assessment-app-sub002/internal/constants"
	"github.com/jusscott/risk-assessment-app-sub002/pkg/logger"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRewritePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		prefix  string
		rewrite string
		want    string
	}{
		{
			name:    "exact_prefix",
			path:    "/api/v1/reports",
			prefix:  "/api/v1/reports",
			rewrite: "/api/reports",
			want:    "/api/reports",
		},
		{
			name:    "prefix_with_remainder",
			path:    "/api/v1/reports/123/download",
			prefix:  "/api/v1/reports",
			rewrite: "/api/reports",
			want:    "/api/reports/123/download",
		},
		{
			name:    "empty_rewrite_keeps_path",
			path:    "/api/v1/reports/123",
			prefix:  "/api/v1/reports",
			rewrite: "",
			want:    "/api/v1/reports/123",
		},
		{
			name:    "partial_segment_not_rewritten",
			path:    "/api/v1/reportsarchive",
			prefix:  "/api/v1/reports",
			rewrite: "/api/reports",
			want:    "/api/v1/reportsarchive",
		},
		{
			name:    "non_matching_path_untouched",
			path:    "/api/v1/payments",
			prefix:  "/api/v1/reports",
			rewrite: "/api/reports",
			want:    "/api/v1/payments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rewritePath(tt.path, tt.prefix, tt.rewrite))
		})
	}
}

func TestNewRejectsUnknownUpstream(t *testing.T) {
	cfg := &config.Config{}
	routes := []config.Route{{Service: "billing", Prefix: "/api/v1/billing"}}

	_, err := New(cfg, routes, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no upstream URL")
}

func TestProxyRewritesAndForwards(t *testing.T) {
	type captured struct {
		path         string
		requestID    string
		forwardedFor string
	}
	got := make(chan captured, 1)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- captured{
			path:         r.URL.Path,
			requestID:    r.Header.Get(constants.HeaderXRequestID),
			forwardedFor: r.Header.Get(constants.HeaderXForwardedFor),
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"reports": []}`))
	}))
	defer upstream.Close()

	cfg := &config.Config{}
	cfg.Upstreams.ReportServiceURL = upstream.URL
	routes := []config.Route{
		{Service: "report", Prefix: "/api/v1/reports", Rewrite: "/api/reports"},
	}

	h, err := New(cfg, routes, testLogger())
	require.NoError(t, err)

	router := mux.NewRouter()
	h.Register(router, func(next http.Handler) http.Handler { return next })

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.SetCorrelationID(r.Context(), "corr-123")
		router.ServeHTTP(w, r.WithContext(ctx))
	}))
	defer gateway.Close()

	resp, err := http.Get(gateway.URL + "/api/v1/reports/42")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	seen := <-got
	assert.Equal(t, "/api/reports/42", seen.path)
	assert.Equal(t, "corr-123", seen.requestID)
	assert.NotEmpty(t, seen.forwardedFor)
}

func TestProxyAppliesAuthWrapperToPrivateRoutes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := &config.Config{}
	cfg.Upstreams.AuthServiceURL = upstream.URL
	cfg.Upstreams.ReportServiceURL = upstream.URL
	routes := []config.Route{
		{Service: "auth", Prefix: "/api/v1/auth", Public: true},
		{Service: "report", Prefix: "/api/v1/reports"},
	}

	h, err := New(cfg, routes, testLogger())
	require.NoError(t, err)

	var wrapped int
	authenticate := func(next http.Handler) http.Handler {
		wrapped++
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}

	router := mux.NewRouter()
	h.Register(router, authenticate)

	assert.Equal(t, 1, wrapped, "only the private route is wrapped")

	// Private route hits the auth wrapper.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Public route bypasses it.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProxyBadGatewayOnUpstreamFailure(t *testing.T) {
	// Point at a server that is already closed.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	upstream.Close()

	cfg := &config.Config{}
	cfg.Upstreams.ReportServiceURL = upstream.URL
	routes := []config.Route{
		{Service: "report", Prefix: "/api/v1/reports", Rewrite: "/api/reports"},
	}

	h, err := New(cfg, routes, testLogger())
	require.NoError(t, err)

	router := mux.NewRouter()
	h.Register(router, func(next http.Handler) http.Handler { return next })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad_gateway")
}
