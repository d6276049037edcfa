// Package proxy reverse-proxies gateway traffic to the platform's upstream
// services according to the configured route table.
package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jusscott/risk-assessment-app-sub002/internal/config"
	"github.com/jusscott/risk-assessment-app-sub002/internal/constants"
	"github.com/jusscott/risk-assessment-app-sub002/pkg/logger"
)

// route pairs a configured route with its prepared reverse proxy.
type route struct {
	cfg   config.Route
	proxy *httputil.ReverseProxy
}

// Handler proxies inbound requests to upstream services. One reverse proxy
// is prepared per route at construction time.
type Handler struct {
	routes []route
	logger *logrus.Logger
}

// New builds a proxy Handler from the route table. Each route's upstream
// base URL is resolved from the service name; an unresolvable or malformed
// upstream URL is a configuration error.
func New(cfg *config.Config, routes []config.Route, log *logrus.Logger) (*Handler, error) {
	h := &Handler{logger: log}

	// Longest prefix first so /api/v1/auth/profile wins over /api/v1/auth.
	sorted := make([]config.Route, len(routes))
	copy(sorted, routes)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	for _, rc := range sorted {
		base := cfg.UpstreamURL(rc.Service)
		if base == "" {
			return nil, fmt.Errorf("no upstream URL configured for service %q", rc.Service)
		}

		target, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream URL %q for service %q: %w", base, rc.Service, err)
		}

		h.routes = append(h.routes, route{
			cfg:   rc,
			proxy: h.newReverseProxy(target, rc),
		})
	}

	return h, nil
}

// newReverseProxy prepares the reverse proxy for a single route, rewriting
// the inbound prefix and propagating the correlation ID upstream.
func (h *Handler) newReverseProxy(target *url.URL, rc config.Route) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = rewritePath(pr.In.URL.Path, rc.Prefix, rc.Rewrite)
			pr.Out.URL.RawPath = ""
			pr.Out.Host = target.Host
			pr.SetXForwarded()

			if id := logger.CorrelationID(pr.In.Context()); id != "" {
				pr.Out.Header.Set(constants.HeaderXRequestID, id)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.WithCorrelationID(r.Context(), h.logger).WithFields(logrus.Fields{
				"service": rc.Service,
				"path":    r.URL.Path,
				"error":   err,
			}).Error("Upstream request failed")

			w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(
				`{"error": "bad_gateway", ` +
					`"error_description": "Upstream service is unavailable"}`,
			))
		},
	}
}

// Register mounts every route on the router. Routes not marked public are
// wrapped with the authenticate middleware.
func (h *Handler) Register(router *mux.Router, authenticate func(http.Handler) http.Handler) {
	for _, rt := range h.routes {
		var handler http.Handler = rt.proxy
		if !rt.cfg.Public {
			handler = authenticate(handler)
		}
		router.PathPrefix(rt.cfg.Prefix).Handler(handler)
	}
}

// Routes returns the configured routes in registration (longest-prefix)
// order. Exposed for health reporting.
func (h *Handler) Routes() []config.Route {
	out := make([]config.Route, 0, len(h.routes))
	for _, rt := range h.routes {
		out = append(out, rt.cfg)
	}
	return out
}

// rewritePath swaps the route prefix for its upstream form, preserving the
// remainder of the path.
func rewritePath(path, prefix, rewrite string) string {
	if rewrite == "" || !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimPrefix(path, prefix)
	if rest != "" && !strings.HasPrefix(rest, "/") {
		// Avoid rewriting /api/v1/reportsfoo for prefix /api/v1/reports.
		return path
	}
	return rewrite + rest
}
