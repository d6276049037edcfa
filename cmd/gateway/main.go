// Package main provides the entry point for the risk-platform API gateway.
// It initializes all dependencies, sets up HTTP routes with middleware,
// and starts the server with graceful shutdown support.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jusscott/risk-assessment-app-sub002/internal/authn"
	"github.com/jusscott/risk-assessment-app-sub002/internal/config"
	"github.com/jusscott/risk-assessment-app-sub002/internal/handlers"
	"github.com/jusscott/risk-assessment-app-sub002/internal/middleware"
	"github.com/jusscott/risk-assessment-app-sub002/internal/proxy"
	"github.com/jusscott/risk-assessment-app-sub002/internal/redis"
	"github.com/jusscott/risk-assessment-app-sub002/pkg/logger"
)

func main() {
	// Load .env.local file only in development (when GO_ENV is not set or set to "development")
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(".env.local"); err != nil {
			if !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "Warning: Error loading .env.local file: %v\n", err)
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log.Info("Starting risk-platform API gateway")
	log.WithFields(logrus.Fields{
		"port":        cfg.Server.Port,
		"host":        cfg.Server.Host,
		"environment": cfg.Environment.Environment,
		"tls":         cfg.IsTLSEnabled(),
	}).Info("Service configuration loaded")

	routes, err := config.LoadRoutes(cfg.Environment.Environment)
	if err != nil {
		log.WithError(err).Fatal("Failed to load route table")
	}

	// Redis is only needed for rate limiting; run degraded without it.
	redisClient, err := redis.NewClient(&cfg.Redis, log)
	if err != nil {
		log.WithError(err).Warn("Failed to connect to Redis, rate limiting disabled")
		redisClient = nil
	}
	defer closeRedis(redisClient, log)

	validator := newValidator(cfg, log)
	defer validator.Close()

	server, err := setupServer(cfg, routes, validator, redisClient, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up HTTP server")
	}

	runServer(server, cfg, log)
}

// newValidator wires up the token validation core: authority client,
// metrics, and the validator itself.
func newValidator(cfg *config.Config, log *logrus.Logger) *authn.Validator {
	authority := authn.NewAuthorityClient(
		cfg.Upstreams.AuthServiceURL,
		&http.Client{Timeout: cfg.Auth.RemoteTimeout},
		log,
	)

	metrics := authn.NewMetrics(prometheus.DefaultRegisterer)

	secret := cfg.EffectiveAuthSecret()
	if secret == "" {
		log.Warn("No token signing secret available, local fallback validation disabled")
	}

	return authn.NewValidator(&cfg.Auth, secret, authority, log, metrics)
}

func setupServer(
	cfg *config.Config,
	routes []config.Route,
	validator *authn.Validator,
	redisClient *goredis.Client,
	log *logrus.Logger,
) (*http.Server, error) {
	middlewareStack := middleware.NewStack(cfg, validator, redisClient, log)
	healthHandler := handlers.NewHealthHandler(cfg, redisClient, validator, log)

	proxyHandler, err := proxy.New(cfg, routes, log)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/live", healthHandler.Liveness).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Readiness).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	proxyHandler.Register(router, middlewareStack.Authenticate)

	finalHandler := middlewareStack.Chain(
		router,
		middlewareStack.Recovery,
		middlewareStack.RequestLogger,
		middlewareStack.SecurityHeaders,
		middlewareStack.CORS,
		middlewareStack.RateLimit,
	)

	return &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      finalHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, nil
}

func closeRedis(client *goredis.Client, log *logrus.Logger) {
	if client != nil {
		if err := client.Close(); err != nil {
			log.WithError(err).Error("Failed to close Redis connection")
		}
	}
}

func runServer(server *http.Server, cfg *config.Config, log *logrus.Logger) {
	go startServer(server, cfg, log)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.WithError(shutdownErr).Error("Server forced to shutdown")
	} else {
		log.Info("Server exited gracefully")
	}
}

func startServer(server *http.Server, cfg *config.Config, log *logrus.Logger) {
	log.WithFields(logrus.Fields{
		"addr": server.Addr,
		"tls":  cfg.IsTLSEnabled(),
	}).Info("Starting HTTP server")

	var startErr error
	if cfg.IsTLSEnabled() {
		startErr = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
	} else {
		startErr = server.ListenAndServe()
	}

	if startErr != nil && startErr != http.ErrServerClosed {
		log.WithError(startErr).Fatal("Failed to start server")
	}
}
