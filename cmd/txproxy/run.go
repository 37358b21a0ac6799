package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyw0ng95/txproxy/pkg/common"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/fanout"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/middleware"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/proxy"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/target"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/txconfig"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/validation"
)

// runServer wires every txproxy component from cfg and blocks until ctx is
// cancelled or a fatal startup error occurs, grounded on cmd/access/run.go's
// build-router/bind-listener/wait-for-signal shape.
func runServer(ctx context.Context, cfg *txconfig.Config) error {
	loggingCfg := cfg.LoggingConfig()
	logger := common.NewLogger(loggingCfg.Writer(os.Stdout), "txproxy", loggingCfg.LevelValue())

	validators, err := buildGroup("builder", fanout.RequireAll, cfg.BuilderURLs(), cfg.BuilderJWTToken, cfg.BuilderJWTPath, time.Duration(cfg.BuilderTimeoutMs)*time.Millisecond, logger)
	if err != nil {
		return fmt.Errorf("build validator targets: %w", err)
	}
	executors, err := buildGroup("l2", fanout.BestEffort, cfg.L2URLs(), cfg.L2JWTToken, cfg.L2JWTPath, time.Duration(cfg.L2TimeoutMs)*time.Millisecond, logger)
	if err != nil {
		return fmt.Errorf("build executor targets: %w", err)
	}

	executorLayer := proxy.New(executors, logger.Fields(map[string]interface{}{"layer": "executor"}))
	validationLayer := validation.New(validators, validation.DefaultAllowList, executorLayer, logger.Fields(map[string]interface{}{"layer": "validation"}))

	router := buildRouter(cfg, validationLayer, logger)

	listener, err := net.Listen("tcp", bindAddr(cfg))
	if err != nil {
		return fmt.Errorf("listen on %s: %w", bindAddr(cfg), err)
	}
	listener = middleware.LimitListener(listener, cfg.MaxConcurrentConnections)

	srv := &http.Server{Handler: router}

	serveErrs := make(chan error, 2)
	go func() {
		logger.Info("serving JSON-RPC proxy on %s", bindAddr(cfg))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrs <- fmt.Errorf("proxy server: %w", err)
			return
		}
		serveErrs <- nil
	}()

	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", gzhttp.GzipHandler(promhttp.Handler()))
		metricsSrv = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			logger.Info("serving metrics on %s", metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErrs <- fmt.Errorf("metrics server: %w", err)
				return
			}
			serveErrs <- nil
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-sigCh:
		logger.Info("shutdown signal received")
	case err := <-serveErrs:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("proxy server shutdown error: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error: %v", err)
		}
	}

	return nil
}

// buildGroup resolves the JWT secret once and constructs one target.Target
// per configured URL, then wraps them in a fanout.Group of the given mode.
func buildGroup(label string, mode fanout.Mode, urls []string, jwtToken, jwtPath string, timeout time.Duration, logger *common.Logger) (*fanout.Group, error) {
	if len(urls) == 0 {
		return fanout.New(label, mode), nil
	}

	secret, err := txconfig.ResolveSecret(jwtToken, jwtPath)
	if err != nil {
		return nil, fmt.Errorf("%s JWT secret: %w", label, err)
	}

	targets := make([]*target.Target, 0, len(urls))
	for i, url := range urls {
		name := fmt.Sprintf("%s-%d", label, i)
		t, err := target.New(name, url, secret, timeout, logger.Fields(map[string]interface{}{"target": name}))
		if err != nil {
			return nil, fmt.Errorf("construct target %s: %w", name, err)
		}
		targets = append(targets, t)
	}
	return fanout.New(label, mode, targets...), nil
}

// buildRouter assembles the gin request chain: health, optional rate limit,
// optional auth, then the validation layer as the terminal handler.
func buildRouter(cfg *txconfig.Config, validationLayer *validation.Layer, logger *common.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST", "GET"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/health", middleware.Health)

	chain := router.Group("/")
	if cfg.RateLimitPerSecond > 0 {
		chain.Use(middleware.RateLimit(cfg.RateLimitPerSecond))
	}
	if cfg.JWTToken != "" || cfg.JWTPath != "" {
		secret, err := txconfig.ResolveSecret(cfg.JWTToken, cfg.JWTPath)
		if err != nil {
			logger.Fatal("inbound JWT secret: %v", err)
		}
		chain.Use(middleware.Auth(middleware.AuthConfig{Secret: secret, Logger: logger}))
	}
	chain.POST("/", validationLayer.Handle)

	return router
}
