package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cyw0ng95/txproxy/pkg/common"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/txconfig"
)

// NewRootCommand builds the cobra command tree, grounded on
// tinyland-inc-tinyclaw's NewPicoclawCommand construction pattern: load
// environment defaults first, then register flags whose starting values
// are those defaults so an explicit flag always wins over the environment.
func NewRootCommand() *cobra.Command {
	cfg, err := txconfig.Load()
	if err != nil {
		cfg = &txconfig.Config{}
		common.Warn("failed to load environment config, starting from an empty config: %v", err)
	}

	cmd := &cobra.Command{
		Use:     "txproxy",
		Short:   "JSON-RPC reverse proxy for a rollup transaction pipeline",
		Version: common.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "bind address")
	flags.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "bind port")
	flags.IntVar(&cfg.MaxConcurrentConnections, "http.max-concurrent-connections", cfg.MaxConcurrentConnections, "accept cap")
	flags.IntVar(&cfg.RateLimitPerSecond, "rate-limit", cfg.RateLimitPerSecond, "optional per-client requests/second cap, 0 disables")

	flags.StringVar(&cfg.JWTToken, "jwt-token", cfg.JWTToken, "inbound JWT secret")
	flags.StringVar(&cfg.JWTPath, "jwt-path", cfg.JWTPath, "inbound JWT secret file")

	flags.StringVar(&cfg.BuilderURL0, "builder-url-0", cfg.BuilderURL0, "validator target URL 0")
	flags.StringVar(&cfg.BuilderURL1, "builder-url-1", cfg.BuilderURL1, "validator target URL 1")
	flags.StringVar(&cfg.BuilderURL2, "builder-url-2", cfg.BuilderURL2, "validator target URL 2")
	flags.StringVar(&cfg.BuilderJWTToken, "builder-jwt-token", cfg.BuilderJWTToken, "validator outbound JWT secret")
	flags.StringVar(&cfg.BuilderJWTPath, "builder-jwt-path", cfg.BuilderJWTPath, "validator outbound JWT secret file")
	flags.IntVar(&cfg.BuilderTimeoutMs, "builder-timeout", cfg.BuilderTimeoutMs, "validator per-call timeout in ms")

	flags.StringVar(&cfg.L2URL0, "l2-url-0", cfg.L2URL0, "executor target URL 0")
	flags.StringVar(&cfg.L2URL1, "l2-url-1", cfg.L2URL1, "executor target URL 1")
	flags.StringVar(&cfg.L2URL2, "l2-url-2", cfg.L2URL2, "executor target URL 2")
	flags.StringVar(&cfg.L2JWTToken, "l2-jwt-token", cfg.L2JWTToken, "executor outbound JWT secret")
	flags.StringVar(&cfg.L2JWTPath, "l2-jwt-path", cfg.L2JWTPath, "executor outbound JWT secret file")
	flags.IntVar(&cfg.L2TimeoutMs, "l2-timeout", cfg.L2TimeoutMs, "executor per-call timeout in ms")

	flags.BoolVar(&cfg.MetricsEnabled, "metrics", cfg.MetricsEnabled, "enable the Prometheus exporter")
	flags.StringVar(&cfg.MetricsHost, "metrics-host", cfg.MetricsHost, "metrics bind host")
	flags.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "metrics bind port")

	flags.BoolVar(&cfg.TracingEnabled, "tracing", cfg.TracingEnabled, "enable OTLP tracing hooks")
	flags.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", cfg.OTLPEndpoint, "OTLP collector endpoint")

	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")

	return cmd
}

// bindAddr formats the configured HTTP bind address and port.
func bindAddr(cfg *txconfig.Config) string {
	return fmt.Sprintf("%s:%d", cfg.HTTPAddr, cfg.HTTPPort)
}
