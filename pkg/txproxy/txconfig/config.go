// Package txconfig binds the proxy's CLI flags and their environment
// variable fallbacks into a single Config, modeled on the extensive
// env-tagged config struct pattern used elsewhere in the retrieved corpus
// (caarlos0/env/v11, struct field per flag, sensible envDefault values).
package txconfig

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/cyw0ng95/txproxy/pkg/common"
)

// Config is the fully resolved runtime configuration for the proxy.
type Config struct {
	HTTPAddr                  string `env:"TXPROXY_HTTP_ADDR" envDefault:"127.0.0.1"`
	HTTPPort                  int    `env:"TXPROXY_HTTP_PORT" envDefault:"8545"`
	MaxConcurrentConnections  int    `env:"TXPROXY_MAX_CONNECTIONS" envDefault:"500"`
	RateLimitPerSecond        int    `env:"TXPROXY_RATE_LIMIT_PER_SECOND" envDefault:"0"`

	JWTToken string `env:"TXPROXY_JWT_TOKEN"`
	JWTPath  string `env:"TXPROXY_JWT_PATH"`

	BuilderURL0      string        `env:"TXPROXY_BUILDER_URL_0"`
	BuilderURL1      string        `env:"TXPROXY_BUILDER_URL_1"`
	BuilderURL2      string        `env:"TXPROXY_BUILDER_URL_2"`
	BuilderJWTToken  string        `env:"TXPROXY_BUILDER_JWT_TOKEN"`
	BuilderJWTPath   string        `env:"TXPROXY_BUILDER_JWT_PATH"`
	BuilderTimeoutMs int           `env:"TXPROXY_BUILDER_TIMEOUT" envDefault:"1000"`

	L2URL0      string `env:"TXPROXY_L2_URL_0"`
	L2URL1      string `env:"TXPROXY_L2_URL_1"`
	L2URL2      string `env:"TXPROXY_L2_URL_2"`
	L2JWTToken  string `env:"TXPROXY_L2_JWT_TOKEN"`
	L2JWTPath   string `env:"TXPROXY_L2_JWT_PATH"`
	L2TimeoutMs int    `env:"TXPROXY_L2_TIMEOUT" envDefault:"1000"`

	MetricsEnabled bool   `env:"TXPROXY_METRICS_ENABLED" envDefault:"false"`
	MetricsHost    string `env:"TXPROXY_METRICS_HOST" envDefault:"127.0.0.1"`
	MetricsPort    int    `env:"TXPROXY_METRICS_PORT" envDefault:"9090"`

	TracingEnabled bool   `env:"TXPROXY_TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string `env:"TXPROXY_OTLP_ENDPOINT"`

	LogLevel  string `env:"TXPROXY_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TXPROXY_LOG_FORMAT" envDefault:"text"`

	ShutdownTimeout time.Duration `env:"TXPROXY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses environment variables into a Config with defaults applied.
// CLI flags bound by cobra override these values after Load returns; see
// cmd/txproxy/root.go for the binding order.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment config: %w", err)
	}
	return cfg, nil
}

// BuilderURLs returns the configured, non-empty validator target URLs in
// order.
func (c *Config) BuilderURLs() []string {
	return nonEmpty(c.BuilderURL0, c.BuilderURL1, c.BuilderURL2)
}

// L2URLs returns the configured, non-empty executor target URLs in order.
func (c *Config) L2URLs() []string {
	return nonEmpty(c.L2URL0, c.L2URL1, c.L2URL2)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// ResolveSecret returns the secret bytes for a token/path pair: the literal
// token if set, else the contents of the file at path, else an error. Both
// flag sources are documented as "(hex or file)"; a hex-encoded value is
// decoded to its raw bytes before use as HMAC key material, matching
// JwtSecret::from_hex in original_source/src/auth.rs. A value that does not
// decode as hex is used as-is.
func ResolveSecret(token, path string) ([]byte, error) {
	if token != "" {
		return decodeSecret(token), nil
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read JWT secret file %s: %w", path, err)
		}
		return decodeSecret(strings.TrimSpace(string(data))), nil
	}
	return nil, fmt.Errorf("no JWT secret configured (token or path required)")
}

// decodeSecret hex-decodes raw if it parses as hex, falling back to the raw
// bytes otherwise.
func decodeSecret(raw string) []byte {
	trimmed := strings.TrimPrefix(raw, "0x")
	if decoded, err := hex.DecodeString(trimmed); err == nil {
		return decoded
	}
	return []byte(raw)
}

// LogLevelValue maps the configured textual log level to common.LogLevel by
// delegating to common.LoggingConfig, the shared logging config shape used
// across every binary in this module.
func (c *Config) LogLevelValue() common.LogLevel {
	return c.LoggingConfig().LevelValue()
}

// LoggingConfig returns c's logging fields as a common.LoggingConfig, for
// callers that need the shared Writer/LevelValue behavior rather than the
// CLI-flag-shaped fields on Config itself.
func (c *Config) LoggingConfig() common.LoggingConfig {
	return common.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat}
}
