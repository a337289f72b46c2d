package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	AuthModeDevelopment  = "development"
	AuthModeExternal     = "external"
	AuthModeSharedSecret = "shared-secret"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	AuthMode          string        `mapstructure:"AUTH_MODE"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	AnalysisCacheTTL  time.Duration `mapstructure:"ANALYSIS_CACHE_TTL"`
	KafkaBrokers      []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic        string        `mapstructure:"KAFKA_TOPIC"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL       string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience      string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey    string        `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultTenant     string        `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit         string        `mapstructure:"BODY_LIMIT"`
	AnalysisBodyLimit string        `mapstructure:"ANALYSIS_BODY_LIMIT"`
	MetricsEnabled    bool          `mapstructure:"METRICS_ENABLED"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "AUTH_MODE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "ANALYSIS_CACHE_TTL", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"DEFAULT_TENANT", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT", "BODY_LIMIT", "ANALYSIS_BODY_LIMIT", "METRICS_ENABLED",
}

// Load reads an optional .env file and the environment. DATABASE_URL is the
// only required key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUTH_MODE", "") // inferred, see ResolvedAuthMode
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("ANALYSIS_CACHE_TTL", "10m")
	v.SetDefault("KAFKA_TOPIC", "optm.analysis.completed")
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("ANALYSIS_BODY_LIMIT", "5M")
	v.SetDefault("METRICS_ENABLED", true)

	// Unmarshal only sees environment values for bound keys.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// splitList normalises comma separated values that viper may hand over either
// as a single string or already split.
func splitList(values []string, raw string) []string {
	if len(values) == 0 && raw != "" {
		values = []string{raw}
	}
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set. Otherwise development
// environments get the development mode, a signing key selects shared-secret
// and everything else validates tokens against the external identity provider.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return AuthModeDevelopment
	}
	if c.AuthSigningKey != "" && c.AuthJWKSURL == "" {
		return AuthModeSharedSecret
	}
	return AuthModeExternal
}

// CacheEnabled reports whether analysis results are cached in Redis.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

// EventsEnabled reports whether analysis events are published to Kafka.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeDevelopment:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE %q is not allowed when ENV=production", mode)
		}
	case AuthModeExternal:
		if c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL must be set when AUTH_MODE is %q (current ENV=%q)", mode, c.Env)
		}
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER must be set when AUTH_MODE is %q", mode)
		}
	case AuthModeSharedSecret:
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q, %q or %q, got %q",
			AuthModeDevelopment, AuthModeExternal, AuthModeSharedSecret, mode)
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.EventsEnabled() && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}
