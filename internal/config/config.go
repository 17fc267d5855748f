package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ehr/loinc-conversion/internal/platform/middleware"
	"github.com/ehr/loinc-conversion/internal/platform/refdata"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	LoincTable      string `mapstructure:"LOINC_TABLE"`
	ArbitraryTable  string `mapstructure:"ARBITRARY_TABLE"`
	SynonymTable    string `mapstructure:"SYNONYM_TABLE"`
	ConversionTable string `mapstructure:"CONVERSION_TABLE"`

	BodyLimit        string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BatchConcurrency int           `mapstructure:"BATCH_CONCURRENCY"`
	RateLimitRPS     float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int           `mapstructure:"RATE_LIMIT_BURST"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`

	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`
	AuthJWKSURL   string `mapstructure:"AUTH_JWKS_URL"`
	AuthIssuer    string `mapstructure:"AUTH_ISSUER"`
	AuthAudience  string `mapstructure:"AUTH_AUDIENCE"`
	AuthScope     string `mapstructure:"AUTH_SCOPE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"LOINC_TABLE", "ARBITRARY_TABLE", "SYNONYM_TABLE", "CONVERSION_TABLE",
	"BODY_LIMIT", "REQUEST_TIMEOUT", "BATCH_CONCURRENCY",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ORIGINS",
	"AUTH_JWT_SECRET", "AUTH_JWKS_URL", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SCOPE",
}

// Load reads configuration from the environment and, when present, a .env
// file in the working directory. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOINC_TABLE", "data/Loinc.csv")
	v.SetDefault("ARBITRARY_TABLE", "data/arbitrary.tsv")
	v.SetDefault("SYNONYM_TABLE", "data/synonyms.tsv")
	v.SetDefault("CONVERSION_TABLE", "data/conversion.tsv")
	v.SetDefault("BODY_LIMIT", "10M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BATCH_CONCURRENCY", 8)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("CORS_ORIGINS", "*")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AuthEnabled reports whether bearer tokens are required.
func (c *Config) AuthEnabled() bool {
	return c.AuthJWTSecret != "" || c.AuthJWKSURL != ""
}

// Level returns the zerolog level named by LOG_LEVEL.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// TablePaths returns the reference table locations.
func (c *Config) TablePaths() refdata.Paths {
	return refdata.Paths{
		Loinc:       c.LoincTable,
		Arbitrary:   c.ArbitraryTable,
		Synonyms:    c.SynonymTable,
		Conversions: c.ConversionTable,
	}
}

// Validate checks the configuration before the server starts.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("ENV must be \"development\" or \"production\", got %q", c.Env)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	for name, path := range map[string]string{
		"LOINC_TABLE":      c.LoincTable,
		"ARBITRARY_TABLE":  c.ArbitraryTable,
		"SYNONYM_TABLE":    c.SynonymTable,
		"CONVERSION_TABLE": c.ConversionTable,
	} {
		if path == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if _, err := middleware.ParseLimit(c.BodyLimit); err != nil {
		return fmt.Errorf("BODY_LIMIT: %w", err)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1, got %d", c.BatchConcurrency)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.IsProduction() && !c.AuthEnabled() {
		return fmt.Errorf("AUTH_JWT_SECRET or AUTH_JWKS_URL is required in production")
	}
	if c.AuthScope != "" && !c.AuthEnabled() {
		return fmt.Errorf("AUTH_SCOPE requires AUTH_JWT_SECRET or AUTH_JWKS_URL")
	}
	if c.AuthJWTSecret != "" && len(c.AuthJWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 bytes, got %d", len(c.AuthJWTSecret))
	}
	return nil
}
