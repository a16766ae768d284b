package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrIdentityNotConfigured is returned by New in prod when the identity
// provider URL or key is missing. Outside prod the server starts and every
// authenticated route answers 503.
var ErrIdentityNotConfigured = errors.New("identity provider is not configured")

type Config struct {
	Env                 string        `env:"ENV" envDefault:"dev"`                        // dev, staging, prod
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`                 // debug, info, warn, error
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`                // json, text
	Port                int           `env:"PORT" envDefault:"8080"`                      // HTTP server port
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`      // graceful shutdown timeout
	ReadHeaderTimeout   time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"3s"`         // http.Server.ReadHeaderTimeout
	IdentityURL         string        `env:"IDENTITY_URL"`                                // base URL of the identity provider
	IdentityAnonKey     string        `env:"IDENTITY_ANON_KEY"`                           // public API key of the identity provider
	AppURL              string        `env:"APP_URL" envDefault:"http://localhost:3000"`  // password reset redirect base
	DatabaseURL         string        `env:"DATABASE_URL"`                                // optional: read profiles directly from Postgres
	RedisURL            string        `env:"REDIS_URL"`                                   // optional: shared limiter ledger
	ResetMaxAttempts    int           `env:"PASSWORD_RESET_MAX_ATTEMPTS" envDefault:"3"`  // reset mails per address per window
	ResetWindow         time.Duration `env:"PASSWORD_RESET_WINDOW" envDefault:"1h"`       // reset limiter window
	ProfilesTimeout     time.Duration `env:"PROFILES_TIMEOUT" envDefault:"5s"`            // per-call timeout for profile reads/writes
	MetricsEnabled      bool          `env:"METRICS_ENABLED" envDefault:"true"`           // expose /metrics
	SwaggerEnabled      bool          `env:"SWAGGER_ENABLED" envDefault:"true"`           // expose /swagger/
}

// LoadConfig reads an optional .env file and parses the environment into a
// Config. Variables already set in the environment win over the file.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

// IdentityConfigured reports whether both identity settings are present.
func (c Config) IdentityConfigured() bool {
	return c.IdentityURL != "" && c.IdentityAnonKey != ""
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if c.IsProd() && !c.IdentityConfigured() {
		return ErrIdentityNotConfigured
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.ResetMaxAttempts <= 0 || c.ResetWindow <= 0 {
		return errors.New("password reset limiter needs a positive budget and window")
	}
	return nil
}
