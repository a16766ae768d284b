package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	IdentityURL     string `env:"IDENTITY_URL"`
	IdentityAnonKey string `env:"IDENTITY_ANON_KEY"`
	AppURL          string `env:"APP_URL" envDefault:"http://localhost:3000"`
	DataDir         string `env:"MEDREC_DATA_DIR"`        // defaults to <user config dir>/medrec
	MasterKeyFile   string `env:"MEDREC_MASTER_KEY_FILE"` // see cryptox.LoadMasterKey
	LogLevel        string `env:"LOG_LEVEL" envDefault:"warn"`
}

// LoadConfig reads an optional .env file and the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.DataDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("locate config dir: %w", err)
		}
		cfg.DataDir = filepath.Join(dir, "medrec")
	}
	return cfg, nil
}
