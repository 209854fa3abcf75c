package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/amirasaad/bankcards/pkg/currency"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads the first env file found among envFilePaths, each searched for
// in the working directory and its parents, then decodes the environment.
// Variables already set in the process win over file values.
func Load(envFilePaths ...string) (*App, error) {
	logger := slog.Default()
	for _, name := range envFilePaths {
		path, err := findEnvFile(name)
		if err != nil {
			logger.Debug("Environment file not found", "name", name)
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Error("Failed to load environment file", "path", path, "error", err)
			continue
		}
		logger.Info("Loaded environment file", "path", path)
		return loadFromEnv()
	}
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found in current directory")
	}
	return loadFromEnv()
}

// findEnvFile returns the nearest file called name, starting in the working
// directory and walking up to the filesystem root.
func findEnvFile(name string) (string, error) {
	if name == "" {
		name = ".env"
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func loadFromEnv() (*App, error) {
	var cfg App
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.Default()
	logger.Info("App config loaded",
		"env", cfg.Env,
		"db", maskValue(cfg.DB.Url),
		"redis", maskValue(cfg.Redis.URL),
		"auth_jwt_expiry", cfg.Auth.Jwt.Expiry,
		"idempotency_ttl", cfg.Idempotency.TTL,
		"idempotency_claim_ttl", cfg.Idempotency.ClaimTTL,
		"ledger_lock_timeout", cfg.Ledger.LockTimeout,
		"card_default_currency", cfg.Card.DefaultCurrency,
		"card_expiry_schedule", cfg.Card.ExpirySchedule,
	)
	return &cfg, nil
}

// Validate checks values envconfig cannot check on its own.
func (c *App) Validate() error {
	if !currency.IsSupported(c.Card.DefaultCurrency) {
		return fmt.Errorf("CARD_DEFAULT_CURRENCY: unsupported currency %q", c.Card.DefaultCurrency)
	}
	if c.Idempotency.TTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL must be positive")
	}
	if c.Ledger.LockTimeout <= 0 {
		return fmt.Errorf("LEDGER_LOCK_TIMEOUT must be positive")
	}
	// A transfer may wait on two row locks inside one claim.
	if c.Idempotency.ClaimTTL <= 2*c.Ledger.LockTimeout {
		return fmt.Errorf("IDEMPOTENCY_CLAIM_TTL (%s) must exceed twice LEDGER_LOCK_TIMEOUT (%s)",
			c.Idempotency.ClaimTTL, c.Ledger.LockTimeout)
	}
	return nil
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
