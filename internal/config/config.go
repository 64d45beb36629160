package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for drive-sync.
type Config struct {
	// OAuth client credentials for the remote store (all required).
	// The refresh token is obtained out-of-band; drive-sync never runs
	// the browser authorization flow itself.
	ClientID     string `env:"DRIVE_CLIENT_ID"`
	ClientSecret string `env:"DRIVE_CLIENT_SECRET"`
	RefreshToken string `env:"DRIVE_REFRESH_TOKEN"`

	// Local vault directory to sync from (required).
	VaultDir string `env:"VAULT_DIR"`

	// Name of the remote root folder everything is synced under.
	RootFolder string `env:"DRIVE_ROOT_FOLDER" envDefault:"Obsidian Vault"`

	// Watch keeps the process running and re-syncs when vault files change.
	// The default is a single sync pass followed by exit.
	Watch bool `env:"WATCH" envDefault:"false"`

	// SyncInterval adds a periodic full pass in watch mode. Zero disables
	// the timer; passes then only run on filesystem change events.
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"0"`

	// Path of the persistent state database. Defaults to
	// ~/.drive-sync/state.db when empty.
	StatePath string `env:"STATE_PATH"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the OAuth credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Resolve VaultDir to an absolute path at startup. The vault layer
	// rejects paths escaping the vault directory by prefix comparison,
	// which only works reliably with absolute paths.
	absDir, err := filepath.Abs(cfg.VaultDir)
	if err != nil {
		return nil, fmt.Errorf("resolving vault dir to absolute path: %w", err)
	}

	cfg.VaultDir = absDir

	if cfg.StatePath == "" {
		path, err := DefaultStatePath()
		if err != nil {
			return nil, err
		}

		cfg.StatePath = path
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("DRIVE_CLIENT_ID is required")
	}

	if c.ClientSecret == "" {
		return fmt.Errorf("DRIVE_CLIENT_SECRET is required")
	}

	if c.RefreshToken == "" {
		return fmt.Errorf("DRIVE_REFRESH_TOKEN is required")
	}

	if c.VaultDir == "" {
		return fmt.Errorf("VAULT_DIR is required")
	}

	if c.SyncInterval < 0 {
		return fmt.Errorf("SYNC_INTERVAL must not be negative")
	}

	return nil
}

// DefaultStatePath returns the default location of the state database:
// ~/.drive-sync/state.db
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".drive-sync", "state.db"), nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
