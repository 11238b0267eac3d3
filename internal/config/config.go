// Package config loads the server configuration from a YAML file with
// environment overrides.
//
// LOAD ORDER:
//
//	YAML file (optional) → GATE_* env vars → validate → defaults
//
// Secrets (JWT secret, admin key hash, classifier client secret) usually come
// from the environment so the YAML file can be committed.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Policy     PolicyConfig     `yaml:"policy"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Admin      AdminConfig      `yaml:"admin"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlitePath"`
	RedisURL   string `yaml:"redisURL"`
}

type PolicyConfig struct {
	InactivityThreshold time.Duration `yaml:"inactivityThreshold"`
	ReactivationWindow  time.Duration `yaml:"reactivationWindow"`
	// Pointer so an explicit false survives setDefaults.
	EnableDeactivation *bool `yaml:"enableDeactivation"`
}

type TimeoutConfig struct {
	Store      time.Duration `yaml:"store"`
	Classifier time.Duration `yaml:"classifier"`
}

// ClassifierConfig points at the remote activity classifier. An empty URL
// disables the security veto.
type ClassifierConfig struct {
	URL          string   `yaml:"url"`
	ClientID     string   `yaml:"clientID"`
	ClientSecret string   `yaml:"clientSecret"`
	TokenURL     string   `yaml:"tokenURL"`
	Scopes       []string `yaml:"scopes"`
}

type AdminConfig struct {
	// KeyHash is the bcrypt hash of the admin key (see `account-gate hash-key`).
	KeyHash   string        `yaml:"keyHash"`
	JWTSecret string        `yaml:"jwtSecret"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
}

type SweeperConfig struct {
	// Interval 0 disables the sweeper.
	Interval time.Duration `yaml:"interval"`
}

type RateLimitConfig struct {
	LoginPerMinute int `yaml:"loginPerMinute"`
}

// Load reads path, applies env overrides, validates and fills defaults. A
// missing file is not an error: the result is built from env and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults + env only
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("GATE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GATE_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("GATE_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("GATE_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("GATE_REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	}
	if v := os.Getenv("GATE_CLASSIFIER_URL"); v != "" {
		c.Classifier.URL = v
	}
	if v := os.Getenv("GATE_CLASSIFIER_CLIENT_SECRET"); v != "" {
		c.Classifier.ClientSecret = v
	}
	if v := os.Getenv("GATE_ADMIN_KEY_HASH"); v != "" {
		c.Admin.KeyHash = v
	}
	if v := os.Getenv("GATE_JWT_SECRET"); v != "" {
		c.Admin.JWTSecret = v
	}
	if v := os.Getenv("GATE_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GATE_SWEEP_INTERVAL: %w", err)
		}
		c.Sweeper.Interval = d
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/account-gate.db"
	}
	if c.Policy.InactivityThreshold == 0 {
		c.Policy.InactivityThreshold = 7 * 24 * time.Hour
	}
	if c.Policy.ReactivationWindow == 0 {
		c.Policy.ReactivationWindow = 12 * time.Hour
	}
	if c.Policy.EnableDeactivation == nil {
		enabled := true
		c.Policy.EnableDeactivation = &enabled
	}
	if c.Timeouts.Store == 0 {
		c.Timeouts.Store = 5 * time.Second
	}
	if c.Timeouts.Classifier == 0 {
		c.Timeouts.Classifier = 10 * time.Second
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 30 * time.Minute
	}
	if c.RateLimit.LoginPerMinute == 0 {
		c.RateLimit.LoginPerMinute = 10
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	switch c.Store.Backend {
	case BackendSQLite:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redisURL is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendSQLite, BackendRedis, c.Store.Backend)
	}
	if c.Policy.InactivityThreshold < 0 || c.Policy.ReactivationWindow < 0 {
		return fmt.Errorf("policy durations must not be negative")
	}
	if c.Sweeper.Interval < 0 {
		return fmt.Errorf("sweeper.interval must not be negative")
	}
	if c.RateLimit.LoginPerMinute < 0 {
		return fmt.Errorf("rateLimit.loginPerMinute must not be negative")
	}
	if c.Admin.KeyHash != "" && len(c.Admin.JWTSecret) < 16 {
		return fmt.Errorf("admin.jwtSecret must be at least 16 characters when admin.keyHash is set")
	}
	if c.Classifier.TokenURL != "" && c.Classifier.ClientID == "" {
		return fmt.Errorf("classifier.clientID is required with classifier.tokenURL")
	}
	return nil
}

// Addr is the listen address for http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DeactivationEnabled reports the effective policy.enableDeactivation.
func (c *Config) DeactivationEnabled() bool {
	return c.Policy.EnableDeactivation == nil || *c.Policy.EnableDeactivation
}
