package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/crypto/bcrypt"
)

const envPrefix = "STOREFRONT_"

type Config struct {
	App struct {
		Environment string `koanf:"environment"`
		LogLevel    string `koanf:"log_level"`
		LogFile     string `koanf:"log_file"`
	} `koanf:"app"`

	Store struct {
		Backend      string `koanf:"backend"`
		DataPath     string `koanf:"data_path"`
		DatabasePath string `koanf:"database_path"`
	} `koanf:"store"`

	Admin struct {
		Username string `koanf:"username"`
		Password string `koanf:"password"`
		Email    string `koanf:"email"`
	} `koanf:"admin"`

	Auth struct {
		LoginAttemptsPerMinute int `koanf:"login_attempts_per_minute"`
		BcryptCost             int `koanf:"bcrypt_cost"`
	} `koanf:"auth"`
}

// Default returns the configuration used when no file or environment overrides are present.
func Default() *Config {
	cfg := &Config{}
	cfg.App.Environment = "production"
	cfg.App.LogLevel = "INFO"
	cfg.App.LogFile = "app_log.log"
	cfg.Store.Backend = "json"
	cfg.Store.DataPath = "users.json"
	cfg.Store.DatabasePath = "storefront.db"
	cfg.Admin.Username = "admin"
	cfg.Admin.Password = "password"
	cfg.Admin.Email = "admin@example.com"
	cfg.Auth.LoginAttemptsPerMinute = 5
	cfg.Auth.BcryptCost = bcrypt.DefaultCost
	return cfg
}

// Load layers the defaults, an optional YAML file and STOREFRONT_* environment variables,
// e.g. STOREFRONT_STORE__BACKEND=sqlite.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, fmt.Errorf("env overlay: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "json":
		if c.Store.DataPath == "" {
			return fmt.Errorf("store.data_path required for json backend")
		}
	case "sqlite":
		if c.Store.DatabasePath == "" {
			return fmt.Errorf("store.database_path required for sqlite backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Auth.LoginAttemptsPerMinute < 0 {
		return fmt.Errorf("auth.login_attempts_per_minute must not be negative")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return fmt.Errorf("admin.username and admin.password required")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
