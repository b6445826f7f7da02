package backend

import (
	"fmt"
	"net/url"
	"strings"

	"housefin/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg, err := ParseDatabaseURL(appConfig.DatabaseURL)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxOpenConns = appConfig.DBMaxOpenConns
	cfg.MaxIdleConns = appConfig.DBMaxIdleConns
	cfg.ConnMaxLifetime = appConfig.DBConnMaxLifetime
	return cfg, nil
}

// ParseDatabaseURL resolves a DATABASE_URL into a backend type and DSN.
//
//	sqlite:///./data/housefin.db  -> ./data/housefin.db
//	sqlite:////var/lib/housefin.db -> /var/lib/housefin.db
//	postgres://user:pw@host/db     -> passed through unchanged
func ParseDatabaseURL(raw string) (Config, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Config{}, fmt.Errorf("database URL is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse database URL: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		path := strings.TrimPrefix(raw, "sqlite://")
		// sqlite:///relative keeps one slash as separator, sqlite:////abs keeps the root.
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return Config{}, fmt.Errorf("sqlite database URL has no path")
		}
		return Config{Type: SQLiteBackend, DSN: path}, nil
	case "postgres", "postgresql":
		if u.Host == "" {
			return Config{}, fmt.Errorf("postgres database URL has no host")
		}
		return Config{Type: PostgresBackend, DSN: raw}, nil
	default:
		return Config{}, fmt.Errorf("unsupported database URL scheme %q", u.Scheme)
	}
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.DSN == "" {
		return fmt.Errorf("%s backend requires a DSN", c.Type)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend}
}
