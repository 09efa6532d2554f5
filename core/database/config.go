package database

import (
	"fmt"
	"strings"
)

// Config holds database connection settings.
// URL takes precedence over the discrete fields when provided; it matches
// the DATABASE_URL convention used by most Postgres hosting providers.
type Config struct {
	URL            string `yaml:"url" envconfig:"DATABASE_URL"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Validate reports whether the configuration carries enough information to connect.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) != "" {
		return nil
	}
	if c.Host == "" || c.Name == "" || c.User == "" {
		return fmt.Errorf("database: url or host/name/user settings are required")
	}
	return nil
}

// DSN returns a lib/pq connection string built from the discrete fields,
// or the URL verbatim when one is set.
func (c Config) DSN() string {
	if url := strings.TrimSpace(c.URL); url != "" {
		return url
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// MigrateURL returns a postgres:// URL accepted by golang-migrate.
func (c Config) MigrateURL() string {
	if url := strings.TrimSpace(c.URL); url != "" {
		return url
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}
