package database

import (
	"net/url"
	"strings"
	"time"
)

// Config holds database connection settings.
type Config struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`

	// MigrateAttempts bounds how many times schema setup is tried before giving up.
	MigrateAttempts int           `yaml:"migrate_attempts" envconfig:"DB_MIGRATE_ATTEMPTS"`
	MigrateBackoff  time.Duration `yaml:"migrate_backoff" envconfig:"DB_MIGRATE_BACKOFF"`
}

// Normalize fills connection defaults.
func (c *Config) Normalize() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == "" {
		c.Port = "5432"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	if c.MigrateAttempts <= 0 {
		c.MigrateAttempts = 10
	}
	if c.MigrateBackoff <= 0 {
		c.MigrateBackoff = 5 * time.Second
	}
}

// DSN renders the key/value form accepted by lib/pq. Values are quoted, so
// passwords may contain spaces and quotes.
func (c Config) DSN() string {
	pairs := []struct{ key, val string }{
		{"user", c.User},
		{"password", c.Password},
		{"host", c.Host},
		{"port", c.Port},
		{"dbname", c.Name},
		{"sslmode", c.SSLMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.key+"="+dsnQuote(p.val))
	}
	return strings.Join(parts, " ")
}

func dsnQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
}

// URL renders the postgres:// form accepted by golang-migrate.
func (c Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
