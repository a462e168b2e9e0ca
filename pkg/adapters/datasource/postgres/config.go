package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/config"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "prefer"
}

// FromDataSource creates a Config from a configured data source.
func FromDataSource(ds models.DataSourceConfig) (*Config, error) {
	cfg := &Config{
		Host:     ds.Host,
		Port:     ds.Port,
		User:     ds.User,
		Password: ds.Password,
		Database: ds.Database,
		SSLMode:  DefaultSSLMode(),
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if mode, ok := ds.Params["sslmode"]; ok && mode != "" {
		cfg.SSLMode = mode
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("data source %s: host is required", ds.Name)
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("data source %s: user is required", ds.Name)
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("data source %s: database is required", ds.Name)
	}
	return cfg, nil
}

// ConnectionString builds a PostgreSQL URL with every user-provided field escaped.
func (c *Config) ConnectionString() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		config.ResolveHostForDocker(c.Host),
		c.Port,
		url.QueryEscape(c.Database),
		url.QueryEscape(c.SSLMode),
	)
}
