package mssql

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/config"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

const (
	AuthMethodSQL              = "sql"
	AuthMethodServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod is "sql" or "service_principal".
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromDataSource creates a Config from a configured data source. Service
// principal credentials come from params: tenant_id, client_id; the client
// secret is the data source password.
func FromDataSource(ds models.DataSourceConfig) (*Config, error) {
	cfg := &Config{
		Host:              ds.Host,
		Port:              ds.Port,
		Database:          ds.Database,
		AuthMethod:        AuthMethodSQL,
		Username:          ds.User,
		Password:          ds.Password,
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}

	p := ds.Params
	if v, ok := p["auth_method"]; ok && v != "" {
		cfg.AuthMethod = v
	}
	if v, ok := p["encrypt"]; ok {
		cfg.Encrypt = v == "true" || v == "strict"
	}
	if v, ok := p["trust_server_certificate"]; ok {
		cfg.TrustServerCertificate = v == "true"
	}
	if v, ok := p["connection_timeout"]; ok {
		timeout, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("data source %s: invalid connection_timeout %q", ds.Name, v)
		}
		cfg.ConnectionTimeout = timeout
	}
	if cfg.AuthMethod == AuthMethodServicePrincipal {
		cfg.TenantID = p["tenant_id"]
		cfg.ClientID = p["client_id"]
		cfg.ClientSecret = ds.Password
		cfg.Username, cfg.Password = "", ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("data source %s: %w", ds.Name, err)
	}
	return cfg, nil
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthMethodSQL:
		if c.Username == "" {
			return fmt.Errorf("username is required for SQL authentication")
		}
	case AuthMethodServicePrincipal:
		if c.TenantID == "" {
			return fmt.Errorf("tenant_id is required for service principal")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id is required for service principal")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("client_secret is required for service principal")
		}
	default:
		return fmt.Errorf("invalid auth method: %s", c.AuthMethod)
	}
	return nil
}

// DriverName returns the database/sql driver for the auth method.
func (c *Config) DriverName() string {
	if c.AuthMethod == AuthMethodServicePrincipal {
		return "azuresql"
	}
	return "sqlserver"
}

// ConnectionString builds a sqlserver:// URL for the auth method.
func (c *Config) ConnectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)

	if c.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}

	host := config.ResolveHostForDocker(c.Host)
	if c.AuthMethod == AuthMethodServicePrincipal {
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", c.ClientID)
		query.Add("password", c.ClientSecret)
		query.Add("tenant id", c.TenantID)
		return fmt.Sprintf("sqlserver://%s:%d?%s", host, c.Port, query.Encode())
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(c.Username),
		url.QueryEscape(c.Password),
		host,
		c.Port,
		query.Encode(),
	)
}
