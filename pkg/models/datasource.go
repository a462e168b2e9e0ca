package models

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
)

// DatabaseType is the plugin selection key for a dialect implementation set.
// Values are matched exactly, including case.
type DatabaseType string

const (
	DatabaseTypePostgreSQL DatabaseType = "PostgreSQL"
	DatabaseTypeOpenGauss  DatabaseType = "openGauss"
	DatabaseTypeMySQL      DatabaseType = "MySQL"
	DatabaseTypeSQLServer  DatabaseType = "SQLServer"
)

// DatabaseTypes lists every database type known at compile time.
func DatabaseTypes() []DatabaseType {
	return []DatabaseType{
		DatabaseTypePostgreSQL,
		DatabaseTypeOpenGauss,
		DatabaseTypeMySQL,
		DatabaseTypeSQLServer,
	}
}

// ParseDatabaseType resolves a configured type name.
// Unknown names are a configuration error, never a silent default.
func ParseDatabaseType(name string) (DatabaseType, error) {
	for _, t := range DatabaseTypes() {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDatabaseType, name)
}

// IsPostgreSQLFamily reports whether the dialect speaks the PostgreSQL catalog conventions.
func (t DatabaseType) IsPostgreSQLFamily() bool {
	return t == DatabaseTypePostgreSQL || t == DatabaseTypeOpenGauss
}

func (t DatabaseType) String() string {
	return string(t)
}

// DataSourceConfig describes how to reach one named data source.
// Password never comes from YAML; it is read from the variable named by PasswordEnv.
type DataSourceConfig struct {
	Name        string            `yaml:"name"`
	Type        string            `yaml:"type"`
	Host        string            `yaml:"host"`
	Port        int               `yaml:"port"`
	User        string            `yaml:"user"`
	Password    string            `yaml:"-"`
	PasswordEnv string            `yaml:"password_env"`
	Database    string            `yaml:"database"`
	Schema      string            `yaml:"schema"`
	Params      map[string]string `yaml:"params"`
}

// DatabaseType parses the configured type tag.
func (c *DataSourceConfig) DatabaseType() (DatabaseType, error) {
	return ParseDatabaseType(c.Type)
}
