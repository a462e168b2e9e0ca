package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/logging"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/sqlguard"
)

// DefaultConfigPath is read when no --config flag is given.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-pipeline.
// Configuration comes from a YAML file with environment variable overrides.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env         string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR" env-default:"127.0.0.1:9464"`
	Version     string `yaml:"-"`

	Logging LoggingConfig `yaml:"logging"`

	// Engine metadata database (checkpoints).
	Database DatabaseConfig `yaml:"database"`

	Redis RedisConfig `yaml:"redis"`

	// Pool settings applied to every data source connection.
	Datasource DatasourceConfig `yaml:"datasource"`

	Pipeline     PipelineConfig            `yaml:"pipeline"`
	Discovery    DiscoveryConfig           `yaml:"discovery"`
	Verification VerificationConfig        `yaml:"verification"`
	DataSources  []models.DataSourceConfig `yaml:"data_sources"`
}

// LoggingConfig maps onto logging.Options.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	File       string `yaml:"file" env:"LOG_FILE" env-default:""`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"5"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"30"`
}

// DatabaseConfig holds the engine PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_pipeline"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the notification Redis configuration. Empty Host disables it.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Channel  string `yaml:"channel" env:"REDIS_CHANNEL" env-default:"ekaya:datasource:disabled"`
}

// DatasourceConfig holds data source connection management settings.
type DatasourceConfig struct {
	// ConnectionTTLMinutes is how long an idle pool is kept before being closed.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	// PoolMaxConns is the maximum number of connections per data source pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections per data source pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
}

// PipelineConfig holds chunking settings. A non-positive chunk size is not rejected
// here; the calculator replaces it with its default and warns.
type PipelineConfig struct {
	ChunkSize   int `yaml:"chunk_size" env:"PIPELINE_CHUNK_SIZE" env-default:"1000"`
	Parallelism int `yaml:"parallelism" env:"PIPELINE_PARALLELISM" env-default:"4"`
}

// DiscoveryConfig configures primary discovery and replica health checks.
type DiscoveryConfig struct {
	DatabaseName               string           `yaml:"database_name" env:"DISCOVERY_DATABASE_NAME" env-default:"logic_db"`
	DelayMillisecondsThreshold int64            `yaml:"delay_milliseconds_threshold" env:"DISCOVERY_DELAY_MILLISECONDS_THRESHOLD" env-default:"0"`
	HeartbeatInterval          time.Duration    `yaml:"heartbeat_interval" env:"DISCOVERY_HEARTBEAT_INTERVAL" env-default:"10s"`
	Groups                     []DiscoveryGroup `yaml:"groups"`
}

// DiscoveryGroup is one replicated set of data sources.
type DiscoveryGroup struct {
	Name                string   `yaml:"name"`
	DataSources         []string `yaml:"data_sources"`
	DisabledDataSources []string `yaml:"disabled_data_sources"`
}

// VerificationConfig describes one consistency verification job.
type VerificationConfig struct {
	JobID  string              `yaml:"job_id" env:"VERIFICATION_JOB_ID" env-default:""`
	Source string              `yaml:"source"`
	Target string              `yaml:"target"`
	Resume bool                `yaml:"resume" env:"VERIFICATION_RESUME" env-default:"true"`
	Tables []TableVerification `yaml:"tables"`
}

// TableVerification names a table and, optionally, the key to chunk it by.
// An empty UniqueKey means the table's single-column primary key.
type TableVerification struct {
	Name      string `yaml:"name"`
	UniqueKey string `yaml:"unique_key"`
}

// Load reads configuration from path with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.resolveSecrets()
	cfg.resolveHosts()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveSecrets reads data source passwords from the variables they name.
func (c *Config) resolveSecrets() {
	for i := range c.DataSources {
		if env := c.DataSources[i].PasswordEnv; env != "" {
			c.DataSources[i].Password = os.Getenv(env)
		}
	}
}

func (c *Config) resolveHosts() {
	c.Database.Host = ResolveHostForDocker(c.Database.Host)
	if c.Redis.Host != "" {
		c.Redis.Host = ResolveHostForDocker(c.Redis.Host)
	}
	for i := range c.DataSources {
		c.DataSources[i].Host = ResolveHostForDocker(c.DataSources[i].Host)
	}
}

// Validate rejects configuration errors up front: unknown database types,
// dangling data source references, unsafe identifiers and a negative lag threshold.
func (c *Config) Validate() error {
	var errs []error

	names := make(map[string]struct{}, len(c.DataSources))
	for _, ds := range c.DataSources {
		if ds.Name == "" {
			errs = append(errs, errors.New("data source with empty name"))
			continue
		}
		if _, dup := names[ds.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate data source %q", ds.Name))
		}
		names[ds.Name] = struct{}{}
		if _, err := models.ParseDatabaseType(ds.Type); err != nil {
			errs = append(errs, fmt.Errorf("data source %q: %w", ds.Name, err))
		}
	}

	if c.Discovery.DelayMillisecondsThreshold < 0 {
		errs = append(errs, fmt.Errorf("discovery.delay_milliseconds_threshold must be non-negative, got %d", c.Discovery.DelayMillisecondsThreshold))
	}
	if c.Discovery.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("discovery.heartbeat_interval must be positive, got %s", c.Discovery.HeartbeatInterval))
	}
	for _, g := range c.Discovery.Groups {
		for _, member := range g.DataSources {
			if _, ok := names[member]; !ok {
				errs = append(errs, fmt.Errorf("discovery group %q: unknown data source %q", g.Name, member))
			}
		}
	}

	if v := c.Verification; v.Source != "" || v.Target != "" || len(v.Tables) > 0 {
		for _, ref := range []string{v.Source, v.Target} {
			if _, ok := names[ref]; !ok {
				errs = append(errs, fmt.Errorf("verification: unknown data source %q", ref))
			}
		}
		for _, tbl := range v.Tables {
			if err := sqlguard.ValidateIdentifier("table", tbl.Name); err != nil {
				errs = append(errs, err)
			}
			if tbl.UniqueKey != "" {
				if err := sqlguard.ValidateIdentifier("column", tbl.UniqueKey); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}

	if c.Pipeline.Parallelism <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.parallelism must be positive, got %d", c.Pipeline.Parallelism))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}
	return nil
}

// DataSource returns the named data source configuration.
func (c *Config) DataSource(name string) (models.DataSourceConfig, bool) {
	for _, ds := range c.DataSources {
		if ds.Name == name {
			return ds, true
		}
	}
	return models.DataSourceConfig{}, false
}

// LoggerOptions converts the logging section for logging.NewLogger.
func (c *Config) LoggerOptions() logging.Options {
	return logging.Options{
		Level:       c.Logging.Level,
		Development: c.Env == "local",
		File:        c.Logging.File,
		MaxSizeMB:   c.Logging.MaxSizeMB,
		MaxBackups:  c.Logging.MaxBackups,
		MaxAgeDays:  c.Logging.MaxAgeDays,
	}
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the Redis host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
