package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/config"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// DefaultTimeout bounds the dial of a new connection.
const DefaultTimeout = 5 * time.Second

// DSN builds a go-sql-driver DSN. Extra params pass through to the driver.
func DSN(ds models.DataSourceConfig) (string, error) {
	if ds.Host == "" || ds.User == "" || ds.Database == "" {
		return "", fmt.Errorf("data source %s: host, user and database are required", ds.Name)
	}
	port := ds.Port
	if port == 0 {
		port = DefaultPort()
	}

	cfg := mysql.NewConfig()
	cfg.User = ds.User
	cfg.Passwd = ds.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(config.ResolveHostForDocker(ds.Host), strconv.Itoa(port))
	cfg.DBName = ds.Database
	cfg.Timeout = DefaultTimeout
	cfg.ParseTime = true
	if len(ds.Params) > 0 {
		cfg.Params = make(map[string]string, len(ds.Params))
		for k, v := range ds.Params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN(), nil
}
