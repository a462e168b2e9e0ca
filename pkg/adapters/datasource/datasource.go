package datasource

import (
	"context"
	"database/sql"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// DataSource is a named, typed handle to one database. It hands out a
// dedicated connection per catalog query or chunk fetch.
type DataSource struct {
	Name string
	Type models.DatabaseType
	// Addr is the configured host:port, matched against replicas' upstream addresses.
	Addr string
	db   *sql.DB
}

// NewDataSource wraps an open pool.
func NewDataSource(name string, dbType models.DatabaseType, addr string, db *sql.DB) *DataSource {
	return &DataSource{Name: name, Type: dbType, Addr: addr, db: db}
}

// Conn acquires a dedicated connection from the pool.
func (d *DataSource) Conn(ctx context.Context) (*sql.Conn, error) {
	return d.db.Conn(ctx)
}

// DB returns the underlying pool.
func (d *DataSource) DB() *sql.DB {
	return d.db
}

var _ Connector = (*DataSource)(nil)
var _ Connector = (*sql.DB)(nil)
