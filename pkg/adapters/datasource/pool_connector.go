package datasource

import (
	"context"
	"database/sql"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// PoolConnector abstracts connection pool operations across database types.
// Every dialect exposes its pool through database/sql so the calculator and
// loaders stay dialect-agnostic.
type PoolConnector interface {
	// Ping verifies the connection is alive
	Ping(ctx context.Context) error

	// Close closes all connections in the pool
	Close() error

	// GetType returns the database type for logging/stats
	GetType() models.DatabaseType

	// DB returns the database/sql handle backed by the pool
	DB() *sql.DB
}
