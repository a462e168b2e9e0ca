package datasource

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// PostgresPoolWrapper owns a pgxpool and the database/sql view opened over it.
type PostgresPoolWrapper struct {
	pool   *pgxpool.Pool
	db     *sql.DB
	dbType models.DatabaseType
}

// NewPostgresPoolWrapper creates a new PostgreSQL pool wrapper
func NewPostgresPoolWrapper(pool *pgxpool.Pool, db *sql.DB, dbType models.DatabaseType) *PostgresPoolWrapper {
	return &PostgresPoolWrapper{pool: pool, db: db, dbType: dbType}
}

// Ping verifies the PostgreSQL connection is alive
func (w *PostgresPoolWrapper) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

// Close closes the database/sql handle, then the pool underneath it.
func (w *PostgresPoolWrapper) Close() error {
	err := w.db.Close()
	w.pool.Close()
	return err
}

// GetType returns the database type
func (w *PostgresPoolWrapper) GetType() models.DatabaseType {
	return w.dbType
}

// DB returns the database/sql handle
func (w *PostgresPoolWrapper) DB() *sql.DB {
	return w.db
}

// GetPool returns the underlying *pgxpool.Pool
func (w *PostgresPoolWrapper) GetPool() *pgxpool.Pool {
	return w.pool
}

// SQLDBPoolWrapper wraps a plain *sql.DB (MySQL, openGauss, SQL Server).
type SQLDBPoolWrapper struct {
	db     *sql.DB
	dbType models.DatabaseType
}

// NewSQLDBPoolWrapper creates a new database/sql pool wrapper
func NewSQLDBPoolWrapper(db *sql.DB, dbType models.DatabaseType) *SQLDBPoolWrapper {
	return &SQLDBPoolWrapper{db: db, dbType: dbType}
}

// Ping verifies the connection is alive
func (w *SQLDBPoolWrapper) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// Close closes all connections in the pool
func (w *SQLDBPoolWrapper) Close() error {
	return w.db.Close()
}

// GetType returns the database type
func (w *SQLDBPoolWrapper) GetType() models.DatabaseType {
	return w.dbType
}

// DB returns the underlying *sql.DB
func (w *SQLDBPoolWrapper) DB() *sql.DB {
	return w.db
}

// GetPostgresPool extracts the underlying *pgxpool.Pool from a PoolConnector.
func GetPostgresPool(connector PoolConnector) (*pgxpool.Pool, error) {
	wrapper, ok := connector.(*PostgresPoolWrapper)
	if !ok {
		return nil, errors.New("connector is not a PostgreSQL pool wrapper")
	}
	return wrapper.GetPool(), nil
}
