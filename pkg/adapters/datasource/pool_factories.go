package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// CreatePostgresPool creates a pgxpool and exposes it through database/sql.
func CreatePostgresPool(ctx context.Context, connString string, dbType models.DatabaseType, settings PoolSettings) (PoolConnector, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = settings.MaxConns
	poolConfig.MinConns = settings.MinConns
	poolConfig.MaxConnIdleTime = time.Duration(settings.TTLMin) * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	return NewPostgresPoolWrapper(pool, stdlib.OpenDBFromPool(pool), dbType), nil
}

// OpenSQLDBPool opens a database/sql pool for a registered driver name.
func OpenSQLDBPool(driverName, dsn string, dbType models.DatabaseType, settings PoolSettings) (PoolConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}

	db.SetMaxOpenConns(int(settings.MaxConns))
	db.SetMaxIdleConns(int(settings.MinConns))
	db.SetConnMaxIdleTime(time.Duration(settings.TTLMin) * time.Minute)

	return NewSQLDBPoolWrapper(db, dbType), nil
}
