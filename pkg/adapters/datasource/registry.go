package datasource

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// DialectInfo describes a registered dialect.
type DialectInfo struct {
	Type        models.DatabaseType `json:"type"`
	DisplayName string              `json:"display_name"`
	DriverName  string              `json:"driver_name"` // database/sql driver the opener uses
}

// PoolSettings are applied by openers to the pools they create.
type PoolSettings struct {
	MaxConns int32
	MinConns int32
	TTLMin   int
}

// DialectRegistration contains info + factories for one dialect's implementation set.
type DialectRegistration struct {
	Info                DialectInfo
	Open                func(ctx context.Context, cfg models.DataSourceConfig, settings PoolSettings) (PoolConnector, error)
	NewSQLBuilder       func() SQLBuilder
	NewSchemaLoader     func(logger *zap.Logger) SchemaLoader
	NewTypeInfoReader   func() TypeInfoReader
	NewReplicationProbe func(logger *zap.Logger) ReplicationProbe
}

var (
	registryMu sync.RWMutex
	registry   = make(map[models.DatabaseType]DialectRegistration)
)

// Register is called by each dialect's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DialectRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// Lookup returns the registration for dbType.
func Lookup(dbType models.DatabaseType) (DialectRegistration, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg, ok := registry[dbType]
	if !ok {
		return DialectRegistration{}, fmt.Errorf("%w: %s (not compiled in)", apperrors.ErrUnsupportedDatabaseType, dbType)
	}
	return reg, nil
}

// RegisteredDialects returns info for all registered dialects, sorted by type.
func RegisteredDialects() []DialectInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DialectInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	slices.SortFunc(result, func(a, b DialectInfo) int {
		return cmp.Compare(a.Type, b.Type)
	})
	return result
}

// IsRegistered checks if a dialect is available.
func IsRegistered(dbType models.DatabaseType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dbType]
	return ok
}

// EnsureRegistered fails on the first type with no compiled-in dialect, so
// misconfiguration surfaces at startup rather than at first use.
func EnsureRegistered(types ...models.DatabaseType) error {
	for _, t := range types {
		if !IsRegistered(t) {
			return fmt.Errorf("%w: %s (not compiled in)", apperrors.ErrUnsupportedDatabaseType, t)
		}
	}
	return nil
}
