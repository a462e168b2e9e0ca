package datasource

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// Dialect is the resolved implementation set for one database type.
type Dialect struct {
	Type             models.DatabaseType
	SQLBuilder       SQLBuilder
	SchemaLoader     SchemaLoader
	TypeInfoReader   TypeInfoReader
	ReplicationProbe ReplicationProbe
}

// DialectFactory resolves dialect implementation sets from the registry.
type DialectFactory interface {
	// Dialect returns the implementation set for dbType.
	Dialect(dbType models.DatabaseType) (*Dialect, error)

	// ListTypes returns info for all registered dialects.
	ListTypes() []DialectInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewDialectFactory returns a factory that uses the global registry.
func NewDialectFactory(logger *zap.Logger) DialectFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{logger: logger}
}

func (f *registryFactory) Dialect(dbType models.DatabaseType) (*Dialect, error) {
	reg, err := Lookup(dbType)
	if err != nil {
		return nil, err
	}

	d := &Dialect{Type: dbType}
	if reg.NewSQLBuilder != nil {
		d.SQLBuilder = reg.NewSQLBuilder()
	}
	if reg.NewSchemaLoader != nil {
		d.SchemaLoader = reg.NewSchemaLoader(f.logger.Named("schema").With(zap.Stringer("dialect", dbType)))
	}
	if reg.NewTypeInfoReader != nil {
		d.TypeInfoReader = reg.NewTypeInfoReader()
	}
	if reg.NewReplicationProbe != nil {
		d.ReplicationProbe = reg.NewReplicationProbe(f.logger.Named("replication").With(zap.Stringer("dialect", dbType)))
	}
	return d, nil
}

func (f *registryFactory) ListTypes() []DialectInfo {
	return RegisteredDialects()
}

// Ensure registryFactory implements DialectFactory at compile time.
var _ DialectFactory = (*registryFactory)(nil)
