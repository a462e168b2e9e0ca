package opengauss

import (
	"context"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

func init() {
	datasource.Register(datasource.DialectRegistration{
		Info: datasource.DialectInfo{
			Type:        models.DatabaseTypeOpenGauss,
			DisplayName: "openGauss",
			DriverName:  "postgres",
		},
		Open: func(_ context.Context, ds models.DataSourceConfig, settings datasource.PoolSettings) (datasource.PoolConnector, error) {
			dsn, err := ConnectionString(ds)
			if err != nil {
				return nil, err
			}
			return datasource.OpenSQLDBPool("postgres", dsn, models.DatabaseTypeOpenGauss, settings)
		},
		NewSQLBuilder: func() datasource.SQLBuilder {
			return NewSQLBuilder()
		},
		NewSchemaLoader: func(logger *zap.Logger) datasource.SchemaLoader {
			return NewSchemaLoader(postgres.TypeInfoReader{}, logger)
		},
		NewTypeInfoReader: func() datasource.TypeInfoReader {
			return postgres.TypeInfoReader{}
		},
		NewReplicationProbe: func(logger *zap.Logger) datasource.ReplicationProbe {
			return postgres.NewXlogReplicationProbe(logger)
		},
	})
}

// NewSQLBuilder returns the PostgreSQL-family builder quoting with lib/pq.
func NewSQLBuilder() *postgres.SQLBuilder {
	return postgres.NewSQLBuilderWithQuote(pq.QuoteIdentifier)
}
