package mysql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

func init() {
	datasource.Register(datasource.DialectRegistration{
		Info: datasource.DialectInfo{
			Type:        models.DatabaseTypeMySQL,
			DisplayName: "MySQL",
			DriverName:  "mysql",
		},
		Open: func(_ context.Context, ds models.DataSourceConfig, settings datasource.PoolSettings) (datasource.PoolConnector, error) {
			dsn, err := DSN(ds)
			if err != nil {
				return nil, err
			}
			return datasource.OpenSQLDBPool("mysql", dsn, models.DatabaseTypeMySQL, settings)
		},
		NewSQLBuilder: func() datasource.SQLBuilder {
			return NewSQLBuilder()
		},
		NewSchemaLoader: func(logger *zap.Logger) datasource.SchemaLoader {
			return NewSchemaLoader(TypeInfoReader{}, logger)
		},
		NewTypeInfoReader: func() datasource.TypeInfoReader {
			return TypeInfoReader{}
		},
		NewReplicationProbe: func(logger *zap.Logger) datasource.ReplicationProbe {
			return NewReplicationProbe(logger)
		},
	})
}
