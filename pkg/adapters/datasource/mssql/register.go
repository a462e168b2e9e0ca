package mssql

import (
	"context"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

func init() {
	datasource.Register(datasource.DialectRegistration{
		Info: datasource.DialectInfo{
			Type:        models.DatabaseTypeSQLServer,
			DisplayName: "Microsoft SQL Server",
			DriverName:  "sqlserver",
		},
		Open: func(_ context.Context, ds models.DataSourceConfig, settings datasource.PoolSettings) (datasource.PoolConnector, error) {
			cfg, err := FromDataSource(ds)
			if err != nil {
				return nil, err
			}
			return datasource.OpenSQLDBPool(cfg.DriverName(), cfg.ConnectionString(), models.DatabaseTypeSQLServer, settings)
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
