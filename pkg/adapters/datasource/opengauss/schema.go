package opengauss

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

const currentSchemaQuery = "SELECT current_schema()"

// SchemaLoader inspects only the connection's current schema and reports it
// under the logical default schema name.
type SchemaLoader struct {
	types  datasource.TypeInfoReader
	logger *zap.Logger
}

func NewSchemaLoader(types datasource.TypeInfoReader, logger *zap.Logger) *SchemaLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaLoader{types: types, logger: logger}
}

func (l *SchemaLoader) Load(ctx context.Context, source datasource.Connector, tables []string, defaultSchemaName string) ([]*models.SchemaMetaData, error) {
	typeMap, err := datasource.LoadSourceDataTypes(ctx, source, l.types)
	if err != nil {
		return nil, err
	}

	schema, err := currentSchema(ctx, source)
	if err != nil {
		return nil, err
	}

	assembler, err := postgres.LoadCatalog(ctx, source, typeMap, []string{schema}, tables)
	if err != nil {
		return nil, err
	}

	result := assembler.BuildSingle(defaultSchemaName)
	l.logger.Debug("loaded schema metadata",
		zap.String("current_schema", schema),
		zap.Int("tables", result.Tables.Len()),
	)
	return []*models.SchemaMetaData{result}, nil
}

func currentSchema(ctx context.Context, source datasource.Connector) (string, error) {
	conn, err := source.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire connection for current schema: %w", err)
	}
	defer conn.Close()

	var schema sql.NullString
	found, err := datasource.QueryOne(ctx, conn, "current schema", currentSchemaQuery, nil, &schema)
	if err != nil {
		return "", err
	}
	if !found || !schema.Valid || schema.String == "" {
		return "", fmt.Errorf("current schema: no schema on search path")
	}
	return schema.String, nil
}

var _ datasource.SchemaLoader = (*SchemaLoader)(nil)
