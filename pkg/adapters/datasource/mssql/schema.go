package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

const (
	sequenceMarker = "NEXT VALUE FOR"

	currentSchemaQuery = "SELECT SCHEMA_NAME()"

	primaryKeysQuery = `SELECT t.name, c.name
		FROM sys.indexes i
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		JOIN sys.tables t ON t.object_id = i.object_id
		WHERE i.is_primary_key = 1 AND SCHEMA_NAME(t.schema_id) = @p1`

	indexesQuery = `SELECT t.name, i.name
		FROM sys.indexes i
		JOIN sys.tables t ON t.object_id = i.object_id
		WHERE i.name IS NOT NULL AND SCHEMA_NAME(t.schema_id) = @p1
		ORDER BY t.name, i.name`
)

func columnsQuery(tableCount int) string {
	q := "SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_DEFAULT," +
		" COLUMNPROPERTY(OBJECT_ID(QUOTENAME(TABLE_SCHEMA) + '.' + QUOTENAME(TABLE_NAME)), COLUMN_NAME, 'IsIdentity')" +
		" FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = @p1"
	if tableCount > 0 {
		q += " AND TABLE_NAME IN (" + datasource.Placeholders(AtPlaceholder, 2, tableCount) + ")"
	}
	return q + " ORDER BY TABLE_NAME, ORDINAL_POSITION"
}

// isSequenceDefault reports whether a column default draws from a sequence.
// SQL Server stores defaults wrapped in parentheses, e.g. ((NEXT VALUE FOR [s])).
func isSequenceDefault(columnDefault sql.NullString) bool {
	if !columnDefault.Valid {
		return false
	}
	def := strings.TrimSpace(columnDefault.String)
	for strings.HasPrefix(def, "(") && strings.HasSuffix(def, ")") {
		def = strings.TrimSpace(def[1 : len(def)-1])
	}
	return strings.HasPrefix(strings.ToUpper(def), sequenceMarker)
}

// SchemaLoader loads the login's default schema.
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
	schemaArgs := []any{schema}

	primaryKeys := datasource.NewPrimaryKeySet()
	err = datasource.QueryRows(ctx, source, "primary keys", primaryKeysQuery, schemaArgs, func(rows *sql.Rows) error {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return err
		}
		primaryKeys.Add(table, column)
		return nil
	})
	if err != nil {
		return nil, err
	}

	assembler := datasource.NewSchemaAssembler()
	args := append([]any{schema}, datasource.StringArgs(tables)...)
	err = datasource.QueryRows(ctx, source, "columns", columnsQuery(len(tables)), args, func(rows *sql.Rows) error {
		var (
			table, column, dataType string
			columnDefault           sql.NullString
			identity                sql.NullInt64
		)
		if err := rows.Scan(&table, &column, &dataType, &columnDefault, &identity); err != nil {
			return err
		}
		assembler.AddColumn(schema, table, &models.ColumnMetaData{
			Name:          column,
			DataType:      typeMap.Resolve(dataType),
			PrimaryKey:    primaryKeys.Contains(table, column),
			Generated:     identity.Int64 == 1 || isSequenceDefault(columnDefault),
			CaseSensitive: true,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = datasource.QueryRows(ctx, source, "indexes", indexesQuery, schemaArgs, func(rows *sql.Rows) error {
		var table, index string
		if err := rows.Scan(&table, &index); err != nil {
			return err
		}
		assembler.AddIndex(schema, table, index)
		return nil
	})
	if err != nil {
		return nil, err
	}

	name := defaultSchemaName
	if name == "" {
		name = schema
	}
	result := assembler.BuildSingle(name)
	l.logger.Debug("loaded schema metadata", zap.String("schema", schema), zap.Int("tables", result.Tables.Len()))
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
		return "", fmt.Errorf("current schema: login has no default schema")
	}
	return schema.String, nil
}

var _ datasource.SchemaLoader = (*SchemaLoader)(nil)
