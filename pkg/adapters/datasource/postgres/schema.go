package postgres

import (
	"context"
	"database/sql"

	"github.com/scylladb/go-set/strset"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// sequenceMarker prefixes the default of serial and identity-by-sequence columns.
const sequenceMarker = "nextval("

const schemaNamesQuery = `SELECT schema_name FROM information_schema.schemata
	WHERE schema_name NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
	AND schema_name NOT LIKE 'pg_temp%' AND schema_name NOT LIKE 'pg_toast_temp%'
	ORDER BY schema_name`

func bindList(first, count int) string {
	return datasource.Placeholders(datasource.DollarPlaceholder, first, count)
}

func grantsQuery(tableCount int) string {
	q := "SELECT table_name FROM information_schema.role_table_grants"
	if tableCount > 0 {
		q += " WHERE table_name IN (" + bindList(1, tableCount) + ")"
	}
	return q
}

func primaryKeysQuery(schemaCount int) string {
	return "SELECT tc.table_name, kc.column_name FROM information_schema.table_constraints tc" +
		" JOIN information_schema.key_column_usage kc" +
		" ON kc.table_schema = tc.table_schema AND kc.table_name = tc.table_name AND kc.constraint_name = tc.constraint_name" +
		" WHERE tc.constraint_type = 'PRIMARY KEY' AND kc.ordinal_position IS NOT NULL" +
		" AND kc.table_schema IN (" + bindList(1, schemaCount) + ")"
}

func columnsQuery(schemaCount, tableCount int) string {
	q := "SELECT table_name, column_name, ordinal_position, data_type, udt_name, column_default, table_schema" +
		" FROM information_schema.columns WHERE table_schema IN (" + bindList(1, schemaCount) + ")"
	if tableCount > 0 {
		q += " AND table_name IN (" + bindList(schemaCount+1, tableCount) + ")"
	}
	return q + " ORDER BY table_schema, table_name, ordinal_position"
}

func indexesQuery(schemaCount int) string {
	return "SELECT schemaname, tablename, indexname FROM pg_indexes" +
		" WHERE schemaname IN (" + bindList(1, schemaCount) + ") ORDER BY schemaname, tablename, indexname"
}

// SchemaLoader loads every readable schema of a PostgreSQL database.
type SchemaLoader struct {
	types  datasource.TypeInfoReader
	logger *zap.Logger
}

// NewSchemaLoader creates a PostgreSQL schema loader.
// If logger is nil, a no-op logger is used.
func NewSchemaLoader(types datasource.TypeInfoReader, logger *zap.Logger) *SchemaLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaLoader{types: types, logger: logger}
}

// Load returns one SchemaMetaData per non-system schema that has readable
// columns. defaultSchemaName is unused; PostgreSQL reports real schema names.
func (l *SchemaLoader) Load(ctx context.Context, source datasource.Connector, tables []string, defaultSchemaName string) ([]*models.SchemaMetaData, error) {
	typeMap, err := datasource.LoadSourceDataTypes(ctx, source, l.types)
	if err != nil {
		return nil, err
	}

	var schemaNames []string
	err = datasource.QueryRows(ctx, source, "schema names", schemaNamesQuery, nil, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		schemaNames = append(schemaNames, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(schemaNames) == 0 {
		return []*models.SchemaMetaData{}, nil
	}

	assembler, err := LoadCatalog(ctx, source, typeMap, schemaNames, tables)
	if err != nil {
		return nil, err
	}

	result := assembler.Build()
	l.logger.Debug("loaded schema metadata",
		zap.Int("schemas_inspected", len(schemaNames)),
		zap.Int("schemas_loaded", len(result)),
		zap.Int("table_filter", len(tables)),
	)
	return result, nil
}

// LoadCatalog runs the grant, primary key, column and index queries for
// schemaNames. A non-empty tables filter narrows the grant and column queries;
// primary keys and indexes are always loaded in full.
func LoadCatalog(ctx context.Context, source datasource.Connector, typeMap datasource.DataTypeMap, schemaNames, tables []string) (*datasource.SchemaAssembler, error) {
	readable := strset.New()
	err := datasource.QueryRows(ctx, source, "table grants", grantsQuery(len(tables)), datasource.StringArgs(tables), func(rows *sql.Rows) error {
		var table string
		if err := rows.Scan(&table); err != nil {
			return err
		}
		readable.Add(table)
		return nil
	})
	if err != nil {
		return nil, err
	}

	schemaArgs := datasource.StringArgs(schemaNames)

	primaryKeys := datasource.NewPrimaryKeySet()
	err = datasource.QueryRows(ctx, source, "primary keys", primaryKeysQuery(len(schemaNames)), schemaArgs, func(rows *sql.Rows) error {
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
	columnArgs := append(append([]any{}, schemaArgs...), datasource.StringArgs(tables)...)
	err = datasource.QueryRows(ctx, source, "columns", columnsQuery(len(schemaNames), len(tables)), columnArgs, func(rows *sql.Rows) error {
		var (
			table, column, dataType, udtName, schema string
			ordinal                                  int
			columnDefault                            sql.NullString
		)
		if err := rows.Scan(&table, &column, &ordinal, &dataType, &udtName, &columnDefault, &schema); err != nil {
			return err
		}
		if !readable.Has(table) {
			return nil
		}
		assembler.AddColumn(schema, table, &models.ColumnMetaData{
			Name:          column,
			DataType:      typeMap.Resolve(udtName),
			PrimaryKey:    primaryKeys.Contains(table, column),
			Generated:     datasource.HasSequenceDefault(columnDefault, sequenceMarker),
			CaseSensitive: true,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = datasource.QueryRows(ctx, source, "indexes", indexesQuery(len(schemaNames)), schemaArgs, func(rows *sql.Rows) error {
		var schema, table, index string
		if err := rows.Scan(&schema, &table, &index); err != nil {
			return err
		}
		assembler.AddIndex(schema, table, index)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return assembler, nil
}

var _ datasource.SchemaLoader = (*SchemaLoader)(nil)
