package mysql

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
	currentDatabaseQuery = "SELECT DATABASE()"

	primaryKeysQuery = "SELECT TABLE_NAME, COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE" +
		" WHERE TABLE_SCHEMA = ? AND CONSTRAINT_NAME = 'PRIMARY'"

	indexesQuery = "SELECT TABLE_NAME, INDEX_NAME FROM information_schema.STATISTICS" +
		" WHERE TABLE_SCHEMA = ? AND SEQ_IN_INDEX = 1 ORDER BY TABLE_NAME, INDEX_NAME"
)

func columnsQuery(tableCount int) string {
	q := "SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, EXTRA FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ?"
	if tableCount > 0 {
		q += " AND TABLE_NAME IN (" + datasource.Placeholders(datasource.QuestionPlaceholder, 2, tableCount) + ")"
	}
	return q + " ORDER BY TABLE_NAME, ORDINAL_POSITION"
}

// SchemaLoader loads the connection's current database as one schema.
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

// Load reports the current database under defaultSchemaName, or under the
// database name itself when no default is given.
func (l *SchemaLoader) Load(ctx context.Context, source datasource.Connector, tables []string, defaultSchemaName string) ([]*models.SchemaMetaData, error) {
	typeMap, err := datasource.LoadSourceDataTypes(ctx, source, l.types)
	if err != nil {
		return nil, err
	}

	database, err := currentDatabase(ctx, source)
	if err != nil {
		return nil, err
	}

	primaryKeys := datasource.NewPrimaryKeySet()
	err = datasource.QueryRows(ctx, source, "primary keys", primaryKeysQuery, []any{database}, func(rows *sql.Rows) error {
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
	args := append([]any{database}, datasource.StringArgs(tables)...)
	err = datasource.QueryRows(ctx, source, "columns", columnsQuery(len(tables)), args, func(rows *sql.Rows) error {
		var table, column, dataType, extra string
		if err := rows.Scan(&table, &column, &dataType, &extra); err != nil {
			return err
		}
		assembler.AddColumn(database, table, &models.ColumnMetaData{
			Name:          column,
			DataType:      typeMap.Resolve(strings.ToUpper(dataType)),
			PrimaryKey:    primaryKeys.Contains(table, column),
			Generated:     strings.Contains(strings.ToLower(extra), "auto_increment"),
			CaseSensitive: true,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = datasource.QueryRows(ctx, source, "indexes", indexesQuery, []any{database}, func(rows *sql.Rows) error {
		var table, index string
		if err := rows.Scan(&table, &index); err != nil {
			return err
		}
		assembler.AddIndex(database, table, index)
		return nil
	})
	if err != nil {
		return nil, err
	}

	name := defaultSchemaName
	if name == "" {
		name = database
	}
	result := assembler.BuildSingle(name)
	l.logger.Debug("loaded schema metadata", zap.String("database", database), zap.Int("tables", result.Tables.Len()))
	return []*models.SchemaMetaData{result}, nil
}

func currentDatabase(ctx context.Context, source datasource.Connector) (string, error) {
	conn, err := source.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire connection for current database: %w", err)
	}
	defer conn.Close()

	var name sql.NullString
	found, err := datasource.QueryOne(ctx, conn, "current database", currentDatabaseQuery, nil, &name)
	if err != nil {
		return "", err
	}
	if !found || !name.Valid || name.String == "" {
		return "", fmt.Errorf("current database: no database selected")
	}
	return name.String, nil
}

var _ datasource.SchemaLoader = (*SchemaLoader)(nil)
