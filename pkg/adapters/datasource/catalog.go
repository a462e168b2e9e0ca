package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/scylladb/go-set/strset"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// QueryRows runs one catalog query on a dedicated connection, calling scan for
// each row. The connection and statement are released on every exit path.
func QueryRows(ctx context.Context, source Connector, name, query string, args []any, scan func(*sql.Rows) error) error {
	conn, err := source.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for %s: %w", name, err)
	}
	defer conn.Close()

	return QueryConnRows(ctx, conn, name, query, args, scan)
}

// QueryConnRows is QueryRows on a connection the caller already holds.
func QueryConnRows(ctx context.Context, conn *sql.Conn, name, query string, args []any, scan func(*sql.Rows) error) error {
	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", name, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s: %w", name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", name, err)
	}
	return nil
}

// QueryOne scans the first row of query into dest and reports whether a row
// was returned. Further rows are ignored.
func QueryOne(ctx context.Context, conn *sql.Conn, name, query string, args []any, dest ...any) (bool, error) {
	found := false
	err := QueryConnRows(ctx, conn, name, query, args, func(rows *sql.Rows) error {
		if found {
			return nil
		}
		found = true
		return rows.Scan(dest...)
	})
	return found, err
}

// StringArgs converts names to bind arguments for an IN list.
func StringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// PrimaryKeySet holds primary key membership keyed "table,column".
type PrimaryKeySet struct {
	set *strset.Set
}

func NewPrimaryKeySet() *PrimaryKeySet {
	return &PrimaryKeySet{set: strset.New()}
}

func (p *PrimaryKeySet) Add(table, column string) {
	p.set.Add(table + "," + column)
}

func (p *PrimaryKeySet) Contains(table, column string) bool {
	return p.set.Has(table + "," + column)
}

func (p *PrimaryKeySet) Size() int {
	return p.set.Size()
}

// HasSequenceDefault reports whether a column default starts with the
// dialect's sequence generator marker, e.g. "nextval(".
func HasSequenceDefault(columnDefault sql.NullString, marker string) bool {
	return columnDefault.Valid && strings.HasPrefix(columnDefault.String, marker)
}

// SchemaAssembler collects column and index rows and builds schema metadata.
// Tables appear in the order their first column row arrived; tables without
// loaded indexes get an empty index mapping.
type SchemaAssembler struct {
	columns *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, *models.TableMetaData]]
	indexes map[string]map[string][]string
}

func NewSchemaAssembler() *SchemaAssembler {
	return &SchemaAssembler{
		columns: orderedmap.New[string, *orderedmap.OrderedMap[string, *models.TableMetaData]](),
		indexes: make(map[string]map[string][]string),
	}
}

// AddColumn appends a column to schema.table.
func (a *SchemaAssembler) AddColumn(schema, table string, col *models.ColumnMetaData) {
	tables, ok := a.columns.Get(schema)
	if !ok {
		tables = orderedmap.New[string, *models.TableMetaData]()
		a.columns.Set(schema, tables)
	}
	meta, ok := tables.Get(table)
	if !ok {
		meta = models.NewTableMetaData(table)
		tables.Set(table, meta)
	}
	meta.Columns.Set(col.Name, col)
}

// AddIndex records an index for schema.table. Indexes of tables that never
// receive columns are dropped at Build.
func (a *SchemaAssembler) AddIndex(schema, table, index string) {
	byTable, ok := a.indexes[schema]
	if !ok {
		byTable = make(map[string][]string)
		a.indexes[schema] = byTable
	}
	byTable[table] = append(byTable[table], index)
}

// Build returns one SchemaMetaData per schema that had at least one column row.
func (a *SchemaAssembler) Build() []*models.SchemaMetaData {
	result := make([]*models.SchemaMetaData, 0, a.columns.Len())
	for s := a.columns.Oldest(); s != nil; s = s.Next() {
		schema := models.NewSchemaMetaData(s.Key)
		for t := s.Value.Oldest(); t != nil; t = t.Next() {
			for _, idx := range a.indexes[s.Key][t.Key] {
				t.Value.Indexes.Set(idx, &models.IndexMetaData{Name: idx})
			}
			schema.Tables.Set(t.Key, t.Value)
		}
		result = append(result, schema)
	}
	return result
}

// BuildSingle folds every collected schema into one named schema, for dialects
// that only ever inspect the current schema.
func (a *SchemaAssembler) BuildSingle(name string) *models.SchemaMetaData {
	schema := models.NewSchemaMetaData(name)
	for _, s := range a.Build() {
		for t := s.Tables.Oldest(); t != nil; t = t.Next() {
			schema.Tables.Set(t.Key, t.Value)
		}
	}
	return schema
}
