package datasource

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// BaseSQLBuilder generates the SQL every dialect shares. Dialects embed it,
// supply quoting and bind markers, and override statements whose syntax differs.
type BaseSQLBuilder struct {
	Quote func(name string) string
	Bind  func(n int) string
}

// Placeholder returns the bind marker for the n-th parameter.
func (b BaseSQLBuilder) Placeholder(n int) string {
	return b.Bind(n)
}

// QuoteIdentifier quotes a single identifier.
func (b BaseSQLBuilder) QuoteIdentifier(name string) string {
	return b.Quote(name)
}

// QuoteTable quotes a table name, treating one dot as a schema separator.
func (b BaseSQLBuilder) QuoteTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok && schema != "" && name != "" {
		return b.Quote(schema) + "." + b.Quote(name)
	}
	return b.Quote(table)
}

// BuildInsertSQL returns a plain INSERT with one bind per column.
func (b BaseSQLBuilder) BuildInsertSQL(rec *models.DataRecord) (string, []any) {
	cols := make([]string, len(rec.Columns))
	binds := make([]string, len(rec.Columns))
	args := make([]any, len(rec.Columns))
	for i, c := range rec.Columns {
		cols[i] = b.Quote(c.Name)
		binds[i] = b.Bind(i + 1)
		args[i] = c.Value
	}
	return fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s)",
		b.QuoteTable(rec.TableName), strings.Join(cols, ","), strings.Join(binds, ",")), args
}

// ExtractUpdatedColumns returns the columns flagged as updated.
func (b BaseSQLBuilder) ExtractUpdatedColumns(rec *models.DataRecord) []models.Column {
	var updated []models.Column
	for _, c := range rec.Columns {
		if c.Updated {
			updated = append(updated, c)
		}
	}
	return updated
}

// BuildUpdateSQL sets the updated columns and matches on conditionColumns,
// using the old value of any key column that was itself updated.
func (b BaseSQLBuilder) BuildUpdateSQL(rec *models.DataRecord, conditionColumns []models.Column) (string, []any) {
	return b.buildUpdate(rec, b.ExtractUpdatedColumns(rec), conditionColumns)
}

func (b BaseSQLBuilder) buildUpdate(rec *models.DataRecord, setColumns, conditionColumns []models.Column) (string, []any) {
	sets := make([]string, len(setColumns))
	args := make([]any, 0, len(setColumns)+len(conditionColumns))
	for i, c := range setColumns {
		sets[i] = fmt.Sprintf("%s=%s", b.Quote(c.Name), b.Bind(i+1))
		args = append(args, c.Value)
	}
	where, condArgs := b.whereClause(conditionColumns, len(setColumns)+1)
	return fmt.Sprintf("UPDATE %s SET %s%s", b.QuoteTable(rec.TableName), strings.Join(sets, ","), where), append(args, condArgs...)
}

// BuildUpdateWithColumns is BuildUpdateSQL with an explicit SET list.
func (b BaseSQLBuilder) BuildUpdateWithColumns(rec *models.DataRecord, setColumns, conditionColumns []models.Column) (string, []any) {
	return b.buildUpdate(rec, setColumns, conditionColumns)
}

// BuildDeleteSQL matches on conditionColumns.
func (b BaseSQLBuilder) BuildDeleteSQL(rec *models.DataRecord, conditionColumns []models.Column) (string, []any) {
	where, args := b.whereClause(conditionColumns, 1)
	return fmt.Sprintf("DELETE FROM %s%s", b.QuoteTable(rec.TableName), where), args
}

func (b BaseSQLBuilder) whereClause(conditionColumns []models.Column, firstBind int) (string, []any) {
	if len(conditionColumns) == 0 {
		return "", nil
	}
	conds := make([]string, len(conditionColumns))
	args := make([]any, len(conditionColumns))
	for i, c := range conditionColumns {
		conds[i] = fmt.Sprintf("%s=%s", b.Quote(c.Name), b.Bind(firstBind+i))
		args[i] = c.ConditionValue()
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (b BaseSQLBuilder) BuildTruncateSQL(table string) string {
	return "TRUNCATE TABLE " + b.QuoteTable(table)
}

func (b BaseSQLBuilder) BuildCountSQL(table string) string {
	return "SELECT COUNT(*) FROM " + b.QuoteTable(table)
}

// BuildChunkedQuerySQL uses LIMIT; dialects without it override.
func (b BaseSQLBuilder) BuildChunkedQuerySQL(table, uniqueKey string, firstQuery bool) string {
	t, k := b.QuoteTable(table), b.Quote(uniqueKey)
	if firstQuery {
		return fmt.Sprintf("SELECT * FROM %s ORDER BY %s ASC LIMIT %s", t, k, b.Bind(1))
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s > %s ORDER BY %s ASC LIMIT %s", t, k, b.Bind(1), k, b.Bind(2))
}

func (b BaseSQLBuilder) BuildCheckEmptySQL(table string) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT 1", b.QuoteTable(table))
}

func (b BaseSQLBuilder) BuildSplitByPrimaryKeyRangeSQL(table, primaryKey string) string {
	t, k := b.QuoteTable(table), b.Quote(primaryKey)
	return fmt.Sprintf("SELECT MAX(%s) FROM (SELECT %s FROM %s WHERE %s >= %s ORDER BY %s ASC LIMIT %s) t",
		k, k, t, k, b.Bind(1), k, b.Bind(2))
}

// BuildCRC32SQL is unsupported unless a dialect overrides it.
func (b BaseSQLBuilder) BuildCRC32SQL(table, column string) (string, error) {
	return "", fmt.Errorf("%w: CRC32 checksum on %s", apperrors.ErrUnsupported, table)
}

// DollarPlaceholder renders PostgreSQL-style $n markers.
func DollarPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// QuestionPlaceholder renders positional ? markers.
func QuestionPlaceholder(int) string {
	return "?"
}

// Placeholders returns count markers starting at first, comma-joined, for IN lists.
func Placeholders(bind func(n int) string, first, count int) string {
	markers := make([]string, count)
	for i := range markers {
		markers[i] = bind(first + i)
	}
	return strings.Join(markers, ",")
}

var _ SQLBuilder = BaseSQLBuilder{}
