package mssql

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
)

// SQLBuilder generates T-SQL. Row caps use TOP instead of LIMIT.
type SQLBuilder struct {
	datasource.BaseSQLBuilder
}

func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{BaseSQLBuilder: datasource.BaseSQLBuilder{
		Quote: QuoteName,
		Bind:  AtPlaceholder,
	}}
}

// QuoteName brackets an identifier, escaping ] as ]] like QUOTENAME().
func QuoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// AtPlaceholder renders go-mssqldb's @pN markers.
func AtPlaceholder(n int) string {
	return fmt.Sprintf("@p%d", n)
}

func (b *SQLBuilder) BuildChunkedQuerySQL(table, uniqueKey string, firstQuery bool) string {
	t, k := b.QuoteTable(table), b.Quote(uniqueKey)
	if firstQuery {
		return fmt.Sprintf("SELECT TOP (%s) * FROM %s ORDER BY %s ASC", b.Bind(1), t, k)
	}
	return fmt.Sprintf("SELECT TOP (%s) * FROM %s WHERE %s > %s ORDER BY %s ASC", b.Bind(2), t, k, b.Bind(1), k)
}

func (b *SQLBuilder) BuildCheckEmptySQL(table string) string {
	return "SELECT TOP 1 * FROM " + b.QuoteTable(table)
}

func (b *SQLBuilder) BuildSplitByPrimaryKeyRangeSQL(table, primaryKey string) string {
	t, k := b.QuoteTable(table), b.Quote(primaryKey)
	return fmt.Sprintf("SELECT MAX(%s) FROM (SELECT TOP (%s) %s FROM %s WHERE %s >= %s ORDER BY %s ASC) t",
		k, b.Bind(2), k, t, k, b.Bind(1), k)
}

var _ datasource.SQLBuilder = (*SQLBuilder)(nil)
