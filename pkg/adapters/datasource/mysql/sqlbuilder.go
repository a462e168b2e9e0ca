package mysql

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// SQLBuilder generates MySQL SQL with backtick quoting and ? binds.
type SQLBuilder struct {
	datasource.BaseSQLBuilder
}

func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{BaseSQLBuilder: datasource.BaseSQLBuilder{
		Quote: QuoteIdentifier,
		Bind:  datasource.QuestionPlaceholder,
	}}
}

// QuoteIdentifier wraps name in backticks, doubling embedded backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// BuildInsertSQL overwrites non-key columns of an existing row.
func (b *SQLBuilder) BuildInsertSQL(rec *models.DataRecord) (string, []any) {
	query, args := b.BaseSQLBuilder.BuildInsertSQL(rec)

	var sets []string
	for _, c := range rec.Columns {
		if c.UniqueKey {
			continue
		}
		q := b.Quote(c.Name)
		sets = append(sets, q+"=VALUES("+q+")")
	}
	if len(sets) == 0 {
		return query, args
	}
	return query + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ","), args
}

// BuildCRC32SQL returns an order-independent checksum of column over the table.
func (b *SQLBuilder) BuildCRC32SQL(table, column string) (string, error) {
	q := b.Quote(column)
	return fmt.Sprintf("SELECT BIT_XOR(CAST(CRC32(%s) AS UNSIGNED)) AS checksum FROM %s", q, b.QuoteTable(table)), nil
}

var _ datasource.SQLBuilder = (*SQLBuilder)(nil)
