package postgres

import (
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// SQLBuilder generates PostgreSQL-family SQL. openGauss reuses it with its own quoting.
type SQLBuilder struct {
	datasource.BaseSQLBuilder
}

// NewSQLBuilder returns a builder using pgx identifier sanitizing and $n binds.
func NewSQLBuilder() *SQLBuilder {
	return NewSQLBuilderWithQuote(QuoteIdentifier)
}

// NewSQLBuilderWithQuote returns a PostgreSQL-family builder with custom quoting.
func NewSQLBuilderWithQuote(quote func(string) string) *SQLBuilder {
	return &SQLBuilder{BaseSQLBuilder: datasource.BaseSQLBuilder{
		Quote: quote,
		Bind:  datasource.DollarPlaceholder,
	}}
}

// QuoteIdentifier quotes name with pgx's sanitizer.
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// BuildInsertSQL skips rows whose unique key already exists.
func (b *SQLBuilder) BuildInsertSQL(rec *models.DataRecord) (string, []any) {
	query, args := b.BaseSQLBuilder.BuildInsertSQL(rec)
	keys := rec.UniqueKeyColumns()
	if len(keys) == 0 {
		return query, args
	}
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = b.Quote(k.Name)
	}
	return query + " ON CONFLICT (" + strings.Join(quoted, ",") + ") DO NOTHING", args
}

var _ datasource.SQLBuilder = (*SQLBuilder)(nil)
