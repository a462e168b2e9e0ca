package datasource

import (
	"context"
	"database/sql"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// Connector yields a dedicated connection for the duration of one catalog query
// or one chunk fetch. Callers must close the connection on every exit path.
// *sql.DB and *DataSource both satisfy it.
type Connector interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// SQLBuilder produces the dialect SQL used by the consistency calculator and
// by writers applying captured row changes. Implementations are stateless.
type SQLBuilder interface {
	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string

	// QuoteIdentifier quotes a table or column name for this dialect.
	QuoteIdentifier(name string) string

	// BuildInsertSQL returns an insert for rec; the statement's arguments are
	// the column values in record order.
	BuildInsertSQL(rec *models.DataRecord) (string, []any)

	// BuildUpdateSQL sets only updated columns and matches on conditionColumns.
	BuildUpdateSQL(rec *models.DataRecord, conditionColumns []models.Column) (string, []any)

	// ExtractUpdatedColumns returns the columns an update should set.
	ExtractUpdatedColumns(rec *models.DataRecord) []models.Column

	// BuildDeleteSQL matches on conditionColumns.
	BuildDeleteSQL(rec *models.DataRecord, conditionColumns []models.Column) (string, []any)

	BuildTruncateSQL(table string) string

	BuildCountSQL(table string) string

	// BuildChunkedQuerySQL returns the chunk query ordered by uniqueKey.
	// With firstQuery the lower bound is open and only the row cap is bound;
	// otherwise parameter 1 is the exclusive lower bound and parameter 2 the row cap.
	BuildChunkedQuerySQL(table, uniqueKey string, firstQuery bool) string

	BuildCheckEmptySQL(table string) string

	// BuildSplitByPrimaryKeyRangeSQL returns the maximum key among the first
	// (parameter 2) keys at or above parameter 1.
	BuildSplitByPrimaryKeyRangeSQL(table, primaryKey string) string

	// BuildCRC32SQL returns apperrors.ErrUnsupported when the dialect has no equivalent.
	BuildCRC32SQL(table, column string) (string, error)
}

// TypeInfo is one entry of a dialect's reported type catalog.
type TypeInfo struct {
	Name     string
	DataType models.DataType
}

// TypeInfoReader is the catalog accessor used only by LoadDataTypes.
type TypeInfoReader interface {
	ReadTypeInfo(ctx context.Context, conn *sql.Conn) ([]TypeInfo, error)
}

// SchemaLoader introspects catalog views into normalized schema metadata.
// A non-empty tables filter narrows only the column query. The load either
// returns the complete result or an error, never partial metadata.
type SchemaLoader interface {
	Load(ctx context.Context, source Connector, tables []string, defaultSchemaName string) ([]*models.SchemaMetaData, error)
}

// ReplicationProbe issues the dialect's replication status and lag queries.
type ReplicationProbe interface {
	LoadHighlyAvailableStatus(ctx context.Context, source Connector) (models.HighlyAvailableStatus, error)

	// LoadReplicationDelay returns the replica's lag in milliseconds.
	LoadReplicationDelay(ctx context.Context, source Connector) (int64, error)
}
