package consistency

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

const (
	firstChunkQuery = `SELECT * FROM "tbl" ORDER BY "id" ASC LIMIT $1`
	nextChunkQuery  = `SELECT * FROM "tbl" WHERE "id" > $1 ORDER BY "id" ASC LIMIT $2`
)

func chunkRows(ids ...int64) *sqlmock.Rows {
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("INT8", int64(0)),
		sqlmock.NewColumn("name").OfType("VARCHAR", ""),
	)
	for _, id := range ids {
		rows.AddRow(id, "name")
	}
	return rows
}

func expectFirstChunk(mock sqlmock.Sqlmock, size int, ids ...int64) {
	mock.ExpectPrepare(regexp.QuoteMeta(firstChunkQuery)).ExpectQuery().
		WithArgs(size).
		WillReturnRows(chunkRows(ids...))
}

func expectNextChunk(mock sqlmock.Sqlmock, after int64, size int, ids ...int64) {
	mock.ExpectPrepare(regexp.QuoteMeta(nextChunkQuery)).ExpectQuery().
		WithArgs(after, size).
		WillReturnRows(chunkRows(ids...))
}

func newTestCalculator(t *testing.T, chunkSize int) *DataMatchCalculator {
	t.Helper()
	return NewDataMatchCalculator(Config{ChunkSize: chunkSize}, datasource.NewDialectFactory(nil), zaptest.NewLogger(t))
}

func tableParam(db *sql.DB) CalculateParameter {
	return CalculateParameter{
		LogicTableName: "tbl",
		DatabaseType:   models.DatabaseTypePostgreSQL,
		UniqueKey:      "id",
		DataSource:     db,
	}
}

func TestNewDataMatchCalculator_ChunkSizeDefault(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{name: "zero", size: 0, want: DefaultChunkSize},
		{name: "negative", size: -5, want: DefaultChunkSize},
		{name: "explicit", size: 2, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newTestCalculator(t, tt.size).ChunkSize())
		})
	}
}

func TestDataMatchCalculator_CalculateChunk(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectFirstChunk(mock, 2, 1, 2)
	expectNextChunk(mock, 2, 2, 3, 4)
	expectNextChunk(mock, 4, 2, 5)
	expectNextChunk(mock, 5, 2)

	calc := newTestCalculator(t, 2)
	ctx := context.Background()
	p := tableParam(db)

	var maxKeys []any
	for {
		result, err := calc.CalculateChunk(ctx, p)
		require.NoError(t, err)
		if result == nil {
			break
		}
		maxKeys = append(maxKeys, result.MaxUniqueKeyValue)
		p.Previous = result
	}

	assert.Equal(t, []any{int64(2), int64(4), int64(5)}, maxKeys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDataMatchCalculator_ChunkContents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectFirstChunk(mock, 10, 1, 2, 3)

	result, err := newTestCalculator(t, 10).CalculateChunk(context.Background(), tableParam(db))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 3, result.RecordsCount)
	assert.Equal(t, []string{"id", "name"}, result.Columns)
	require.Len(t, result.Records, 3)
	assert.Equal(t, []any{int64(1), "name"}, result.Records[0])
}

func TestDataMatchCalculator_MaxKeyOverAllRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectFirstChunk(mock, 10, 3, 9, 4)

	result, err := newTestCalculator(t, 10).CalculateChunk(context.Background(), tableParam(db))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(9), result.MaxUniqueKeyValue)
}

func TestDataMatchCalculator_StringKeysFollowDatabaseOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Case-insensitive collation orders "a" before "B"; byte order would not.
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("VARCHAR", ""),
	).AddRow("a").AddRow("B")
	mock.ExpectPrepare(regexp.QuoteMeta(firstChunkQuery)).ExpectQuery().WithArgs(2).WillReturnRows(rows)
	mock.ExpectPrepare(regexp.QuoteMeta(nextChunkQuery)).ExpectQuery().WithArgs("B", 2).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(sqlmock.NewColumn("id").OfType("VARCHAR", "")))

	calc := newTestCalculator(t, 2)
	p := tableParam(db)
	first, err := calc.CalculateChunk(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "B", first.MaxUniqueKeyValue)

	p.Previous = first
	next, err := calc.CalculateChunk(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataMatchCalculator_Calculate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectFirstChunk(mock, 2, 1, 2)
	expectNextChunk(mock, 2, 2, 3)
	expectNextChunk(mock, 3, 2)

	var counts []int
	for result, err := range newTestCalculator(t, 2).Calculate(context.Background(), tableParam(db)) {
		require.NoError(t, err)
		counts = append(counts, result.RecordsCount)
	}

	assert.Equal(t, []int{2, 1}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDataMatchCalculator_CalculateStopsOnCancel(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var errs []error
	for _, err := range newTestCalculator(t, 2).Calculate(ctx, tableParam(db)) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestDataMatchCalculator_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare(regexp.QuoteMeta(firstChunkQuery)).ExpectQuery().
		WithArgs(2).
		WillReturnError(errors.New("connection reset"))

	_, err = newTestCalculator(t, 2).CalculateChunk(context.Background(), tableParam(db))
	require.Error(t, err)

	var checkErr *apperrors.ConsistencyCheckError
	require.ErrorAs(t, err, &checkErr)
	assert.Equal(t, "tbl", checkErr.Table)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDataMatchCalculator_InvalidParameters(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	calc := newTestCalculator(t, 2)

	noKey := tableParam(db)
	noKey.UniqueKey = ""
	_, err = calc.CalculateChunk(context.Background(), noKey)
	assert.Error(t, err)

	unknown := tableParam(db)
	unknown.DatabaseType = models.DatabaseType("Oracle")
	_, err = calc.CalculateChunk(context.Background(), unknown)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedDatabaseType)
}

func TestDataMatchCalculator_LargeObjectColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("INT8", int64(0)),
		sqlmock.NewColumn("doc").OfType("XML", ""),
	).AddRow(int64(1), "<a/>")
	mock.ExpectPrepare(regexp.QuoteMeta(firstChunkQuery)).ExpectQuery().WithArgs(2).WillReturnRows(rows)

	result, err := newTestCalculator(t, 2).CalculateChunk(context.Background(), tableParam(db))
	require.NoError(t, err)
	require.NotNil(t, result)

	lo, ok := result.Records[0][1].(*LargeObject)
	require.True(t, ok)
	assert.Equal(t, "<a/>", lo.Content())
}
