package datasource

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

func testBuilder() BaseSQLBuilder {
	return BaseSQLBuilder{
		Quote: func(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` },
		Bind:  DollarPlaceholder,
	}
}

func orderRecord() *models.DataRecord {
	return &models.DataRecord{
		TableName: "t_order",
		Type:      models.RecordTypeUpdate,
		Columns: []models.Column{
			{Name: "order_id", OldValue: 1, Value: 2, Updated: true, UniqueKey: true},
			{Name: "user_id", Value: 10},
			{Name: "status", OldValue: "new", Value: "paid", Updated: true},
		},
	}
}

func TestBaseSQLBuilder_ChunkedQuery(t *testing.T) {
	b := testBuilder()
	assert.Equal(t, `SELECT * FROM "t_order" ORDER BY "order_id" ASC LIMIT $1`,
		b.BuildChunkedQuerySQL("t_order", "order_id", true))
	assert.Equal(t, `SELECT * FROM "t_order" WHERE "order_id" > $1 ORDER BY "order_id" ASC LIMIT $2`,
		b.BuildChunkedQuerySQL("t_order", "order_id", false))
}

func TestBaseSQLBuilder_QuoteTable(t *testing.T) {
	b := testBuilder()
	assert.Equal(t, `"public"."t_order"`, b.QuoteTable("public.t_order"))
	assert.Equal(t, `"t_order"`, b.QuoteTable("t_order"))
	assert.Equal(t, `"a""b"`, b.QuoteTable(`a"b`))
}

func TestBaseSQLBuilder_Insert(t *testing.T) {
	sql, args := testBuilder().BuildInsertSQL(orderRecord())
	assert.Equal(t, `INSERT INTO "t_order"("order_id","user_id","status") VALUES($1,$2,$3)`, sql)
	assert.Equal(t, []any{2, 10, "paid"}, args)
}

func TestBaseSQLBuilder_UpdateUsesOldKeyValue(t *testing.T) {
	b := testBuilder()
	rec := orderRecord()

	updated := b.ExtractUpdatedColumns(rec)
	require.Len(t, updated, 2)

	sql, args := b.BuildUpdateSQL(rec, rec.UniqueKeyColumns())
	assert.Equal(t, `UPDATE "t_order" SET "order_id"=$1,"status"=$2 WHERE "order_id"=$3`, sql)
	assert.Equal(t, []any{2, "paid", 1}, args)
}

func TestBaseSQLBuilder_UpdateWithExplicitColumns(t *testing.T) {
	rec := orderRecord()
	set := []models.Column{rec.Columns[1]}

	sql, args := testBuilder().BuildUpdateWithColumns(rec, set, rec.UniqueKeyColumns())
	assert.Equal(t, `UPDATE "t_order" SET "user_id"=$1 WHERE "order_id"=$2`, sql)
	assert.Equal(t, []any{10, 1}, args)
}

func TestBaseSQLBuilder_Delete(t *testing.T) {
	rec := orderRecord()
	sql, args := testBuilder().BuildDeleteSQL(rec, rec.UniqueKeyColumns())
	assert.Equal(t, `DELETE FROM "t_order" WHERE "order_id"=$1`, sql)
	assert.Equal(t, []any{1}, args)
}

func TestBaseSQLBuilder_Misc(t *testing.T) {
	b := testBuilder()
	assert.Equal(t, `TRUNCATE TABLE "t_order"`, b.BuildTruncateSQL("t_order"))
	assert.Equal(t, `SELECT COUNT(*) FROM "t_order"`, b.BuildCountSQL("t_order"))
	assert.Equal(t, `SELECT * FROM "t_order" LIMIT 1`, b.BuildCheckEmptySQL("t_order"))
	assert.Equal(t,
		`SELECT MAX("order_id") FROM (SELECT "order_id" FROM "t_order" WHERE "order_id" >= $1 ORDER BY "order_id" ASC LIMIT $2) t`,
		b.BuildSplitByPrimaryKeyRangeSQL("t_order", "order_id"))

	_, err := b.BuildCRC32SQL("t_order", "status")
	assert.ErrorIs(t, err, apperrors.ErrUnsupported)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$3,$4,$5", Placeholders(DollarPlaceholder, 3, 3))
	assert.Equal(t, "?,?", Placeholders(QuestionPlaceholder, 1, 2))
	assert.Equal(t, "", Placeholders(QuestionPlaceholder, 1, 0))
}
