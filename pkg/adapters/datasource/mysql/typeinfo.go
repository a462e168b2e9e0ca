package mysql

import (
	"context"
	"database/sql"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// typeInfo is the catalog the MySQL driver reports; the server has no queryable equivalent.
var typeInfo = []datasource.TypeInfo{
	{Name: "BIT", DataType: models.DataTypeBit},
	{Name: "BOOL", DataType: models.DataTypeBit},
	{Name: "BOOLEAN", DataType: models.DataTypeBoolean},
	{Name: "TINYINT", DataType: models.DataTypeTinyInt},
	{Name: "SMALLINT", DataType: models.DataTypeSmallInt},
	{Name: "MEDIUMINT", DataType: models.DataTypeInteger},
	{Name: "INT", DataType: models.DataTypeInteger},
	{Name: "INTEGER", DataType: models.DataTypeInteger},
	{Name: "BIGINT", DataType: models.DataTypeBigInt},
	{Name: "FLOAT", DataType: models.DataTypeReal},
	{Name: "REAL", DataType: models.DataTypeDouble},
	{Name: "DOUBLE", DataType: models.DataTypeDouble},
	{Name: "DECIMAL", DataType: models.DataTypeDecimal},
	{Name: "NUMERIC", DataType: models.DataTypeDecimal},
	{Name: "CHAR", DataType: models.DataTypeChar},
	{Name: "VARCHAR", DataType: models.DataTypeVarchar},
	{Name: "ENUM", DataType: models.DataTypeChar},
	{Name: "SET", DataType: models.DataTypeChar},
	{Name: "TINYTEXT", DataType: models.DataTypeVarchar},
	{Name: "TEXT", DataType: models.DataTypeLongVarchar},
	{Name: "MEDIUMTEXT", DataType: models.DataTypeLongVarchar},
	{Name: "LONGTEXT", DataType: models.DataTypeLongVarchar},
	{Name: "JSON", DataType: models.DataTypeLongVarchar},
	{Name: "BINARY", DataType: models.DataTypeBinary},
	{Name: "VARBINARY", DataType: models.DataTypeVarBinary},
	{Name: "TINYBLOB", DataType: models.DataTypeVarBinary},
	{Name: "BLOB", DataType: models.DataTypeLongVarBinary},
	{Name: "MEDIUMBLOB", DataType: models.DataTypeLongVarBinary},
	{Name: "LONGBLOB", DataType: models.DataTypeLongVarBinary},
	{Name: "DATE", DataType: models.DataTypeDate},
	{Name: "YEAR", DataType: models.DataTypeDate},
	{Name: "TIME", DataType: models.DataTypeTime},
	{Name: "DATETIME", DataType: models.DataTypeTimestamp},
	{Name: "TIMESTAMP", DataType: models.DataTypeTimestamp},
	{Name: "GEOMETRY", DataType: models.DataTypeBinary},
}

// TypeInfoReader reports the fixed MySQL type list without querying the server.
type TypeInfoReader struct{}

func (TypeInfoReader) ReadTypeInfo(context.Context, *sql.Conn) ([]datasource.TypeInfo, error) {
	return append([]datasource.TypeInfo(nil), typeInfo...), nil
}

var _ datasource.TypeInfoReader = TypeInfoReader{}
