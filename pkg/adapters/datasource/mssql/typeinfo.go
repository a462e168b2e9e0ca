package mssql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

const typeInfoQuery = "SELECT name FROM sys.types ORDER BY user_type_id"

// ClassifyType maps a SQL Server type name to its canonical type.
func ClassifyType(name string) models.DataType {
	switch strings.ToUpper(name) {
	case "BIT":
		return models.DataTypeBit
	case "TINYINT":
		return models.DataTypeTinyInt
	case "SMALLINT":
		return models.DataTypeSmallInt
	case "INT":
		return models.DataTypeInteger
	case "BIGINT":
		return models.DataTypeBigInt
	case "REAL":
		return models.DataTypeReal
	case "FLOAT":
		return models.DataTypeDouble
	case "DECIMAL", "MONEY", "SMALLMONEY":
		return models.DataTypeDecimal
	case "NUMERIC":
		return models.DataTypeNumeric
	case "CHAR":
		return models.DataTypeChar
	case "VARCHAR":
		return models.DataTypeVarchar
	case "TEXT":
		return models.DataTypeLongVarchar
	case "NCHAR":
		return models.DataTypeNChar
	case "NVARCHAR", "SYSNAME":
		return models.DataTypeNVarchar
	case "NTEXT":
		return models.DataTypeNClob
	case "DATE":
		return models.DataTypeDate
	case "TIME":
		return models.DataTypeTime
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return models.DataTypeTimestamp
	case "DATETIMEOFFSET":
		return models.DataTypeTimestampWithTimezone
	case "BINARY", "TIMESTAMP":
		return models.DataTypeBinary
	case "VARBINARY":
		return models.DataTypeVarBinary
	case "IMAGE":
		return models.DataTypeLongVarBinary
	case "XML":
		return models.DataTypeSQLXML
	case "UNIQUEIDENTIFIER":
		return models.DataTypeChar
	default:
		return models.DataTypeOther
	}
}

// TypeInfoReader reads sys.types.
type TypeInfoReader struct{}

func (TypeInfoReader) ReadTypeInfo(ctx context.Context, conn *sql.Conn) ([]datasource.TypeInfo, error) {
	var infos []datasource.TypeInfo
	err := datasource.QueryConnRows(ctx, conn, "type info", typeInfoQuery, nil, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		infos = append(infos, datasource.TypeInfo{Name: name, DataType: ClassifyType(name)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

var _ datasource.TypeInfoReader = TypeInfoReader{}
