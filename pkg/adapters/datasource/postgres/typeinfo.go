package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

const typeInfoQuery = "SELECT typname, typtype FROM pg_catalog.pg_type ORDER BY oid"

var builtinTypes = map[string]models.DataType{
	"int2":        models.DataTypeSmallInt,
	"int4":        models.DataTypeInteger,
	"oid":         models.DataTypeBigInt,
	"int8":        models.DataTypeBigInt,
	"money":       models.DataTypeDouble,
	"numeric":     models.DataTypeNumeric,
	"float4":      models.DataTypeReal,
	"float8":      models.DataTypeDouble,
	"char":        models.DataTypeChar,
	"bpchar":      models.DataTypeChar,
	"varchar":     models.DataTypeVarchar,
	"text":        models.DataTypeVarchar,
	"name":        models.DataTypeVarchar,
	"bytea":       models.DataTypeBinary,
	"bool":        models.DataTypeBit,
	"bit":         models.DataTypeBit,
	"date":        models.DataTypeDate,
	"time":        models.DataTypeTime,
	"timetz":      models.DataTypeTime,
	"timestamp":   models.DataTypeTimestamp,
	"timestamptz": models.DataTypeTimestamp,
	"xml":         models.DataTypeSQLXML,
	"clob":        models.DataTypeClob,
	"blob":        models.DataTypeBlob,
}

// ClassifyType maps a pg_type entry to its canonical type. Array types are
// prefixed with an underscore, composite types have typtype 'c'.
func ClassifyType(name, typtype string) models.DataType {
	if dt, ok := builtinTypes[name]; ok {
		return dt
	}
	if strings.HasPrefix(name, "_") {
		return models.DataTypeArray
	}
	if typtype == "c" {
		return models.DataTypeStruct
	}
	return models.DataTypeOther
}

// TypeInfoReader reads pg_catalog.pg_type. openGauss shares the catalog.
type TypeInfoReader struct{}

func (TypeInfoReader) ReadTypeInfo(ctx context.Context, conn *sql.Conn) ([]datasource.TypeInfo, error) {
	var infos []datasource.TypeInfo
	err := datasource.QueryConnRows(ctx, conn, "type info", typeInfoQuery, nil, func(rows *sql.Rows) error {
		var name, typtype string
		if err := rows.Scan(&name, &typtype); err != nil {
			return err
		}
		infos = append(infos, datasource.TypeInfo{Name: name, DataType: ClassifyType(name, typtype)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

var _ datasource.TypeInfoReader = TypeInfoReader{}
