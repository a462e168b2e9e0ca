package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// DataTypeMap maps a dialect type name to its canonical type.
type DataTypeMap map[string]models.DataType

// Resolve returns the canonical type for name, DataTypeUnknown when unmapped.
func (m DataTypeMap) Resolve(name string) models.DataType {
	if dt, ok := m[name]; ok {
		return dt
	}
	return models.DataTypeUnknown
}

// LoadDataTypes reads the dialect's type catalog once and maps every reported
// name. A name reported twice keeps its last mapping.
func LoadDataTypes(ctx context.Context, conn *sql.Conn, reader TypeInfoReader) (DataTypeMap, error) {
	infos, err := reader.ReadTypeInfo(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("load data types: %w", err)
	}

	result := make(DataTypeMap, len(infos))
	for _, info := range infos {
		result[info.Name] = info.DataType
	}
	return result, nil
}

// LoadSourceDataTypes is LoadDataTypes on a dedicated connection from source.
func LoadSourceDataTypes(ctx context.Context, source Connector, reader TypeInfoReader) (DataTypeMap, error) {
	conn, err := source.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for type info: %w", err)
	}
	defer conn.Close()

	return LoadDataTypes(ctx, conn, reader)
}
