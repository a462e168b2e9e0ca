package models

// DataType is the dialect-independent classification a column type maps to.
type DataType int

const (
	DataTypeUnknown DataType = iota
	DataTypeBit
	DataTypeBoolean
	DataTypeTinyInt
	DataTypeSmallInt
	DataTypeInteger
	DataTypeBigInt
	DataTypeReal
	DataTypeFloat
	DataTypeDouble
	DataTypeNumeric
	DataTypeDecimal
	DataTypeChar
	DataTypeVarchar
	DataTypeLongVarchar
	DataTypeNChar
	DataTypeNVarchar
	DataTypeDate
	DataTypeTime
	DataTypeTimestamp
	DataTypeTimestampWithTimezone
	DataTypeBinary
	DataTypeVarBinary
	DataTypeLongVarBinary
	DataTypeBlob
	DataTypeClob
	DataTypeNClob
	DataTypeSQLXML
	DataTypeArray
	DataTypeStruct
	DataTypeOther
)

var dataTypeNames = map[DataType]string{
	DataTypeUnknown:               "UNKNOWN",
	DataTypeBit:                   "BIT",
	DataTypeBoolean:               "BOOLEAN",
	DataTypeTinyInt:               "TINYINT",
	DataTypeSmallInt:              "SMALLINT",
	DataTypeInteger:               "INTEGER",
	DataTypeBigInt:                "BIGINT",
	DataTypeReal:                  "REAL",
	DataTypeFloat:                 "FLOAT",
	DataTypeDouble:                "DOUBLE",
	DataTypeNumeric:               "NUMERIC",
	DataTypeDecimal:               "DECIMAL",
	DataTypeChar:                  "CHAR",
	DataTypeVarchar:               "VARCHAR",
	DataTypeLongVarchar:           "LONGVARCHAR",
	DataTypeNChar:                 "NCHAR",
	DataTypeNVarchar:              "NVARCHAR",
	DataTypeDate:                  "DATE",
	DataTypeTime:                  "TIME",
	DataTypeTimestamp:             "TIMESTAMP",
	DataTypeTimestampWithTimezone: "TIMESTAMP_WITH_TIMEZONE",
	DataTypeBinary:                "BINARY",
	DataTypeVarBinary:             "VARBINARY",
	DataTypeLongVarBinary:         "LONGVARBINARY",
	DataTypeBlob:                  "BLOB",
	DataTypeClob:                  "CLOB",
	DataTypeNClob:                 "NCLOB",
	DataTypeSQLXML:                "SQLXML",
	DataTypeArray:                 "ARRAY",
	DataTypeStruct:                "STRUCT",
	DataTypeOther:                 "OTHER",
}

func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalYAML renders the type by name so schema dumps stay readable.
func (d DataType) MarshalYAML() (any, error) {
	return d.String(), nil
}

// IsLargeObject reports whether values of this type are compared by materialized content.
func (d DataType) IsLargeObject() bool {
	switch d {
	case DataTypeClob, DataTypeNClob, DataTypeSQLXML:
		return true
	default:
		return false
	}
}
