package models

// RecordType is the change kind carried by a DataRecord.
type RecordType string

const (
	RecordTypeInsert RecordType = "INSERT"
	RecordTypeUpdate RecordType = "UPDATE"
	RecordTypeDelete RecordType = "DELETE"
)

// Column is one column value of a captured row change.
// OldValue is only meaningful when Updated is set on a key column.
type Column struct {
	Name      string
	OldValue  any
	Value     any
	Updated   bool
	UniqueKey bool
}

// DataRecord is the row shape produced by change readers and consumed by writers.
type DataRecord struct {
	TableName string
	Type      RecordType
	Columns   []Column
}

// Column returns the named column, or nil.
func (r *DataRecord) Column(name string) *Column {
	for i := range r.Columns {
		if r.Columns[i].Name == name {
			return &r.Columns[i]
		}
	}
	return nil
}

// UniqueKeyColumns returns the columns flagged as unique key, in record order.
func (r *DataRecord) UniqueKeyColumns() []Column {
	var keys []Column
	for _, c := range r.Columns {
		if c.UniqueKey {
			keys = append(keys, c)
		}
	}
	return keys
}

// ConditionValue is the value to match a row by: the pre-image for an updated key.
func (c Column) ConditionValue() any {
	if c.UniqueKey && c.Updated {
		return c.OldValue
	}
	return c.Value
}
