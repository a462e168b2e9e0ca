package models

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SchemaMetaData is one logical schema namespace with its tables.
// It is built once per load and never mutated afterwards; refresh means reloading.
type SchemaMetaData struct {
	Name   string
	Tables *orderedmap.OrderedMap[string, *TableMetaData]
}

// NewSchemaMetaData creates an empty schema.
func NewSchemaMetaData(name string) *SchemaMetaData {
	return &SchemaMetaData{
		Name:   name,
		Tables: orderedmap.New[string, *TableMetaData](),
	}
}

// Table returns the named table, or nil.
func (s *SchemaMetaData) Table(name string) *TableMetaData {
	t, _ := s.Tables.Get(name)
	return t
}

// TableNames returns table names in load order.
func (s *SchemaMetaData) TableNames() []string {
	names := make([]string, 0, s.Tables.Len())
	for pair := s.Tables.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// TableMetaData describes a table. Columns keep catalog ordinal order.
type TableMetaData struct {
	Name        string
	Columns     *orderedmap.OrderedMap[string, *ColumnMetaData]
	Indexes     *orderedmap.OrderedMap[string, *IndexMetaData]
	Constraints []ConstraintMetaData
}

// NewTableMetaData creates a table with empty column and index mappings.
func NewTableMetaData(name string) *TableMetaData {
	return &TableMetaData{
		Name:    name,
		Columns: orderedmap.New[string, *ColumnMetaData](),
		Indexes: orderedmap.New[string, *IndexMetaData](),
	}
}

// Column returns the named column, or nil.
func (t *TableMetaData) Column(name string) *ColumnMetaData {
	c, _ := t.Columns.Get(name)
	return c
}

// ColumnList returns columns in ordinal order.
func (t *TableMetaData) ColumnList() []*ColumnMetaData {
	cols := make([]*ColumnMetaData, 0, t.Columns.Len())
	for pair := t.Columns.Oldest(); pair != nil; pair = pair.Next() {
		cols = append(cols, pair.Value)
	}
	return cols
}

// PrimaryKeyColumns returns primary key column names in ordinal order.
func (t *TableMetaData) PrimaryKeyColumns() []string {
	var pks []string
	for pair := t.Columns.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.PrimaryKey {
			pks = append(pks, pair.Key)
		}
	}
	return pks
}

// IndexNames returns index names in load order.
func (t *TableMetaData) IndexNames() []string {
	names := make([]string, 0, t.Indexes.Len())
	for pair := t.Indexes.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// ColumnMetaData is a normalized catalog column.
type ColumnMetaData struct {
	Name          string   `yaml:"name"`
	DataType      DataType `yaml:"data_type"`
	PrimaryKey    bool     `yaml:"primary_key"`
	Generated     bool     `yaml:"generated"`
	CaseSensitive bool     `yaml:"case_sensitive"`
}

// IndexMetaData carries only the index name.
type IndexMetaData struct {
	Name string `yaml:"name"`
}

// ConstraintMetaData is reserved; loaders currently never populate it.
type ConstraintMetaData struct {
	Name                string `yaml:"name"`
	ReferencedTableName string `yaml:"referenced_table_name"`
}

// MarshalYAML renders the schema as an ordered document.
func (s *SchemaMetaData) MarshalYAML() (any, error) {
	tables := make([]*TableMetaData, 0, s.Tables.Len())
	for pair := s.Tables.Oldest(); pair != nil; pair = pair.Next() {
		tables = append(tables, pair.Value)
	}
	return struct {
		Name   string           `yaml:"name"`
		Tables []*TableMetaData `yaml:"tables"`
	}{Name: s.Name, Tables: tables}, nil
}

// MarshalYAML renders the table with columns and indexes in load order.
func (t *TableMetaData) MarshalYAML() (any, error) {
	indexes := make([]*IndexMetaData, 0, t.Indexes.Len())
	for pair := t.Indexes.Oldest(); pair != nil; pair = pair.Next() {
		indexes = append(indexes, pair.Value)
	}
	return struct {
		Name        string               `yaml:"name"`
		Columns     []*ColumnMetaData    `yaml:"columns"`
		Indexes     []*IndexMetaData     `yaml:"indexes"`
		Constraints []ConstraintMetaData `yaml:"constraints,omitempty"`
	}{Name: t.Name, Columns: t.ColumnList(), Indexes: indexes, Constraints: t.Constraints}, nil
}
