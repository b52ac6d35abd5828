// Package table implements the table data model (schema, row, cell) and
// the table-access layer (insert, find, load_all) built over a page Store.
package table

import "fmt"

// ColumnType identifies the shape of a column's values.
type ColumnType uint8

const (
	Int ColumnType = iota
	Varchar
	Byte
)

// String returns a human-readable label for the column type.
func (t ColumnType) String() string {
	switch t {
	case Int:
		return "Int"
	case Varchar:
		return "Varchar"
	case Byte:
		return "Byte"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Column describes one field of a table schema. MaxLen is only meaningful
// for Varchar columns.
type Column struct {
	ID     int32
	Name   string
	Type   ColumnType
	MaxLen uint16
}

// NewIntColumn builds an Int column.
func NewIntColumn(id int32, name string) Column {
	return Column{ID: id, Name: name, Type: Int}
}

// NewVarcharColumn builds a Varchar column with the given maximum length.
func NewVarcharColumn(id int32, name string, maxLen uint16) Column {
	return Column{ID: id, Name: name, Type: Varchar, MaxLen: maxLen}
}

// NewByteColumn builds a Byte column.
func NewByteColumn(id int32, name string) Column {
	return Column{ID: id, Name: name, Type: Byte}
}

// Schema is an ordered, non-empty sequence of columns. Column order is
// load-bearing: it fixes the serialization order of every row.
type Schema []Column

// IndexOf returns the position of the column named name, or -1 if no such
// column exists. The match is exact; see ColumnIndex in access.go for the
// case-folding lookup Find uses.
func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Table is a named, schema-bound collection of rows backed by one page
// file. Its id determines the backing file's name.
type Table struct {
	ID     int32
	Name   string
	Schema Schema
}

// NewTable constructs a Table. The caller is responsible for registering
// it wherever tables are looked up by name — that registry is outside
// this package's scope.
func NewTable(id int32, name string, schema Schema) *Table {
	return &Table{ID: id, Name: name, Schema: schema}
}

// FileName returns the table's backing file basename.
func (t *Table) FileName() string {
	return fmt.Sprintf("table_%d.dat", t.ID)
}
