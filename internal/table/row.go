package table

import (
	"encoding/binary"
	"unicode/utf8"
)

// Cell is a single typed field value. The concrete types IntCell,
// VarcharCell, and ByteCell are the only implementations; a type switch
// is the intended way to inspect one.
type Cell interface {
	columnType() ColumnType
}

// IntCell holds a 4-byte signed integer value.
type IntCell int32

func (IntCell) columnType() ColumnType { return Int }

// VarcharCell holds a UTF-8 string value, length-prefixed on the wire.
type VarcharCell string

func (VarcharCell) columnType() ColumnType { return Varchar }

// ByteCell holds a single raw byte value.
type ByteCell byte

func (ByteCell) columnType() ColumnType { return Byte }

// Row is an ordered sequence of cells. Its length and per-position types
// must match a Schema for Validate to succeed.
type Row []Cell

// Validate checks row against schema in schema-column order, returning
// the first failure found: LengthMismatch, then TypeMismatch,
// then VarcharTooLong.
func (r Row) Validate(schema Schema) error {
	if len(r) != len(schema) {
		return &RowValidationError{Kind: LengthMismatch}
	}
	for i, col := range schema {
		cell := r[i]
		if cell.columnType() != col.Type {
			return &RowValidationError{Kind: TypeMismatch, Column: col.Name}
		}
		if col.Type == Varchar {
			v := string(cell.(VarcharCell))
			if len(v) > int(col.MaxLen) {
				return &RowValidationError{Kind: VarcharTooLong, Column: col.Name, MaxLen: col.MaxLen}
			}
		}
	}
	return nil
}

// Serialize concatenates each cell's encoding in schema column order.
// There is no row-level framing: the schema is required to parse the
// result back into a Row.
func (r Row) Serialize() []byte {
	var out []byte
	for _, cell := range r {
		switch v := cell.(type) {
		case IntCell:
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(int32(v)))
			out = append(out, b[:]...)
		case VarcharCell:
			s := string(v)
			var lb [2]byte
			binary.BigEndian.PutUint16(lb[:], uint16(len(s)))
			out = append(out, lb[:]...)
			out = append(out, s...)
		case ByteCell:
			out = append(out, byte(v))
		}
	}
	return out
}

// DeserializeRow parses data into a Row under schema, consuming exactly
// as many bytes as the schema describes.
func DeserializeRow(data []byte, schema Schema) (Row, error) {
	row := make(Row, 0, len(schema))
	offset := 0
	for _, col := range schema {
		switch col.Type {
		case Int:
			if offset+4 > len(data) {
				return nil, &DeserializationError{Column: col.Name, Reason: "truncated int"}
			}
			v := int32(binary.BigEndian.Uint32(data[offset : offset+4]))
			row = append(row, IntCell(v))
			offset += 4
		case Varchar:
			if offset+2 > len(data) {
				return nil, &DeserializationError{Column: col.Name, Reason: "truncated varchar length"}
			}
			l := int(binary.BigEndian.Uint16(data[offset : offset+2]))
			offset += 2
			if offset+l > len(data) {
				return nil, &DeserializationError{Column: col.Name, Reason: "truncated varchar data"}
			}
			if l > int(col.MaxLen) {
				return nil, &DeserializationError{Column: col.Name, Reason: "varchar length exceeds declared max"}
			}
			raw := data[offset : offset+l]
			if !utf8.Valid(raw) {
				return nil, &DeserializationError{Column: col.Name, Reason: "invalid utf-8"}
			}
			row = append(row, VarcharCell(string(raw)))
			offset += l
		case Byte:
			if offset+1 > len(data) {
				return nil, &DeserializationError{Column: col.Name, Reason: "truncated byte"}
			}
			row = append(row, ByteCell(data[offset]))
			offset++
		default:
			return nil, &DeserializationError{Column: col.Name, Reason: "unknown column type"}
		}
	}
	return row, nil
}
