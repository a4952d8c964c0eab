package db

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Type is the closed set of field types the engine supports. Each
// type's serialized length is fixed and recoverable from the schema
// alone, which is what makes tuples fixed-width.
type Type int

const (
	IntType Type = iota
	StringType
)

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	default:
		return "unknown"
	}
}

// intFieldWidth is the on-disk size of an INT field: 4 bytes, two's
// complement, big-endian.
const intFieldWidth = 4

// stringLengthPrefixWidth is the 4-byte big-endian actual-length
// prefix written before a STRING field's padded content.
const stringLengthPrefixWidth = 4

// Field is a typed value held in a tuple slot. The concrete
// implementations are IntField and StringField; each implements every
// method itself.
type Field interface {
	Type() Type
	// Equals reports whether two fields of the same Type hold the same
	// value. Comparing fields of different concrete type is a
	// programmer error and returns false.
	Equals(other Field) bool
	// Compare returns <0, 0, or >0 as the receiver is less than, equal
	// to, or greater than other. Both fields must share a Type.
	Compare(other Field) int
	// Width returns this field's serialized length in bytes, given the
	// schema's declared maximum (only meaningful for StringType; a
	// IntField ignores it).
	Width(schemaMax int) int
	// Serialize writes the field's on-disk representation to buf.
	Serialize(buf *bytes.Buffer, schemaMax int) error
	String() string
}

// IntField is a 4-byte signed integer value.
type IntField struct {
	Value int32
}

func (f IntField) Type() Type { return IntType }

func (f IntField) Equals(other Field) bool {
	o, ok := other.(IntField)
	return ok && f.Value == o.Value
}

func (f IntField) Compare(other Field) int {
	o, ok := other.(IntField)
	if !ok {
		return 0
	}
	switch {
	case f.Value < o.Value:
		return -1
	case f.Value > o.Value:
		return 1
	default:
		return 0
	}
}

func (f IntField) Width(int) int { return intFieldWidth }

func (f IntField) Serialize(buf *bytes.Buffer, _ int) error {
	return binary.Write(buf, binary.BigEndian, f.Value)
}

func (f IntField) String() string {
	return fmt.Sprintf("%d", f.Value)
}

// readIntField parses a 4-byte big-endian INT from buf.
func readIntField(buf *bytes.Reader) (IntField, error) {
	var v int32
	if err := binary.Read(buf, binary.BigEndian, &v); err != nil {
		return IntField{}, wrapError(IoError, err, "read int field")
	}
	return IntField{Value: v}, nil
}

// StringField is a UTF-8 string value. Its serialized form is a
// 4-byte big-endian actual length followed by schemaMax bytes of
// content, zero-padded. Content longer than schemaMax is rejected by
// Serialize with InvalidArgument; Tuple.SetField checks only the type.
type StringField struct {
	Value string
}

func (f StringField) Type() Type { return StringType }

func (f StringField) Equals(other Field) bool {
	o, ok := other.(StringField)
	return ok && f.Value == o.Value
}

func (f StringField) Compare(other Field) int {
	o, ok := other.(StringField)
	if !ok {
		return 0
	}
	return strings.Compare(f.Value, o.Value)
}

func (f StringField) Width(schemaMax int) int {
	return stringLengthPrefixWidth + schemaMax
}

func (f StringField) Serialize(buf *bytes.Buffer, schemaMax int) error {
	content := []byte(f.Value)
	if len(content) > schemaMax {
		return newError(InvalidArgument, "string field %q exceeds declared max length %d", f.Value, schemaMax)
	}
	if err := binary.Write(buf, binary.BigEndian, int32(len(content))); err != nil {
		return wrapError(IoError, err, "write string length")
	}
	padded := make([]byte, schemaMax)
	copy(padded, content)
	if _, err := buf.Write(padded); err != nil {
		return wrapError(IoError, err, "write string content")
	}
	return nil
}

func (f StringField) String() string {
	return f.Value
}

// readStringField parses a length-prefixed, padded STRING from buf,
// given the schema's declared maximum length for this field.
func readStringField(buf *bytes.Reader, schemaMax int) (StringField, error) {
	var n int32
	if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
		return StringField{}, wrapError(IoError, err, "read string length")
	}
	content := make([]byte, schemaMax)
	if _, err := buf.Read(content); err != nil {
		return StringField{}, wrapError(IoError, err, "read string content")
	}
	if int(n) < 0 || int(n) > schemaMax {
		return StringField{}, newError(DbError, "corrupt string field: declared length %d exceeds max %d", n, schemaMax)
	}
	return StringField{Value: string(content[:n])}, nil
}

// parseInt32 parses a base-10 signed integer, used by the CSV loader
// and the catalog's schema-file parser.
func parseInt32(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, newError(InvalidArgument, "invalid integer %q", s)
	}
	return int32(n), nil
}
