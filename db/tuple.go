package db

import (
	"bytes"
	"strings"
)

// Tuple is a schema reference, a mutable ordered sequence of field
// slots (nullable until assigned), and an optional RecordID locating
// it on disk. Field types are validated on assignment rather than only
// at serialization time.
type Tuple struct {
	Schema *Schema
	fields []Field
	Rid    *RecordID
}

// NewTuple allocates a tuple over schema with all fields unset.
func NewTuple(schema *Schema) *Tuple {
	return &Tuple{Schema: schema, fields: make([]Field, schema.Arity())}
}

// Field returns the value at index i, or nil if unset.
func (t *Tuple) Field(i int) (Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, newError(InvalidArgument, "field index %d out of range [0,%d)", i, len(t.fields))
	}
	return t.fields[i], nil
}

// SetField assigns the value at index i. Fails with InvalidArgument if
// i is out of range or v's type doesn't match the schema's declared
// type at i.
func (t *Tuple) SetField(i int, v Field) error {
	if i < 0 || i >= len(t.fields) {
		return newError(InvalidArgument, "field index %d out of range [0,%d)", i, len(t.fields))
	}
	want, err := t.Schema.TypeAt(i)
	if err != nil {
		return err
	}
	if v.Type() != want {
		return newError(InvalidArgument, "field %d: cannot assign %s to %s field", i, v.Type(), want)
	}
	t.fields[i] = v
	return nil
}

// Equals compares two tuples for value equality: equal schemas and
// pairwise-equal fields. RecordID is not compared.
func (t *Tuple) Equals(o *Tuple) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !t.Schema.Equals(o.Schema) || len(t.fields) != len(o.fields) {
		return false
	}
	for i := range t.fields {
		a, b := t.fields[i], o.fields[i]
		if a == nil || b == nil {
			if a != b {
				return false
			}
			continue
		}
		if !a.Equals(b) {
			return false
		}
	}
	return true
}

// String renders the tuple as its fields joined by tab, terminated by
// a newline.
func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		if f == nil {
			parts[i] = ""
			continue
		}
		parts[i] = f.String()
	}
	return strings.Join(parts, "\t") + "\n"
}

// WriteTo serializes the tuple's fields, in schema order, to buf using
// each field's fixed-width on-disk encoding.
func (t *Tuple) WriteTo(buf *bytes.Buffer) error {
	for i, f := range t.fields {
		desc, err := t.Schema.FieldAt(i)
		if err != nil {
			return err
		}
		if f == nil {
			return newError(DbError, "tuple field %d (%s) is unset", i, desc.Name)
		}
		if err := f.Serialize(buf, desc.StringMax); err != nil {
			return err
		}
	}
	return nil
}

// ReadTuple parses a tuple with the given schema from r.
func ReadTuple(r *bytes.Reader, schema *Schema) (*Tuple, error) {
	t := NewTuple(schema)
	for i := 0; i < schema.Arity(); i++ {
		desc, err := schema.FieldAt(i)
		if err != nil {
			return nil, err
		}
		var f Field
		switch desc.Type {
		case IntType:
			f, err = readIntField(r)
		case StringType:
			f, err = readStringField(r, desc.StringMax)
		default:
			return nil, newError(DbError, "unknown field type %v", desc.Type)
		}
		if err != nil {
			return nil, err
		}
		t.fields[i] = f
	}
	return t, nil
}

// Project builds a new tuple containing only the fields named in
// names, preferring an exact name match but falling back to any field
// with that base name (so an unqualified "name" finds "t.name").
func (t *Tuple) Project(names []string) (*Tuple, error) {
	fields := make([]FieldDesc, 0, len(names))
	values := make([]Field, 0, len(names))
	for _, name := range names {
		idx, err := t.Schema.IndexByName(name)
		if err != nil {
			idx = -1
			for i := 0; i < t.Schema.Arity(); i++ {
				n, _ := t.Schema.NameAt(i)
				if n[strings.LastIndex(n, ".")+1:] == name {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, err
			}
		}
		desc, _ := t.Schema.FieldAt(idx)
		fields = append(fields, desc)
		values = append(values, t.fields[idx])
	}
	schema, err := NewSchema(fields)
	if err != nil {
		return nil, err
	}
	return &Tuple{Schema: schema, fields: values}, nil
}

// joinTuples concatenates two tuples' fields, producing a new tuple
// whose schema is Merge(left.Schema, right.Schema).
func joinTuples(left, right *Tuple) *Tuple {
	schema := Merge(left.Schema, right.Schema)
	fields := make([]Field, 0, len(left.fields)+len(right.fields))
	fields = append(fields, left.fields...)
	fields = append(fields, right.fields...)
	return &Tuple{Schema: schema, fields: fields}
}
