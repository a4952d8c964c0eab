package db

import "strings"

// FieldDesc is one (Type, optional name) entry in a Schema. StringMax
// is only meaningful when Type == StringType: it is the fixed maximum
// length declared for that field, used both for serialized width and
// for rejecting over-long content at serialization time.
type FieldDesc struct {
	Name      string
	Type      Type
	StringMax int
}

// Schema is an ordered, non-empty sequence of FieldDesc. Two schemas
// are equal iff their arities and per-index types match; names do not
// participate in equality.
type Schema struct {
	fields []FieldDesc
}

// NewSchema builds a Schema from its field descriptors. Returns an
// InvalidArgument error if fields is empty.
func NewSchema(fields []FieldDesc) (*Schema, error) {
	if len(fields) == 0 {
		return nil, newError(InvalidArgument, "schema must have at least one field")
	}
	cp := make([]FieldDesc, len(fields))
	copy(cp, fields)
	return &Schema{fields: cp}, nil
}

// Arity returns the number of fields in the schema.
func (s *Schema) Arity() int {
	return len(s.fields)
}

// TypeAt returns the type of the field at index i.
func (s *Schema) TypeAt(i int) (Type, error) {
	if i < 0 || i >= len(s.fields) {
		return 0, newError(InvalidArgument, "field index %d out of range [0,%d)", i, len(s.fields))
	}
	return s.fields[i].Type, nil
}

// NameAt returns the name of the field at index i.
func (s *Schema) NameAt(i int) (string, error) {
	if i < 0 || i >= len(s.fields) {
		return "", newError(InvalidArgument, "field index %d out of range [0,%d)", i, len(s.fields))
	}
	return s.fields[i].Name, nil
}

// FieldAt returns the full descriptor at index i.
func (s *Schema) FieldAt(i int) (FieldDesc, error) {
	if i < 0 || i >= len(s.fields) {
		return FieldDesc{}, newError(InvalidArgument, "field index %d out of range [0,%d)", i, len(s.fields))
	}
	return s.fields[i], nil
}

// Size returns the schema's total serialized width in bytes, the sum
// of each field type's fixed length.
func (s *Schema) Size() int {
	total := 0
	for _, f := range s.fields {
		switch f.Type {
		case IntType:
			total += intFieldWidth
		case StringType:
			total += stringLengthPrefixWidth + f.StringMax
		}
	}
	return total
}

// IndexByName returns the index of the first field named name, or a
// NotFound error.
func (s *Schema) IndexByName(name string) (int, error) {
	for i, f := range s.fields {
		if f.Name == name {
			return i, nil
		}
	}
	return -1, newError(NotFound, "no field named %q in schema", name)
}

// Equals reports whether two schemas have matching arity and
// pairwise-matching types. Names are not compared.
func (s *Schema) Equals(other *Schema) bool {
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i].Type != other.fields[i].Type {
			return false
		}
		if s.fields[i].Type == StringType && s.fields[i].StringMax != other.fields[i].StringMax {
			return false
		}
	}
	return true
}

// Merge concatenates two schemas, producing a new one whose fields are
// a's fields followed by b's fields.
func Merge(a, b *Schema) *Schema {
	fields := make([]FieldDesc, 0, len(a.fields)+len(b.fields))
	fields = append(fields, a.fields...)
	fields = append(fields, b.fields...)
	return &Schema{fields: fields}
}

// WithAlias returns a copy of the schema whose field names are
// rewritten to "alias.originalName" (used by SeqScan).
func (s *Schema) WithAlias(alias string) *Schema {
	fields := make([]FieldDesc, len(s.fields))
	for i, f := range s.fields {
		f.Name = alias + "." + f.Name
		fields[i] = f
	}
	return &Schema{fields: fields}
}

func (s *Schema) String() string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return strings.Join(names, "\t")
}
