package db

import (
	"bytes"
	"testing"
)

func TestTupleSetFieldWrongTypeFails(t *testing.T) {
	s := intStringSchema(t)
	tup := NewTuple(s)
	if err := tup.SetField(0, StringField{Value: "nope"}); err == nil || !IsKind(err, InvalidArgument) {
		t.Fatalf("assigning a string to an int field should fail InvalidArgument, got %v", err)
	}
}

func TestTupleSetFieldOutOfRange(t *testing.T) {
	s := twoIntSchema(t)
	tup := NewTuple(s)
	if err := tup.SetField(9, IntField{Value: 1}); err == nil || !IsKind(err, InvalidArgument) {
		t.Fatalf("out-of-range SetField should fail InvalidArgument, got %v", err)
	}
}

func TestTupleStringIsTabJoinedNewlineTerminated(t *testing.T) {
	s := twoIntSchema(t)
	tup := intTuple(t, s, 1, 2)
	if got, want := tup.String(), "1\t2\n"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestTupleEquals(t *testing.T) {
	s := twoIntSchema(t)
	a := intTuple(t, s, 1, 2)
	b := intTuple(t, s, 1, 2)
	c := intTuple(t, s, 1, 3)
	if !a.Equals(b) {
		t.Fatalf("tuples with equal fields should be equal")
	}
	if a.Equals(c) {
		t.Fatalf("tuples with differing fields should not be equal")
	}
}

func TestTupleWriteReadRoundTrip(t *testing.T) {
	s := intStringSchema(t)
	tup := NewTuple(s)
	if err := tup.SetField(0, IntField{Value: 42}); err != nil {
		t.Fatalf("SetField(0): %v", err)
	}
	if err := tup.SetField(1, StringField{Value: "hello"}); err != nil {
		t.Fatalf("SetField(1): %v", err)
	}

	buf := new(bytes.Buffer)
	if err := tup.WriteTo(buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	r := bytes.NewReader(buf.Bytes())
	got, err := ReadTuple(r, s)
	if err != nil {
		t.Fatalf("ReadTuple: %v", err)
	}
	if !got.Equals(tup) {
		t.Fatalf("round-tripped tuple %v != original %v", got, tup)
	}
}

func TestTupleProject(t *testing.T) {
	s := intStringSchema(t)
	tup := NewTuple(s)
	tup.SetField(0, IntField{Value: 7})
	tup.SetField(1, StringField{Value: "x"})

	projected, err := tup.Project([]string{"name"})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if projected.Schema.Arity() != 1 {
		t.Fatalf("projected arity = %d, want 1", projected.Schema.Arity())
	}
	f, _ := projected.Field(0)
	if f.(StringField).Value != "x" {
		t.Fatalf("projected field = %v, want x", f)
	}
}

func TestJoinTuplesConcatenatesSchemaAndFields(t *testing.T) {
	left := intTuple(t, twoIntSchema(t), 1, 2)
	rightSchema := intStringSchema(t)
	right := NewTuple(rightSchema)
	right.SetField(0, IntField{Value: 9})
	right.SetField(1, StringField{Value: "r"})

	joined := joinTuples(left, right)
	if joined.Schema.Arity() != 4 {
		t.Fatalf("joined arity = %d, want 4", joined.Schema.Arity())
	}
	f0, _ := joined.Field(0)
	f3, _ := joined.Field(3)
	if f0.(IntField).Value != 1 || f3.(StringField).Value != "r" {
		t.Fatalf("joined fields not in expected left++right order: %v", joined)
	}
}
