package db

import (
	"bytes"
	"testing"
)

func TestIntFieldRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	f := IntField{Value: -12345}
	if err := f.Serialize(buf, 0); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	r := bytes.NewReader(buf.Bytes())
	got, err := readIntField(r)
	if err != nil {
		t.Fatalf("readIntField: %v", err)
	}
	if got.Value != f.Value {
		t.Fatalf("round trip = %d, want %d", got.Value, f.Value)
	}
}

func TestStringFieldRoundTripAndPadding(t *testing.T) {
	buf := new(bytes.Buffer)
	f := StringField{Value: "hi"}
	const max = 8
	if err := f.Serialize(buf, max); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if got, want := buf.Len(), stringLengthPrefixWidth+max; got != want {
		t.Fatalf("serialized length = %d, want %d", got, want)
	}
	r := bytes.NewReader(buf.Bytes())
	got, err := readStringField(r, max)
	if err != nil {
		t.Fatalf("readStringField: %v", err)
	}
	if got.Value != "hi" {
		t.Fatalf("round trip = %q, want %q", got.Value, "hi")
	}
}

func TestStringFieldExceedsMax(t *testing.T) {
	buf := new(bytes.Buffer)
	f := StringField{Value: "way too long for this field"}
	if err := f.Serialize(buf, 4); err == nil || !IsKind(err, InvalidArgument) {
		t.Fatalf("Serialize over max should fail InvalidArgument, got %v", err)
	}
}

func TestFieldEqualsAndCompare(t *testing.T) {
	a := IntField{Value: 3}
	b := IntField{Value: 5}
	if a.Equals(b) {
		t.Fatalf("distinct int fields should not be equal")
	}
	if a.Compare(b) >= 0 {
		t.Fatalf("3.Compare(5) should be negative")
	}
	if !a.Equals(IntField{Value: 3}) {
		t.Fatalf("equal int fields should compare equal")
	}

	s1 := StringField{Value: "abc"}
	s2 := StringField{Value: "abd"}
	if s1.Compare(s2) >= 0 {
		t.Fatalf(`"abc".Compare("abd") should be negative`)
	}
}

func TestFieldCompareDifferentConcreteTypeIsZero(t *testing.T) {
	// Comparing across concrete types is a programmer error; Compare
	// degrades to 0 rather than panicking, since the schema is
	// supposed to prevent this from happening in practice.
	a := IntField{Value: 1}
	var b Field = StringField{Value: "x"}
	if a.Compare(b) != 0 {
		t.Fatalf("cross-type Compare should be 0, got %d", a.Compare(b))
	}
}
