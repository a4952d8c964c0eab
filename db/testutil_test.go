package db

import (
	"path/filepath"
	"testing"
	"time"
)

// testLockTimeoutMin/testLockTimeoutMax keep lock-manager timeouts
// short so deadlock/abort tests run quickly, while staying well above
// normal scheduling noise.
const (
	testLockTimeoutMin = 30 * time.Millisecond
	testLockTimeoutMax = 80 * time.Millisecond
)

// intStringSchema returns a two-column {id int, name string(16)}
// schema used by tests that need a STRING column.
func intStringSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema([]FieldDesc{
		{Name: "id", Type: IntType},
		{Name: "name", Type: StringType, StringMax: 16},
	})
	if err != nil {
		t.Fatalf("building schema: %v", err)
	}
	return s
}

// twoIntSchema returns a two-column {a int, b int} schema, used by the
// round-trip/abort tests.
func twoIntSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema([]FieldDesc{
		{Name: "a", Type: IntType},
		{Name: "b", Type: IntType},
	})
	if err != nil {
		t.Fatalf("building schema: %v", err)
	}
	return s
}

// intTuple builds a fully-populated tuple over schema, whose fields
// must all be IntType, from the given values.
func intTuple(t *testing.T, schema *Schema, values ...int32) *Tuple {
	t.Helper()
	tup := NewTuple(schema)
	for i, v := range values {
		if err := tup.SetField(i, IntField{Value: v}); err != nil {
			t.Fatalf("setting field %d: %v", i, err)
		}
	}
	return tup
}

// tempHeapFile creates a fresh, empty backing file under t.TempDir()
// and opens a HeapFile over it with the given schema and page size (0
// meaning DefaultPageSize).
func tempHeapFile(t *testing.T, schema *Schema, pageSize int) *HeapFile {
	t.Helper()
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	path := filepath.Join(t.TempDir(), "table.dat")
	hf, err := NewHeapFile(path, schema, pageSize)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	return hf
}

// newTestPool builds a BufferPool of the given capacity (0 meaning a
// large default) wired to a fresh Catalog, and registers file under
// name "t".
func newTestPool(t *testing.T, maxPages int, file *HeapFile) (*BufferPool, *Catalog) {
	t.Helper()
	if maxPages == 0 {
		maxPages = 100
	}
	bp := NewBufferPool(maxPages, testLockTimeoutMin, testLockTimeoutMax)
	cat := NewCatalog()
	cat.AddTable(file, "t", "")
	bp.SetCatalog(cat)
	return bp, cat
}
