package db

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// tableEntry is one registered table: its backing HeapFile, the name
// operators address it by, and its optional primary key column.
type tableEntry struct {
	file    *HeapFile
	name    string
	primary string // "" if the table has no declared primary key
}

// Catalog is the registry mapping a TableID to the HeapFile, name, and
// optional primary key that describe it.
type Catalog struct {
	mu      sync.RWMutex
	byID    map[TableID]*tableEntry
	byName  map[string]TableID
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byID:   make(map[TableID]*tableEntry),
		byName: make(map[string]TableID),
	}
}

// AddTable registers file under name with an optional primary key
// column (pass "" for none). Re-registering a name already in use
// replaces the previous registration (last writer wins).
func (c *Catalog) AddTable(file *HeapFile, name string, primaryKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[file.TableID()] = &tableEntry{file: file, name: name, primary: primaryKey}
	c.byName[name] = file.TableID()
	Log.Info().Str("table", name).Int("tableID", int(file.TableID())).Str("primaryKey", primaryKey).Msg("table registered")
}

// FileByID returns the HeapFile registered under id, or NotFound.
func (c *Catalog) FileByID(id TableID) (*HeapFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[id]
	if !ok {
		return nil, newError(NotFound, "no table registered with id %d", id)
	}
	return e.file, nil
}

// TableIDByName returns the TableID registered under name, or NotFound.
func (c *Catalog) TableIDByName(name string) (TableID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	if !ok {
		return 0, newError(NotFound, "no table named %q", name)
	}
	return id, nil
}

// FileByName returns the HeapFile registered under name, or NotFound.
func (c *Catalog) FileByName(name string) (*HeapFile, error) {
	id, err := c.TableIDByName(name)
	if err != nil {
		return nil, err
	}
	return c.FileByID(id)
}

// SchemaOf returns the schema of the table named name.
func (c *Catalog) SchemaOf(name string) (*Schema, error) {
	f, err := c.FileByName(name)
	if err != nil {
		return nil, err
	}
	return f.Schema(), nil
}

// PrimaryKeyOf returns the declared primary key column of the table
// named name, or "" if it has none.
func (c *Catalog) PrimaryKeyOf(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	if !ok {
		return "", newError(NotFound, "no table named %q", name)
	}
	return c.byID[id].primary, nil
}

// Names returns every registered table name, in no particular order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	return names
}

// LoadCatalogFromFile parses a schema file and opens a HeapFile for
// each table it declares, registering each with the returned Catalog.
// Each data file lives alongside the schema file, at
// filepath.Join(dir(catalogFile), tableName+".dat").
//
// Schema file format, one table per line:
//
//	tableName (col1 type1, col2 type2, ...)
//
// Types are "int" or "string(N)", case-insensitive. At most one column
// may be suffixed " pk" to mark it the table's primary key, e.g.:
//
//	people (id int pk, name string(32))
func LoadCatalogFromFile(catalogFile string, pageSize int) (*Catalog, error) {
	f, err := os.Open(catalogFile)
	if err != nil {
		return nil, wrapError(IoError, err, "open catalog file %s", catalogFile)
	}
	defer f.Close()

	dir := filepath.Dir(catalogFile)
	cat := NewCatalog()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, fields, primary, err := parseCatalogLine(line)
		if err != nil {
			return nil, wrapError(DbError, err, "catalog file %s, line %d", catalogFile, lineNo)
		}
		schema, err := NewSchema(fields)
		if err != nil {
			return nil, wrapError(DbError, err, "catalog file %s, line %d", catalogFile, lineNo)
		}
		dataPath := filepath.Join(dir, name+".dat")
		hf, err := NewHeapFile(dataPath, schema, pageSize)
		if err != nil {
			return nil, err
		}
		cat.AddTable(hf, name, primary)
	}
	if err := scanner.Err(); err != nil {
		return nil, wrapError(IoError, err, "read catalog file %s", catalogFile)
	}
	return cat, nil
}

func parseCatalogLine(line string) (name string, fields []FieldDesc, primary string, err error) {
	open := strings.Index(line, "(")
	shut := strings.LastIndex(line, ")")
	if open < 0 || shut < open {
		return "", nil, "", newError(DbError, "malformed table declaration: %q", line)
	}
	name = strings.TrimSpace(line[:open])
	if name == "" {
		return "", nil, "", newError(DbError, "table declaration missing a name: %q", line)
	}

	body := line[open+1 : shut]
	for _, col := range strings.Split(body, ",") {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		parts := strings.Fields(col)
		if len(parts) < 2 {
			return "", nil, "", newError(DbError, "malformed column declaration: %q", col)
		}
		colName := parts[0]
		typeName := strings.ToLower(parts[1])
		isPK := len(parts) >= 3 && strings.EqualFold(parts[2], "pk")

		var desc FieldDesc
		desc.Name = colName
		switch {
		case typeName == "int":
			desc.Type = IntType
		case strings.HasPrefix(typeName, "string"):
			max, perr := parseStringMax(typeName)
			if perr != nil {
				return "", nil, "", perr
			}
			desc.Type = StringType
			desc.StringMax = max
		default:
			return "", nil, "", newError(DbError, "unknown column type %q", typeName)
		}
		fields = append(fields, desc)
		if isPK {
			if primary != "" {
				return "", nil, "", newError(DbError, "table %q declares more than one primary key", name)
			}
			primary = colName
		}
	}
	if len(fields) == 0 {
		return "", nil, "", newError(DbError, "table %q declares no columns", name)
	}
	return name, fields, primary, nil
}

// parseStringMax parses the "(N)" suffix of a "string(N)" type token.
func parseStringMax(typeName string) (int, error) {
	open := strings.Index(typeName, "(")
	shut := strings.LastIndex(typeName, ")")
	if open < 0 || shut < open {
		return 0, newError(DbError, "string column type missing a length, e.g. string(32): %q", typeName)
	}
	n, err := parseInt32(typeName[open+1 : shut])
	if err != nil {
		return 0, newError(DbError, "invalid string length in %q", typeName)
	}
	if n <= 0 {
		return 0, newError(DbError, "string length must be positive: %q", typeName)
	}
	return int(n), nil
}
