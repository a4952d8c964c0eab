package db

// SeqScan is the leaf operator that reads every tuple of a table
// through the BufferPool, in HeapFile iteration order, renaming the
// table's schema fields to "alias.field".
type SeqScan struct {
	tableID TableID
	alias   string
	bp      *BufferPool
	schema  *Schema

	tid  TransactionID
	next func() (*Tuple, error)

	pending *Tuple
}

// NewSeqScan builds a scan of tableID, exposing its fields under
// alias (e.g. alias "t" turns a column "id" into "t.id").
func NewSeqScan(tableID TableID, alias string, bp *BufferPool, baseSchema *Schema) *SeqScan {
	return &SeqScan{
		tableID: tableID,
		alias:   alias,
		bp:      bp,
		schema:  baseSchema.WithAlias(alias),
	}
}

func (s *SeqScan) Open(tid TransactionID) error {
	s.tid = tid
	file, err := s.bp.fileFor(s.tableID)
	if err != nil {
		return err
	}
	s.next = file.Iterator(tid, s.bp)
	return s.advance()
}

func (s *SeqScan) advance() error {
	t, err := s.next()
	if err != nil {
		return err
	}
	if t == nil {
		s.pending = nil
		return nil
	}
	s.pending = &Tuple{Schema: s.schema, fields: tupleFieldsOf(t), Rid: t.Rid}
	return nil
}

func (s *SeqScan) HasNext() (bool, error) { return s.pending != nil, nil }

func (s *SeqScan) Next() (*Tuple, error) {
	if s.pending == nil {
		return nil, newError(InvalidState, "SeqScan: Next called with no pending tuple")
	}
	t := s.pending
	if err := s.advance(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SeqScan) Rewind() error { return s.Open(s.tid) }

func (s *SeqScan) Close() error {
	s.next = nil
	s.pending = nil
	return nil
}

func (s *SeqScan) GetTupleDesc() *Schema       { return s.schema }
func (s *SeqScan) GetChildren() []Operator     { return nil }
func (s *SeqScan) SetChildren(children []Operator) {
	if len(children) != 0 {
		panic("SeqScan: a leaf operator cannot have children")
	}
	if err := s.Close(); err != nil {
		Log.Warn().Err(err).Msg("SeqScan: close before SetChildren")
	}
}
