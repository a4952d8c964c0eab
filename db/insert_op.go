package db

// InsertOp reads every tuple from its child and inserts it into a
// table via the BufferPool, reporting the count inserted as a
// single-tuple, single-column ("count", int) result. The whole child
// is drained eagerly inside Open: insert is inherently blocking, since
// its one output tuple depends on having processed all of the input,
// and Next/HasNext just hand back that single result.
type InsertOp struct {
	tableID TableID
	bp      *BufferPool
	child   Operator

	tid      TransactionID
	result   *Tuple
	consumed bool
}

// NewInsertOp builds an operator that inserts child's output tuples
// into tableID via bp.
func NewInsertOp(tableID TableID, bp *BufferPool, child Operator) *InsertOp {
	return &InsertOp{tableID: tableID, bp: bp, child: child}
}

func (i *InsertOp) Open(tid TransactionID) error {
	i.tid = tid
	if err := i.child.Open(tid); err != nil {
		return err
	}
	return i.run()
}

func (i *InsertOp) run() error {
	var count int32
	for {
		has, err := i.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := i.child.Next()
		if err != nil {
			return err
		}
		if err := i.bp.InsertTuple(i.tid, i.tableID, t); err != nil {
			return err
		}
		count++
	}
	i.result = NewTuple(countSchema())
	i.result.SetField(0, IntField{Value: count})
	i.consumed = false
	return nil
}

func (i *InsertOp) HasNext() (bool, error) { return !i.consumed, nil }

func (i *InsertOp) Next() (*Tuple, error) {
	if i.consumed {
		return nil, newError(InvalidState, "InsertOp: Next called after its single result was consumed")
	}
	i.consumed = true
	return i.result, nil
}

func (i *InsertOp) Rewind() error {
	if err := i.child.Rewind(); err != nil {
		return err
	}
	return i.run()
}

func (i *InsertOp) Close() error {
	i.result = nil
	return i.child.Close()
}

func (i *InsertOp) GetTupleDesc() *Schema   { return countSchema() }
func (i *InsertOp) GetChildren() []Operator { return []Operator{i.child} }

func (i *InsertOp) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("InsertOp: expects exactly one child")
	}
	if err := i.Close(); err != nil {
		Log.Warn().Err(err).Msg("InsertOp: close before SetChildren")
	}
	i.child = children[0]
}
