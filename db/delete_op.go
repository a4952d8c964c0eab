package db

// DeleteOp reads every tuple from its child and deletes it (by the
// RecordID it carries) via the BufferPool, reporting the count deleted
// the same way Insert does.
type DeleteOp struct {
	bp    *BufferPool
	child Operator

	tid      TransactionID
	result   *Tuple
	consumed bool
}

// NewDeleteOp builds an operator that deletes every tuple child
// produces via bp.
func NewDeleteOp(bp *BufferPool, child Operator) *DeleteOp {
	return &DeleteOp{bp: bp, child: child}
}

func (d *DeleteOp) Open(tid TransactionID) error {
	d.tid = tid
	if err := d.child.Open(tid); err != nil {
		return err
	}
	return d.run()
}

func (d *DeleteOp) run() error {
	var count int32
	for {
		has, err := d.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := d.child.Next()
		if err != nil {
			return err
		}
		if err := d.bp.DeleteTuple(d.tid, t); err != nil {
			return err
		}
		count++
	}
	d.result = NewTuple(countSchema())
	d.result.SetField(0, IntField{Value: count})
	d.consumed = false
	return nil
}

func (d *DeleteOp) HasNext() (bool, error) { return !d.consumed, nil }

func (d *DeleteOp) Next() (*Tuple, error) {
	if d.consumed {
		return nil, newError(InvalidState, "DeleteOp: Next called after its single result was consumed")
	}
	d.consumed = true
	return d.result, nil
}

func (d *DeleteOp) Rewind() error {
	if err := d.child.Rewind(); err != nil {
		return err
	}
	return d.run()
}

func (d *DeleteOp) Close() error {
	d.result = nil
	return d.child.Close()
}

func (d *DeleteOp) GetTupleDesc() *Schema   { return countSchema() }
func (d *DeleteOp) GetChildren() []Operator { return []Operator{d.child} }

func (d *DeleteOp) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("DeleteOp: expects exactly one child")
	}
	if err := d.Close(); err != nil {
		Log.Warn().Err(err).Msg("DeleteOp: close before SetChildren")
	}
	d.child = children[0]
}
