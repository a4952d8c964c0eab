package db

// Filter passes through only the child tuples satisfying left op
// right, each side evaluated per-tuple via an Expr and compared with a
// BoolOp.
type Filter struct {
	left  Expr
	op    BoolOp
	right Expr
	child Operator

	pending *Tuple
}

// NewFilter builds a filter that keeps tuples where left op right
// holds, reading child as its input.
func NewFilter(left Expr, op BoolOp, right Expr, child Operator) (*Filter, error) {
	return &Filter{left: left, op: op, right: right, child: child}, nil
}

func (f *Filter) Open(tid TransactionID) error {
	if err := f.child.Open(tid); err != nil {
		return err
	}
	return f.advance()
}

func (f *Filter) advance() error {
	for {
		has, err := f.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			f.pending = nil
			return nil
		}
		t, err := f.child.Next()
		if err != nil {
			return err
		}
		lv, err := f.left.EvalExpr(t)
		if err != nil {
			return err
		}
		rv, err := f.right.EvalExpr(t)
		if err != nil {
			return err
		}
		if evalBoolOp(lv, f.op, rv) {
			f.pending = t
			return nil
		}
	}
}

func (f *Filter) HasNext() (bool, error) { return f.pending != nil, nil }

func (f *Filter) Next() (*Tuple, error) {
	if f.pending == nil {
		return nil, newError(InvalidState, "Filter: Next called with no pending tuple")
	}
	t := f.pending
	if err := f.advance(); err != nil {
		return nil, err
	}
	return t, nil
}

func (f *Filter) Rewind() error {
	if err := f.child.Rewind(); err != nil {
		return err
	}
	return f.advance()
}

func (f *Filter) Close() error {
	f.pending = nil
	return f.child.Close()
}

func (f *Filter) GetTupleDesc() *Schema   { return f.child.GetTupleDesc() }
func (f *Filter) GetChildren() []Operator { return []Operator{f.child} }

func (f *Filter) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("Filter: expects exactly one child")
	}
	if err := f.Close(); err != nil {
		Log.Warn().Err(err).Msg("Filter: close before SetChildren")
	}
	f.child = children[0]
}
