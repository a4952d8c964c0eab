package db

// Join is a naive nested-loop equi-join: for each left tuple it scans
// the entire right child looking for matches on leftField = rightField.
// A sort-merge plan would avoid the repeated right-side scan, but it
// can't rewind the right child lazily through the pull protocol
// without re-sorting on every Rewind, so the simple nested-loop plan
// is what's implemented here.
type Join struct {
	left, right           Operator
	leftField, rightField Expr
	schema                *Schema

	tid     TransactionID
	curLeft *Tuple
	pending *Tuple
}

// NewJoin builds a nested-loop join of left and right on
// leftField = rightField. The output schema is left's schema followed
// by right's.
func NewJoin(left Operator, leftField Expr, right Operator, rightField Expr) (*Join, error) {
	return &Join{
		left:       left,
		right:      right,
		leftField:  leftField,
		rightField: rightField,
		schema:     Merge(left.GetTupleDesc(), right.GetTupleDesc()),
	}, nil
}

func (j *Join) Open(tid TransactionID) error {
	j.tid = tid
	if err := j.left.Open(tid); err != nil {
		return err
	}
	if err := j.right.Open(tid); err != nil {
		return err
	}
	j.curLeft = nil
	return j.advance()
}

// advance scans forward until it finds the next matching pair, or
// exhausts the left input.
func (j *Join) advance() error {
	for {
		if j.curLeft == nil {
			has, err := j.left.HasNext()
			if err != nil {
				return err
			}
			if !has {
				j.pending = nil
				return nil
			}
			j.curLeft, err = j.left.Next()
			if err != nil {
				return err
			}
			if err := j.right.Rewind(); err != nil {
				return err
			}
		}

		has, err := j.right.HasNext()
		if err != nil {
			return err
		}
		if !has {
			j.curLeft = nil
			continue
		}
		rt, err := j.right.Next()
		if err != nil {
			return err
		}
		lv, err := j.leftField.EvalExpr(j.curLeft)
		if err != nil {
			return err
		}
		rv, err := j.rightField.EvalExpr(rt)
		if err != nil {
			return err
		}
		if lv.Equals(rv) {
			j.pending = joinTuples(j.curLeft, rt)
			return nil
		}
	}
}

func (j *Join) HasNext() (bool, error) { return j.pending != nil, nil }

func (j *Join) Next() (*Tuple, error) {
	if j.pending == nil {
		return nil, newError(InvalidState, "Join: Next called with no pending tuple")
	}
	t := j.pending
	if err := j.advance(); err != nil {
		return nil, err
	}
	return t, nil
}

func (j *Join) Rewind() error {
	if err := j.left.Rewind(); err != nil {
		return err
	}
	j.curLeft = nil
	return j.advance()
}

func (j *Join) Close() error {
	j.pending = nil
	if err := j.left.Close(); err != nil {
		return err
	}
	return j.right.Close()
}

func (j *Join) GetTupleDesc() *Schema   { return j.schema }
func (j *Join) GetChildren() []Operator { return []Operator{j.left, j.right} }

func (j *Join) SetChildren(children []Operator) {
	if len(children) != 2 {
		panic("Join: expects exactly two children")
	}
	if err := j.Close(); err != nil {
		Log.Warn().Err(err).Msg("Join: close before SetChildren")
	}
	j.left, j.right = children[0], children[1]
}
