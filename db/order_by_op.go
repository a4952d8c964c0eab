package db

import "sort"

// OrderBy sorts its child's output by one or more expressions, each
// independently ascending or descending. It's a blocking operator:
// Open drains the child and sorts the full result before the first
// Next().
type OrderBy struct {
	orderBy   []Expr
	ascending []bool
	child     Operator

	tid     TransactionID
	results []*Tuple
	idx     int
}

// NewOrderBy builds a sort of child's output by orderBy, where
// ascending[i] says whether orderBy[i] sorts ascending (true) or
// descending (false). len(ascending) must equal len(orderBy).
func NewOrderBy(orderBy []Expr, child Operator, ascending []bool) (*OrderBy, error) {
	if len(orderBy) != len(ascending) {
		return nil, newError(InvalidArgument, "OrderBy: %d sort keys but %d ascending flags", len(orderBy), len(ascending))
	}
	return &OrderBy{orderBy: orderBy, ascending: ascending, child: child}, nil
}

func (o *OrderBy) Open(tid TransactionID) error {
	o.tid = tid
	if err := o.child.Open(tid); err != nil {
		return err
	}
	return o.run()
}

func (o *OrderBy) run() error {
	var all []*Tuple
	for {
		has, err := o.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := o.child.Next()
		if err != nil {
			return err
		}
		all = append(all, t)
	}

	var sortErr error
	sort.SliceStable(all, func(i, j int) bool {
		less, err := o.less(all[i], all[j])
		if err != nil {
			sortErr = err
		}
		return less
	})
	if sortErr != nil {
		return sortErr
	}

	o.results = all
	o.idx = 0
	return nil
}

func (o *OrderBy) less(a, b *Tuple) (bool, error) {
	for i, expr := range o.orderBy {
		va, err := expr.EvalExpr(a)
		if err != nil {
			return false, err
		}
		vb, err := expr.EvalExpr(b)
		if err != nil {
			return false, err
		}
		cmp := va.Compare(vb)
		if cmp == 0 {
			continue
		}
		if o.ascending[i] {
			return cmp < 0, nil
		}
		return cmp > 0, nil
	}
	return false, nil
}

func (o *OrderBy) HasNext() (bool, error) { return o.idx < len(o.results), nil }

func (o *OrderBy) Next() (*Tuple, error) {
	if o.idx >= len(o.results) {
		return nil, newError(InvalidState, "OrderBy: Next called with no more results")
	}
	t := o.results[o.idx]
	o.idx++
	return t, nil
}

func (o *OrderBy) Rewind() error {
	if err := o.child.Rewind(); err != nil {
		return err
	}
	return o.run()
}

func (o *OrderBy) Close() error {
	o.results = nil
	return o.child.Close()
}

func (o *OrderBy) GetTupleDesc() *Schema   { return o.child.GetTupleDesc() }
func (o *OrderBy) GetChildren() []Operator { return []Operator{o.child} }

func (o *OrderBy) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("OrderBy: expects exactly one child")
	}
	if err := o.Close(); err != nil {
		Log.Warn().Err(err).Msg("OrderBy: close before SetChildren")
	}
	o.child = children[0]
}
