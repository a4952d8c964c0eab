package db

// Limit caps its child's output at the first n tuples, where n is an
// expression (typically a ConstExpr) evaluated once at Open.
type Limit struct {
	limitExpr Expr
	child     Operator

	limit   int32
	count   int32
	pending *Tuple
}

// NewLimit builds an operator emitting at most the first n tuples of
// child's output, where n is limitExpr evaluated against a nil tuple
// (so typically a ConstExpr).
func NewLimit(limitExpr Expr, child Operator) *Limit {
	return &Limit{limitExpr: limitExpr, child: child}
}

func (l *Limit) Open(tid TransactionID) error {
	v, err := l.limitExpr.EvalExpr(nil)
	if err != nil {
		return err
	}
	iv, ok := v.(IntField)
	if !ok {
		return newError(InvalidArgument, "Limit: limit expression must evaluate to an int field")
	}
	l.limit = iv.Value
	l.count = 0
	if err := l.child.Open(tid); err != nil {
		return err
	}
	return l.advance()
}

func (l *Limit) advance() error {
	if l.count >= l.limit {
		l.pending = nil
		return nil
	}
	has, err := l.child.HasNext()
	if err != nil {
		return err
	}
	if !has {
		l.pending = nil
		return nil
	}
	t, err := l.child.Next()
	if err != nil {
		return err
	}
	l.count++
	l.pending = t
	return nil
}

func (l *Limit) HasNext() (bool, error) { return l.pending != nil, nil }

func (l *Limit) Next() (*Tuple, error) {
	if l.pending == nil {
		return nil, newError(InvalidState, "Limit: Next called with no pending tuple")
	}
	t := l.pending
	if err := l.advance(); err != nil {
		return nil, err
	}
	return t, nil
}

func (l *Limit) Rewind() error {
	l.count = 0
	if err := l.child.Rewind(); err != nil {
		return err
	}
	return l.advance()
}

func (l *Limit) Close() error {
	l.pending = nil
	return l.child.Close()
}

func (l *Limit) GetTupleDesc() *Schema   { return l.child.GetTupleDesc() }
func (l *Limit) GetChildren() []Operator { return []Operator{l.child} }

func (l *Limit) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("Limit: expects exactly one child")
	}
	if err := l.Close(); err != nil {
		Log.Warn().Err(err).Msg("Limit: close before SetChildren")
	}
	l.child = children[0]
}
