package db

// AggState is one running aggregate computation: Init resets it, each
// AddTuple folds one input tuple in, and Finalize produces the result
// field. Finalize returns a bare Field rather than a whole Tuple;
// AggregateOp assembles the output row itself, since a grouped
// aggregate needs the group key field prepended.
type AggState interface {
	Init(alias string, expr Expr)
	AddTuple(t *Tuple) error
	Finalize() Field
	FieldDesc() FieldDesc
}

// AggType names which aggregate a column computes. SumCount and SCAvg
// are the two-phase pair: SumCount emits a (sum, count) tuple suitable
// for partial/distributed aggregation, and SCAvg combines a stream of
// such (sum, count) pairs back into a single average, without
// re-reading the original rows.
type AggType int

const (
	AggCount AggType = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggSumCount
	AggSCAvg
)

func newAggState(kind AggType, alias string, expr Expr) AggState {
	var s AggState
	switch kind {
	case AggCount:
		s = &countAggState{}
	case AggSum:
		s = &sumAggState{}
	case AggAvg:
		s = &avgAggState{}
	case AggMin:
		s = &minMaxAggState{op: OpLt}
	case AggMax:
		s = &minMaxAggState{op: OpGt}
	case AggSumCount:
		s = &sumCountAggState{}
	case AggSCAvg:
		s = &scAvgAggState{}
	}
	s.Init(alias, expr)
	return s
}

type countAggState struct {
	alias string
	expr  Expr
	count int32
}

func (a *countAggState) Init(alias string, expr Expr) { a.alias, a.expr, a.count = alias, expr, 0 }
func (a *countAggState) AddTuple(t *Tuple) error       { a.count++; return nil }
func (a *countAggState) Finalize() Field               { return IntField{Value: a.count} }
func (a *countAggState) FieldDesc() FieldDesc          { return FieldDesc{Name: a.alias, Type: IntType} }

type sumAggState struct {
	alias string
	expr  Expr
	sum   int32
}

func (a *sumAggState) Init(alias string, expr Expr) { a.alias, a.expr, a.sum = alias, expr, 0 }
func (a *sumAggState) AddTuple(t *Tuple) error {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return err
	}
	iv, ok := v.(IntField)
	if !ok {
		return newError(InvalidArgument, "SUM requires an int field")
	}
	a.sum += iv.Value
	return nil
}
func (a *sumAggState) Finalize() Field      { return IntField{Value: a.sum} }
func (a *sumAggState) FieldDesc() FieldDesc { return FieldDesc{Name: a.alias, Type: IntType} }

type avgAggState struct {
	alias string
	expr  Expr
	sum   int32
	count int32
}

func (a *avgAggState) Init(alias string, expr Expr) { a.alias, a.expr, a.sum, a.count = alias, expr, 0, 0 }
func (a *avgAggState) AddTuple(t *Tuple) error {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return err
	}
	iv, ok := v.(IntField)
	if !ok {
		return newError(InvalidArgument, "AVG requires an int field")
	}
	a.sum += iv.Value
	a.count++
	return nil
}
func (a *avgAggState) Finalize() Field {
	if a.count == 0 {
		return IntField{Value: 0}
	}
	return IntField{Value: a.sum / a.count}
}
func (a *avgAggState) FieldDesc() FieldDesc { return FieldDesc{Name: a.alias, Type: IntType} }

// minMaxAggState implements both MIN (op = OpLt) and MAX (op = OpGt):
// it keeps whichever seen value "wins" under op.
type minMaxAggState struct {
	alias string
	expr  Expr
	op    BoolOp
	best  Field
}

func (a *minMaxAggState) Init(alias string, expr Expr) { a.alias, a.expr, a.best = alias, expr, nil }
func (a *minMaxAggState) AddTuple(t *Tuple) error {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return err
	}
	if a.best == nil || evalBoolOp(v, a.op, a.best) {
		a.best = v
	}
	return nil
}
func (a *minMaxAggState) Finalize() Field {
	if a.best == nil {
		return IntField{Value: 0}
	}
	return a.best
}
func (a *minMaxAggState) FieldDesc() FieldDesc {
	if a.best != nil {
		return FieldDesc{Name: a.alias, Type: a.best.Type()}
	}
	return FieldDesc{Name: a.alias, Type: IntType}
}

// sumCountAggState folds in raw tuples and reports a two-column
// (alias_sum, alias_count) pair for later combination by scAvgAggState.
// Because it reports two fields it doesn't fit the single-Field
// AggState contract directly; AggregateOp special-cases it (see
// below).
type sumCountAggState struct {
	alias string
	expr  Expr
	sum   int32
	count int32
}

func (a *sumCountAggState) Init(alias string, expr Expr) { a.alias, a.expr, a.sum, a.count = alias, expr, 0, 0 }
func (a *sumCountAggState) AddTuple(t *Tuple) error {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return err
	}
	iv, ok := v.(IntField)
	if !ok {
		return newError(InvalidArgument, "SUM_COUNT requires an int field")
	}
	a.sum += iv.Value
	a.count++
	return nil
}
func (a *sumCountAggState) Finalize() Field { return IntField{Value: a.sum} } // unused; see pairFields
func (a *sumCountAggState) FieldDesc() FieldDesc {
	return FieldDesc{Name: a.alias + "_sum", Type: IntType}
}
func (a *sumCountAggState) pairFields() (FieldDesc, Field, FieldDesc, Field) {
	return FieldDesc{Name: a.alias + "_sum", Type: IntType}, IntField{Value: a.sum},
		FieldDesc{Name: a.alias + "_count", Type: IntType}, IntField{Value: a.count}
}

// scAvgAggState combines a stream of (sum, count) pairs — as produced
// by sumCountAggState, e.g. from several partial aggregations — into
// one overall average, reading the pair from two input columns named
// alias+"_sum"/alias+"_count" instead of evaluating expr directly.
type scAvgAggState struct {
	alias     string
	sumExpr   Expr
	countExpr Expr
	sum       int32
	count     int32
}

// Init's expr is ignored; SCAvg is wired up via initPair instead,
// since it needs two input expressions, not one.
func (a *scAvgAggState) Init(alias string, expr Expr) { a.alias = alias }

func (a *scAvgAggState) initPair(alias string, sumExpr, countExpr Expr) {
	a.alias, a.sumExpr, a.countExpr, a.sum, a.count = alias, sumExpr, countExpr, 0, 0
}

func (a *scAvgAggState) AddTuple(t *Tuple) error {
	sv, err := a.sumExpr.EvalExpr(t)
	if err != nil {
		return err
	}
	cv, err := a.countExpr.EvalExpr(t)
	if err != nil {
		return err
	}
	si, ok := sv.(IntField)
	if !ok {
		return newError(InvalidArgument, "SC_AVG requires an int sum field")
	}
	ci, ok := cv.(IntField)
	if !ok {
		return newError(InvalidArgument, "SC_AVG requires an int count field")
	}
	a.sum += si.Value
	a.count += ci.Value
	return nil
}

func (a *scAvgAggState) Finalize() Field {
	if a.count == 0 {
		return IntField{Value: 0}
	}
	return IntField{Value: a.sum / a.count}
}

func (a *scAvgAggState) FieldDesc() FieldDesc { return FieldDesc{Name: a.alias, Type: IntType} }
