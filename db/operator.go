package db

// Operator is the pull-based query-plan node interface every
// relational operator implements: Open readies state for a fresh pass,
// HasNext/Next are a non-destructive peek/consume pair so a caller can
// check for more output without losing a tuple, Rewind restarts the
// same pass without re-opening children, and Close releases anything
// Open acquired.
//
// The streaming operators (SeqScan, Filter, Join, Project, Limit)
// structure their control flow around a `pending *Tuple` lookahead
// buffer: an internal advance() computes the next output tuple (or nil
// at end of input) into pending, and HasNext/Next are thin wrappers
// over it. The blocking operators (AggregateOp, OrderBy, InsertOp,
// DeleteOp) compute their whole output in Open and hand it back from
// a stored result.
type Operator interface {
	Open(tid TransactionID) error
	HasNext() (bool, error)
	Next() (*Tuple, error)
	Rewind() error
	Close() error
	GetTupleDesc() *Schema
	GetChildren() []Operator
	SetChildren(children []Operator)
}

// BoolOp is a scalar comparison operator used by Filter and Join
// predicates.
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op BoolOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// evalBoolOp applies op to two fields of the same concrete type.
func evalBoolOp(left Field, op BoolOp, right Field) bool {
	cmp := left.Compare(right)
	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	default:
		return false
	}
}

// Expr evaluates to a Field given an input tuple. The two
// implementations below cover what Filter, Join, and Aggregate need: a
// reference to one of the input tuple's fields, and a literal value.
type Expr interface {
	EvalExpr(t *Tuple) (Field, error)
	String() string
}

// FieldExpr looks up a field by name in the tuple's schema.
type FieldExpr struct {
	Name string
}

func NewFieldExpr(name string) *FieldExpr { return &FieldExpr{Name: name} }

func (e *FieldExpr) EvalExpr(t *Tuple) (Field, error) {
	idx, err := t.Schema.IndexByName(e.Name)
	if err != nil {
		return nil, err
	}
	return t.Field(idx)
}

func (e *FieldExpr) String() string { return e.Name }

// ConstExpr evaluates to the same literal Field regardless of input.
type ConstExpr struct {
	Value Field
}

func NewConstExpr(v Field) *ConstExpr { return &ConstExpr{Value: v} }

func (e *ConstExpr) EvalExpr(*Tuple) (Field, error) { return e.Value, nil }

func (e *ConstExpr) String() string { return e.Value.String() }

// countSchema is the one-column ("count", int) schema InsertOp and
// DeleteOp report their affected row count with.
func countSchema() *Schema {
	s, _ := NewSchema([]FieldDesc{{Name: "count", Type: IntType}})
	return s
}

// exprType resolves the Type an expression produces when evaluated
// against tuples conforming to schema, without needing a sample
// tuple. Covers the two Expr implementations operators actually build
// (FieldExpr, ConstExpr); used by Project and Aggregate to type their
// output schema and to reject STRING aggregates at construction time.
func exprType(e Expr, schema *Schema) (Type, error) {
	switch v := e.(type) {
	case *FieldExpr:
		idx, err := schema.IndexByName(v.Name)
		if err != nil {
			return 0, err
		}
		return schema.TypeAt(idx)
	case *ConstExpr:
		return v.Value.Type(), nil
	default:
		return 0, newError(InvalidArgument, "cannot statically type expression %v", e)
	}
}
