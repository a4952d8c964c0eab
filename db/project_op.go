package db

// Project narrows and/or renames its child's output columns, and
// optionally suppresses duplicate output rows.
type Project struct {
	exprs    []Expr
	distinct bool
	child    Operator
	schema   *Schema

	pending *Tuple
	seen    map[string]struct{}
}

// NewProject builds a projection of child's output onto exprs, naming
// each output column outNames[i]. If distinct is true, rows whose
// rendered String() matches that of an earlier output row are
// suppressed.
func NewProject(exprs []Expr, outNames []string, distinct bool, child Operator) (*Project, error) {
	if len(exprs) != len(outNames) {
		return nil, newError(InvalidArgument, "Project: %d expressions but %d output names", len(exprs), len(outNames))
	}
	childSchema := child.GetTupleDesc()
	fields := make([]FieldDesc, len(exprs))
	for i, e := range exprs {
		t, err := exprType(e, childSchema)
		if err != nil {
			return nil, err
		}
		desc := FieldDesc{Name: outNames[i], Type: t}
		if t == StringType {
			if fe, ok := e.(*FieldExpr); ok {
				if idx, err := childSchema.IndexByName(fe.Name); err == nil {
					srcDesc, _ := childSchema.FieldAt(idx)
					desc.StringMax = srcDesc.StringMax
				}
			}
		}
		fields[i] = desc
	}
	schema, err := NewSchema(fields)
	if err != nil {
		return nil, err
	}
	p := &Project{exprs: exprs, distinct: distinct, child: child, schema: schema}
	if distinct {
		p.seen = make(map[string]struct{})
	}
	return p, nil
}

func (p *Project) Open(tid TransactionID) error {
	if err := p.child.Open(tid); err != nil {
		return err
	}
	if p.distinct {
		p.seen = make(map[string]struct{})
	}
	return p.advance()
}

func (p *Project) project(t *Tuple) (*Tuple, error) {
	out := NewTuple(p.schema)
	for i, e := range p.exprs {
		v, err := e.EvalExpr(t)
		if err != nil {
			return nil, err
		}
		if err := out.SetField(i, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Project) advance() error {
	for {
		has, err := p.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			p.pending = nil
			return nil
		}
		t, err := p.child.Next()
		if err != nil {
			return err
		}
		out, err := p.project(t)
		if err != nil {
			return err
		}
		if p.distinct {
			key := out.String()
			if _, dup := p.seen[key]; dup {
				continue
			}
			p.seen[key] = struct{}{}
		}
		p.pending = out
		return nil
	}
}

func (p *Project) HasNext() (bool, error) { return p.pending != nil, nil }

func (p *Project) Next() (*Tuple, error) {
	if p.pending == nil {
		return nil, newError(InvalidState, "Project: Next called with no pending tuple")
	}
	t := p.pending
	if err := p.advance(); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *Project) Rewind() error {
	if err := p.child.Rewind(); err != nil {
		return err
	}
	if p.distinct {
		p.seen = make(map[string]struct{})
	}
	return p.advance()
}

func (p *Project) Close() error {
	p.pending = nil
	return p.child.Close()
}

func (p *Project) GetTupleDesc() *Schema   { return p.schema }
func (p *Project) GetChildren() []Operator { return []Operator{p.child} }

func (p *Project) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("Project: expects exactly one child")
	}
	if err := p.Close(); err != nil {
		Log.Warn().Err(err).Msg("Project: close before SetChildren")
	}
	p.child = children[0]
}
