package db

// AggSpec describes one output column of an AggregateOp: which kind of
// aggregate, what input expression(s) it folds over, and the alias its
// result is named under. CountExpr is only used by AggSCAvg, which
// reads a precomputed (sum, count) pair instead of raw values.
type AggSpec struct {
	Kind      AggType
	Alias     string
	Expr      Expr
	CountExpr Expr
}

// AggregateOp computes one or more aggregates over its child, grouped
// by GroupByExpr if non-nil. It is a blocking operator: Open fully
// drains the child and finalizes every group before the first Next().
type AggregateOp struct {
	child        Operator
	specs        []AggSpec
	groupByExpr  Expr
	groupByDesc  FieldDesc
	schema       *Schema

	tid     TransactionID
	results []*Tuple
	idx     int
}

type aggGroup struct {
	keyField Field
	states   []AggState
}

// NewAggregateOp builds an aggregation over child. groupByExpr may be
// nil for an ungrouped aggregate (exactly one output row), in which
// case groupByDesc is ignored; otherwise groupByDesc names and types
// the group-key output column.
func NewAggregateOp(child Operator, specs []AggSpec, groupByExpr Expr, groupByDesc FieldDesc) (*AggregateOp, error) {
	if len(specs) == 0 {
		return nil, newError(InvalidArgument, "aggregate requires at least one AggSpec")
	}
	childSchema := child.GetTupleDesc()
	for _, spec := range specs {
		if spec.Kind == AggSCAvg {
			continue // reads a precomputed int (sum,count) pair, not a raw column
		}
		t, err := exprType(spec.Expr, childSchema)
		if err != nil {
			return nil, err
		}
		if t == StringType && spec.Kind != AggCount {
			return nil, newError(InvalidArgument, "aggregate %s: only COUNT is permitted over a STRING field", spec.Alias)
		}
	}
	fields := make([]FieldDesc, 0, len(specs)+1)
	if groupByExpr != nil {
		fields = append(fields, groupByDesc)
	}
	for _, spec := range specs {
		if spec.Kind == AggSumCount {
			fields = append(fields,
				FieldDesc{Name: spec.Alias + "_sum", Type: IntType},
				FieldDesc{Name: spec.Alias + "_count", Type: IntType})
			continue
		}
		fields = append(fields, FieldDesc{Name: spec.Alias, Type: IntType})
	}
	schema, err := NewSchema(fields)
	if err != nil {
		return nil, err
	}
	return &AggregateOp{child: child, specs: specs, groupByExpr: groupByExpr, groupByDesc: groupByDesc, schema: schema}, nil
}

func (a *AggregateOp) newStates() []AggState {
	states := make([]AggState, len(a.specs))
	for i, spec := range a.specs {
		if spec.Kind == AggSCAvg {
			s := &scAvgAggState{}
			s.initPair(spec.Alias, spec.Expr, spec.CountExpr)
			states[i] = s
			continue
		}
		states[i] = newAggState(spec.Kind, spec.Alias, spec.Expr)
	}
	return states
}

func (a *AggregateOp) Open(tid TransactionID) error {
	a.tid = tid
	if err := a.child.Open(tid); err != nil {
		return err
	}
	return a.run()
}

func (a *AggregateOp) run() error {
	groups := make(map[string]*aggGroup)
	var order []string
	var totalInput int

	if a.groupByExpr == nil {
		groups[""] = &aggGroup{states: a.newStates()}
		order = append(order, "")
	}

	for {
		has, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}
		totalInput++

		key := ""
		var keyField Field
		if a.groupByExpr != nil {
			keyField, err = a.groupByExpr.EvalExpr(t)
			if err != nil {
				return err
			}
			key = keyField.String()
		}
		g, ok := groups[key]
		if !ok {
			g = &aggGroup{keyField: keyField, states: a.newStates()}
			groups[key] = g
			order = append(order, key)
		}
		for _, s := range g.states {
			if err := s.AddTuple(t); err != nil {
				return err
			}
		}
	}

	// With no grouping, COUNT still reports 0 over empty input, but
	// every other aggregate leaves its field null rather than reporting
	// a misleading running value of zero.
	emptyUngrouped := a.groupByExpr == nil && totalInput == 0

	results := make([]*Tuple, 0, len(order))
	for _, key := range order {
		g := groups[key]
		t := NewTuple(a.schema)
		col := 0
		if a.groupByExpr != nil {
			if err := t.SetField(col, g.keyField); err != nil {
				return err
			}
			col++
		}
		for i, spec := range a.specs {
			if spec.Kind == AggSumCount {
				if emptyUngrouped {
					col += 2 // leave both sum and count fields null
					continue
				}
				sc := g.states[i].(*sumCountAggState)
				_, sumVal, _, countVal := sc.pairFields()
				if err := t.SetField(col, sumVal); err != nil {
					return err
				}
				col++
				if err := t.SetField(col, countVal); err != nil {
					return err
				}
				col++
				continue
			}
			if emptyUngrouped && spec.Kind != AggCount {
				col++ // leave the aggregate field null
				continue
			}
			if err := t.SetField(col, g.states[i].Finalize()); err != nil {
				return err
			}
			col++
		}
		results = append(results, t)
	}

	a.results = results
	a.idx = 0
	return nil
}

func (a *AggregateOp) HasNext() (bool, error) { return a.idx < len(a.results), nil }

func (a *AggregateOp) Next() (*Tuple, error) {
	if a.idx >= len(a.results) {
		return nil, newError(InvalidState, "AggregateOp: Next called with no more results")
	}
	t := a.results[a.idx]
	a.idx++
	return t, nil
}

func (a *AggregateOp) Rewind() error {
	if err := a.child.Rewind(); err != nil {
		return err
	}
	return a.run()
}

func (a *AggregateOp) Close() error {
	a.results = nil
	return a.child.Close()
}

func (a *AggregateOp) GetTupleDesc() *Schema   { return a.schema }
func (a *AggregateOp) GetChildren() []Operator { return []Operator{a.child} }

func (a *AggregateOp) SetChildren(children []Operator) {
	if len(children) != 1 {
		panic("AggregateOp: expects exactly one child")
	}
	if err := a.Close(); err != nil {
		Log.Warn().Err(err).Msg("AggregateOp: close before SetChildren")
	}
	a.child = children[0]
}
