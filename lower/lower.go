package lower

import (
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/relsolve/rel2cp/cp"
	"github.com/relsolve/rel2cp/ir"
)

// The lowering walks the comprehension tree exactly once and emits, for
// each generated row, one decision variable bounded by the target count,
// for each predicate a direct constraint, and for each group aggregate
// either capacity constraints or a bounded objective, in the encoding the
// selector picked. All failures here are compile-time, a broken policy
// never reaches the solver.

type lowering struct {
	gen   *ir.TableRowGenerator
	preds []*ir.MembershipPredicate
	aggs  []*ir.GroupAggregate
	head  *ir.Head
}

func (self *lowering) VisitTableRowGenerator(q *ir.TableRowGenerator, _ interface{}) error {
	if self.gen != nil {
		return fmt.Errorf(
			"%w: this backend lowers a single generator, second generator over %s",
			ErrUnsupportedQualifier,
			q.Table().Name(),
		)
	}
	self.gen = q
	return nil
}

func (self *lowering) VisitMembershipPredicate(q *ir.MembershipPredicate, _ interface{}) error {
	self.preds = append(self.preds, q)
	return nil
}

func (self *lowering) VisitJoinPredicate(q *ir.JoinPredicate, _ interface{}) error {
	// part of the closed variant set, no lowering registered here yet
	return fmt.Errorf("%w: join predicate %s", ErrUnsupportedQualifier, q.Dump())
}

func (self *lowering) VisitGroupAggregate(q *ir.GroupAggregate, _ interface{}) error {
	self.aggs = append(self.aggs, q)
	return nil
}

func (self *lowering) VisitHead(q *ir.Head, _ interface{}) error {
	self.head = q
	return nil
}

// Compile lowers one comprehension into a ready to solve Program. The
// transient row to variable mapping lives inside the returned program and
// nothing else, each compile is independent and side effect free.
func Compile(comp *ir.Comprehension, opts Options) (*Program, error) {
	span := opentracing.GlobalTracer().StartSpan("rel2cp.compile")
	defer span.Finish()

	lw := &lowering{}
	if err := comp.Visit(lw, nil); err != nil {
		return nil, err
	}
	if lw.gen == nil {
		return nil, fmt.Errorf("comprehension has no generator")
	}
	for _, p := range lw.preds {
		if p.Generator() != lw.gen {
			return nil, fmt.Errorf("membership predicate bound to a foreign generator")
		}
	}
	for _, a := range lw.aggs {
		if a.Generator() != lw.gen {
			return nil, fmt.Errorf("group aggregate bound to a foreign generator")
		}
	}
	if lw.head.Generator() != lw.gen {
		return nil, fmt.Errorf("head bound to a foreign generator")
	}

	bound := opts.aggregateBound()
	if bound <= 0 {
		return nil, fmt.Errorf(
			"%w: aggregate variables need a finite positive bound, got %d",
			cp.ErrUnboundedDomain,
			bound,
		)
	}

	numRows := lw.gen.Table().NumRows()
	numTargets := lw.gen.Targets().NumRows()
	if numRows > 0 && numTargets == 0 {
		return nil, fmt.Errorf(
			"%w: target table %s has no rows, assignment domain is empty",
			cp.ErrEmptyDomain,
			lw.gen.Targets().Name(),
		)
	}

	encoding, err := selectEncoding(lw, opts, numRows, numTargets)
	if err != nil {
		return nil, err
	}
	span.SetTag("encoding", encodingToName(encoding))

	prog := &Program{
		Model:    cp.NewModel(),
		encoding: encoding,
		gen:      lw.gen,
	}

	// one decision variable per generated row, [0, numTargets-1]
	for i := 0; i < numRows; i++ {
		v := prog.Model.NewIntVar(
			0,
			int64(numTargets-1),
			fmt.Sprintf("assign_%s_%d", lw.gen.Table().Name(), i),
		)
		prog.assign = append(prog.assign, v)
		prog.rows = append(prog.rows, RowRef{Table: lw.gen.Table(), Row: i})
	}

	if err := lowerPredicates(prog, lw); err != nil {
		return nil, err
	}
	prog.symBroken = lowerSymmetry(prog, lw, opts)

	switch encoding {
	case EncodingInterval:
		err = lowerInterval(prog, lw, bound, numTargets)
	case EncodingIndicator:
		err = lowerIndicator(prog, lw, bound, numTargets)
	}
	if err != nil {
		return nil, err
	}

	if err := prog.Model.Validate(); err != nil {
		return nil, fmt.Errorf("model construction: %w", err)
	}
	return prog, nil
}

// lowerPredicates emits each membership predicate as one direct linear or
// not-equal constraint against the row's assignment variable.
func lowerPredicates(prog *Program, lw *lowering) error {
	for _, p := range lw.preds {
		v := prog.assign[p.Row()]
		t := cp.NewConstantExpr(int64(p.Target()))
		switch p.Op() {
		case ir.CmpEq:
			prog.Model.AddEquality(v, t)
		case ir.CmpNe:
			prog.Model.AddNotEqual(v, t)
		case ir.CmpLe:
			prog.Model.AddLessOrEqual(v, t)
		case ir.CmpGe:
			prog.Model.AddGreaterOrEqual(v, t)
		default:
			return fmt.Errorf("%w: membership operator %d", ErrUnsupportedQualifier, p.Op())
		}
	}
	return nil
}

// demandOf pulls the demand column vector of one aggregate.
func demandOf(a *ir.GroupAggregate) []int64 {
	return a.Generator().Table().ColumnValues(a.Demand())
}

// capacityOf pulls the per target capacity vector of one capacity
// aggregate.
func capacityOf(a *ir.GroupAggregate) []int64 {
	return a.Generator().Targets().ColumnValues(a.Capacity())
}

func uniform(vs []int64) bool {
	for _, v := range vs {
		if v != vs[0] {
			return false
		}
	}
	return true
}

func sumOf(vs []int64) int64 {
	out := int64(0)
	for _, v := range vs {
		out += v
	}
	return out
}
