package lower

import (
	"fmt"

	"github.com/relsolve/rel2cp/cp"
	"github.com/relsolve/rel2cp/ir"
)

// ----------------------------------------------------------------------------
// encoding selection
//
// Two interchangeable encodings exist for capacity style constraints and
// both must admit the exact same feasible solutions:
//
//   interval:  one unit length interval per row positioned at its
//              assignment, one cumulative constraint per resource
//              dimension. O(rows) artifacts, independent of target count.
//   indicator: one reified boolean per (row, target) pair, per target load
//              as a scalar product against the bound. O(rows x targets)
//              artifacts but per target aggregates become plain linear
//              sums.
//
// A single cumulative carries a single capacity, so anything needing a per
// target value, distinct capacities or a max reduction, requires the
// indicator side. Beyond that hard rule the choice is a policy, not a
// measured cost model: many targets and few rows favor intervals.

func needIndicator(lw *lowering) bool {
	for _, a := range lw.aggs {
		if a.Kind() == ir.AggMax {
			return true
		}
		if a.Capacity() != nil && !uniform(capacityOf(a)) {
			return true
		}
	}
	return false
}

func selectEncoding(lw *lowering, opts Options, numRows int, numTargets int) (int, error) {
	need := needIndicator(lw)
	switch opts.Encoding {
	case EncodingIndicator:
		return EncodingIndicator, nil
	case EncodingInterval:
		if need {
			return 0, fmt.Errorf(
				"%w: interval encoding cannot express per target aggregates "+
					"(non uniform capacity or max reduction)",
				ErrEncodingConflict,
			)
		}
		return EncodingInterval, nil
	default:
		if need || numTargets <= numRows {
			return EncodingIndicator, nil
		}
		return EncodingInterval, nil
	}
}

// checkAggregateBound rejects bounds an aggregate value could overflow,
// which would silently cut off feasible loads instead of failing loudly.
func checkAggregateBound(a *ir.GroupAggregate, bound int64) error {
	worst := sumOf(demandOf(a))
	if a.Kind() == ir.AggMax {
		worst = 0
		for _, d := range demandOf(a) {
			if d > worst {
				worst = d
			}
		}
	}
	if worst > bound {
		return fmt.Errorf(
			"%w: aggregate over %s can reach %d, above the declared bound %d",
			cp.ErrUnboundedDomain,
			a.Demand().Name(),
			worst,
			bound,
		)
	}
	return nil
}

// ----------------------------------------------------------------------------
// interval encoding

// lowerInterval positions one unit interval per row at its assignment
// variable and funnels every aggregate through a cumulative constraint. The
// objective aggregate reuses the cumulative capacity as the minimized
// variable, so the peak per target load is bounded from below by
// propagation alone.
func lowerInterval(prog *Program, lw *lowering, bound int64, numTargets int) error {
	if len(lw.aggs) == 0 || len(prog.assign) == 0 {
		return nil
	}

	m := prog.Model
	intervals := make([]cp.IntervalVar, len(prog.assign))
	for i, v := range prog.assign {
		end := m.NewIntVar(1, int64(numTargets), fmt.Sprintf("end_%d", i))
		intervals[i] = m.NewIntervalVar(v, 1, end)
	}

	for _, a := range lw.aggs {
		if err := checkAggregateBound(a, bound); err != nil {
			return err
		}
		demands := demandOf(a)

		if a.IsObjective() {
			if prog.hasObjective {
				return fmt.Errorf(
					"%w: multiple objective aggregates",
					ErrUnsupportedQualifier,
				)
			}
			obj := m.NewIntVar(0, bound, "objective")
			m.AddCumulative(intervals, demands, obj)
			m.Minimize(obj)
			prog.objVar = obj
			prog.hasObjective = true
			continue
		}

		// selection guarantees a uniform capacity vector here
		caps := capacityOf(a)
		m.AddCumulative(intervals, demands, m.NewConstant(caps[0]))
	}
	return nil
}

// ----------------------------------------------------------------------------
// indicator encoding

// lowerIndicator defines, for every (row, target) pair, a boolean that is
// true iff the row lands on the target. The equivalence runs through the
// assignment variable (b => assign == t, not(b) => assign != t), which
// already forces exactly one true indicator per row, no separate
// exactly-one constraint is needed.
func lowerIndicator(prog *Program, lw *lowering, bound int64, numTargets int) error {
	if len(lw.aggs) == 0 || len(prog.assign) == 0 {
		return nil
	}

	m := prog.Model
	ind := make([][]cp.BoolVar, len(prog.assign))
	for i, v := range prog.assign {
		ind[i] = make([]cp.BoolVar, numTargets)
		for t := 0; t < numTargets; t++ {
			b := m.NewBoolVar(fmt.Sprintf("on_%d_%d", i, t))
			tc := cp.NewConstantExpr(int64(t))
			m.AddEquality(v, tc).OnlyEnforceIf(b)
			m.AddNotEqual(v, tc).OnlyEnforceIf(b.Not())
			ind[i][t] = b
		}
	}

	column := func(t int) []cp.BoolVar {
		out := make([]cp.BoolVar, len(ind))
		for i := range ind {
			out[i] = ind[i][t]
		}
		return out
	}

	for _, a := range lw.aggs {
		if err := checkAggregateBound(a, bound); err != nil {
			return err
		}
		demands := demandOf(a)

		switch {
		case a.IsObjective():
			if prog.hasObjective {
				return fmt.Errorf(
					"%w: multiple objective aggregates",
					ErrUnsupportedQualifier,
				)
			}
			perTarget := make([]cp.IntVar, numTargets)
			for t := 0; t < numTargets; t++ {
				agg := m.NewIntVar(0, bound, fmt.Sprintf("agg_%d", t))
				if a.Kind() == ir.AggSum {
					m.AddEquality(
						agg,
						cp.NewLinearExpr().AddScalProd(column(t), demands),
					)
				} else {
					// max reduction: only a lower bound per member is
					// needed, minimization presses the rest out
					for i := range ind {
						m.AddGreaterOrEqual(
							agg,
							cp.NewConstantExpr(demands[i]),
						).OnlyEnforceIf(ind[i][t])
					}
				}
				perTarget[t] = agg
			}
			obj := m.NewIntVar(0, bound, "objective")
			m.AddMaxEquality(obj, perTarget...)
			m.Minimize(obj)
			prog.objVar = obj
			prog.hasObjective = true

		case a.Kind() == ir.AggSum:
			caps := capacityOf(a)
			for t := 0; t < numTargets; t++ {
				m.AddLessOrEqual(
					cp.NewLinearExpr().AddScalProd(column(t), demands),
					cp.NewConstantExpr(caps[t]),
				)
			}

		default: // AggMax against a capacity column
			caps := capacityOf(a)
			for t := 0; t < numTargets; t++ {
				for i := range ind {
					if demands[i] > caps[t] {
						m.AddNotEqual(prog.assign[i], cp.NewConstantExpr(int64(t)))
					}
				}
			}
		}
	}
	return nil
}
