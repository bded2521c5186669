package lower

// Symmetry breaking: when the generated rows are interchangeable, every
// permutation of an assignment is another assignment with the same loads,
// and the search would enumerate all of them. Ordering the decision
// variables by generator row order (assign[i] <= assign[i+1]) prunes the
// permutations without touching the attainable objective values. The chain
// is derived purely from generator order, never from solved values.

// interchangeable reports whether reordering rows cannot change any load:
// no predicate singles a row out and every demand column used by an
// aggregate is constant across rows.
func interchangeable(lw *lowering) bool {
	if len(lw.preds) != 0 {
		return false
	}
	for _, a := range lw.aggs {
		if !uniform(demandOf(a)) {
			return false
		}
	}
	return true
}

// lowerSymmetry emits the ordering chain when allowed. Reports whether it
// was applied. SymmetryOn forces the chain, which is only sound when the
// caller knows the rows are interchangeable, SymmetryAuto proves it first.
func lowerSymmetry(prog *Program, lw *lowering, opts Options) bool {
	switch opts.Symmetry {
	case SymmetryOff:
		return false
	case SymmetryAuto:
		if !interchangeable(lw) {
			return false
		}
	}
	if len(prog.assign) < 2 {
		return false
	}
	for i := 0; i+1 < len(prog.assign); i++ {
		prog.Model.AddLessOrEqual(prog.assign[i], prog.assign[i+1])
	}
	return true
}
