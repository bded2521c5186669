package lower

import (
	"fmt"

	"github.com/relsolve/rel2cp/cp"
)

// Assignment is one projected placement decision: row identity to target
// row identity. Row keys come from the single column primary key when the
// table has one, otherwise from the full row tuple.
type Assignment struct {
	Row       int
	RowKey    string
	Target    int
	TargetKey string
}

// Placement is the final output of one compile+solve cycle, ready for a
// control plane to act on.
type Placement struct {
	Status       cp.Status
	Objective    int64
	HasObjective bool
	Assignments  []Assignment
}

// Project reads the solved value of every tracked decision variable and
// maps it back onto relational row identity. Pure read and translate, owns
// nothing. Callers must check the solver status first: anything but
// Optimal or Feasible fails with ErrProjectionMismatch instead of handing
// out garbage.
func Project(prog *Program, res *cp.Result) (*Placement, error) {
	status := res.Status()
	if status != cp.Optimal && status != cp.Feasible {
		return nil, fmt.Errorf(
			"%w: cannot project a %s solve",
			ErrProjectionMismatch,
			status.String(),
		)
	}

	out := &Placement{
		Status: status,
	}
	if obj, ok := res.ObjectiveValue(); ok {
		out.Objective = obj
		out.HasObjective = true
	}

	targets := prog.gen.Targets()
	for i, ref := range prog.rows {
		v, ok := res.Value(prog.assign[i])
		if !ok {
			return nil, fmt.Errorf(
				"%w: no recorded value for row %d of %s",
				ErrProjectionMismatch,
				ref.Row,
				ref.Table.Name(),
			)
		}
		out.Assignments = append(out.Assignments, Assignment{
			Row:       ref.Row,
			RowKey:    ref.Table.RowKey(ref.Row),
			Target:    int(v),
			TargetKey: targets.RowKey(int(v)),
		})
	}
	return out, nil
}
