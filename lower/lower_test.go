package lower

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relsolve/rel2cp/cp"
	"github.com/relsolve/rel2cp/ir"
)

func mustSolve(t *testing.T, prog *Program) *cp.Result {
	res, err := prog.Solve(context.Background(), &cp.Solver{})
	assert.Nil(t, err)
	return res
}

// fixture is one placement instance: tasks with one demand column against
// nodes with one capacity column.
type fixture struct {
	tasks *ir.Table
	nodes *ir.Table
	gen   *ir.TableRowGenerator
}

func newFixture(t *testing.T, demands []int64, caps []int64) *fixture {
	assert := assert.New(t)

	nodeRows := make([][]int64, len(caps))
	for i, c := range caps {
		nodeRows[i] = []int64{int64(i), c}
	}
	nodes, err := ir.NewTable(
		"nodes",
		[]*ir.Column{
			ir.NewColumn("id", ir.ColumnInt),
			ir.NewColumn("cap", ir.ColumnInt),
		},
		[]string{"id"},
		nodeRows,
	)
	assert.Nil(err)

	taskRows := make([][]int64, len(demands))
	for i, d := range demands {
		taskRows[i] = []int64{int64(i), 0, d}
	}
	tasks, err := ir.NewTable(
		"tasks",
		[]*ir.Column{
			ir.NewColumn("id", ir.ColumnInt),
			ir.NewForeignKeyColumn("node", nodes),
			ir.NewColumn("dem", ir.ColumnInt),
		},
		[]string{"id"},
		taskRows,
	)
	assert.Nil(err)

	gen, err := ir.NewTableRowGenerator(tasks, tasks.Column("node"))
	assert.Nil(err)

	return &fixture{tasks: tasks, nodes: nodes, gen: gen}
}

func (self *fixture) capacityComp(t *testing.T, extra ...ir.Qualifier) *ir.Comprehension {
	assert := assert.New(t)
	agg, err := ir.NewCapacityAggregate(
		ir.AggSum,
		self.gen,
		self.tasks.Column("dem"),
		self.nodes.Column("cap"),
	)
	assert.Nil(err)
	head, err := ir.NewHead(self.gen)
	assert.Nil(err)

	quals := []ir.Qualifier{self.gen}
	quals = append(quals, extra...)
	quals = append(quals, agg, head)
	comp, err := ir.NewComprehension(quals...)
	assert.Nil(err)
	return comp
}

func (self *fixture) objectiveComp(t *testing.T) *ir.Comprehension {
	assert := assert.New(t)
	capAgg, err := ir.NewCapacityAggregate(
		ir.AggSum,
		self.gen,
		self.tasks.Column("dem"),
		self.nodes.Column("cap"),
	)
	assert.Nil(err)
	objAgg, err := ir.NewObjectiveAggregate(ir.AggSum, self.gen, self.tasks.Column("dem"))
	assert.Nil(err)
	head, err := ir.NewHead(self.gen)
	assert.Nil(err)
	comp, err := ir.NewComprehension(self.gen, capAgg, objAgg, head)
	assert.Nil(err)
	return comp
}

func TestCompileShape(t *testing.T) {
	assert := assert.New(t)

	// interval encoding: artifacts independent of target count
	{
		fx := newFixture(t, []int64{2, 2}, []int64{5, 5, 5, 5, 5})
		prog, err := Compile(fx.capacityComp(t), Options{Encoding: EncodingInterval})
		assert.Nil(err)
		assert.Equal(EncodingInterval, prog.Encoding())
		// 2 assign + 2 end vars + capacity constant
		assert.Equal(5, prog.Model.NumVars())
		assert.Equal(2, prog.Model.NumIntervals())
	}

	// indicator encoding: one boolean per (row, target) pair
	{
		fx := newFixture(t, []int64{2, 2}, []int64{5, 5, 5})
		prog, err := Compile(fx.capacityComp(t), Options{Encoding: EncodingIndicator})
		assert.Nil(err)
		assert.Equal(EncodingIndicator, prog.Encoding())
		// 2 assign + 6 indicators
		assert.Equal(8, prog.Model.NumVars())
		assert.Equal(0, prog.Model.NumIntervals())
	}
}

func TestEncodingSelection(t *testing.T) {
	assert := assert.New(t)

	// many targets, few rows, uniform capacity: interval
	{
		fx := newFixture(t, []int64{1, 1}, []int64{3, 3, 3, 3, 3, 3})
		prog, err := Compile(fx.capacityComp(t), Options{})
		assert.Nil(err)
		assert.Equal(EncodingInterval, prog.Encoding())
	}

	// non uniform capacities need per target bounds: indicator
	{
		fx := newFixture(t, []int64{1, 1}, []int64{3, 3, 3, 3, 3, 4})
		prog, err := Compile(fx.capacityComp(t), Options{})
		assert.Nil(err)
		assert.Equal(EncodingIndicator, prog.Encoding())
	}

	// rows outnumber targets: indicator
	{
		fx := newFixture(t, []int64{1, 1, 1}, []int64{9, 9})
		prog, err := Compile(fx.capacityComp(t), Options{})
		assert.Nil(err)
		assert.Equal(EncodingIndicator, prog.Encoding())
	}

	// forcing interval against non uniform capacities is a conflict
	{
		fx := newFixture(t, []int64{1, 1}, []int64{3, 4})
		_, err := Compile(fx.capacityComp(t), Options{Encoding: EncodingInterval})
		assert.ErrorIs(err, ErrEncodingConflict)
	}
}

func TestCompileErrors(t *testing.T) {
	assert := assert.New(t)

	// join predicates have no registered lowering
	{
		fx := newFixture(t, []int64{1, 1}, []int64{3, 3})
		join, err := ir.NewJoinPredicate(fx.gen, 0, ir.CmpNe, 1)
		assert.Nil(err)
		_, cerr := Compile(fx.capacityComp(t, join), Options{})
		assert.ErrorIs(cerr, ErrUnsupportedQualifier)
	}

	// aggregate bound must be finite and positive
	{
		fx := newFixture(t, []int64{1, 1}, []int64{3, 3})
		_, err := Compile(fx.capacityComp(t), Options{AggregateBound: -1})
		assert.ErrorIs(err, cp.ErrUnboundedDomain)
	}

	// a bound the aggregate can overflow is as bad as no bound
	{
		fx := newFixture(t, []int64{100, 100}, []int64{300, 300})
		_, err := Compile(fx.capacityComp(t), Options{AggregateBound: 150})
		assert.ErrorIs(err, cp.ErrUnboundedDomain)
	}

	// no targets to assign to
	{
		fx := newFixture(t, []int64{1}, nil)
		_, err := Compile(fx.capacityComp(t), Options{})
		assert.ErrorIs(err, cp.ErrEmptyDomain)
	}
}

func TestCompilePredicates(t *testing.T) {
	assert := assert.New(t)

	fx := newFixture(t, []int64{2, 2}, []int64{4, 4, 4})
	pin, err := ir.NewMembershipPredicate(fx.gen, 0, ir.CmpEq, 2)
	assert.Nil(err)
	forbid, err := ir.NewMembershipPredicate(fx.gen, 1, ir.CmpNe, 0)
	assert.Nil(err)

	prog, err := Compile(fx.capacityComp(t, pin, forbid), Options{})
	assert.Nil(err)

	res := mustSolve(t, prog)
	placement, perr := Project(prog, res)
	assert.Nil(perr)
	assert.Equal(2, placement.Assignments[0].Target)
	assert.NotEqual(0, placement.Assignments[1].Target)
}
