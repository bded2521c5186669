package ir

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func testPair(t *testing.T) (*Table, *Table, *TableRowGenerator) {
	assert := assert.New(t)
	nodes, err := NewTable(
		"nodes",
		[]*Column{
			NewColumn("id", ColumnInt),
			NewColumn("cap", ColumnInt),
		},
		[]string{"id"},
		[][]int64{{0, 4}, {1, 4}},
	)
	assert.Nil(err)
	tasks, err := NewTable(
		"tasks",
		[]*Column{
			NewColumn("id", ColumnInt),
			NewForeignKeyColumn("node", nodes),
			NewColumn("dem", ColumnInt),
		},
		[]string{"id"},
		[][]int64{{0, 0, 2}, {1, 0, 2}, {2, 0, 2}},
	)
	assert.Nil(err)
	gen, err := NewTableRowGenerator(tasks, tasks.Column("node"))
	assert.Nil(err)
	return tasks, nodes, gen
}

func TestGeneratorConstruction(t *testing.T) {
	assert := assert.New(t)
	tasks, nodes, gen := testPair(t)

	assert.Equal(tasks, gen.Table())
	assert.Equal(nodes, gen.Targets())

	// assignment column must be a foreign key of the generated table
	{
		_, err := NewTableRowGenerator(tasks, tasks.Column("dem"))
		assert.NotNil(err)
	}
	{
		_, err := NewTableRowGenerator(tasks, nodes.Column("cap"))
		assert.NotNil(err)
	}
}

func TestQualifierConstruction(t *testing.T) {
	assert := assert.New(t)
	tasks, nodes, gen := testPair(t)

	{
		_, err := NewMembershipPredicate(gen, 99, CmpEq, 0)
		assert.NotNil(err)
	}
	{
		_, err := NewMembershipPredicate(gen, 0, 12345, 0)
		assert.NotNil(err)
	}
	{
		// demand column must live on the generated table
		_, err := NewCapacityAggregate(AggSum, gen, nodes.Column("cap"), nodes.Column("cap"))
		assert.NotNil(err)
	}
	{
		// capacity column must live on the target table
		_, err := NewCapacityAggregate(AggSum, gen, tasks.Column("dem"), tasks.Column("dem"))
		assert.NotNil(err)
	}
	{
		agg, err := NewCapacityAggregate(AggSum, gen, tasks.Column("dem"), nodes.Column("cap"))
		assert.Nil(err)
		assert.False(agg.IsObjective())
		assert.Equal("sum", agg.KindName())
	}
	{
		agg, err := NewObjectiveAggregate(AggMax, gen, tasks.Column("dem"))
		assert.Nil(err)
		assert.True(agg.IsObjective())
		assert.Nil(agg.Capacity())
	}
}

func TestComprehension(t *testing.T) {
	assert := assert.New(t)
	tasks, nodes, gen := testPair(t)

	agg, err := NewCapacityAggregate(AggSum, gen, tasks.Column("dem"), nodes.Column("cap"))
	assert.Nil(err)
	head, err := NewHead(gen)
	assert.Nil(err)

	// head is mandatory
	{
		_, err := NewComprehension(gen, agg)
		assert.NotNil(err)
	}
	// and unique
	{
		_, err := NewComprehension(gen, head, head)
		assert.NotNil(err)
	}

	comp, err := NewComprehension(gen, agg, head)
	assert.Nil(err)
	assert.Equal(head, comp.Head())
	assert.Equal(3, len(comp.Qualifiers()))
}

// a trivial visitor counting dispatches per variant, to pin down that the
// double dispatch reaches the variant specific method
type countVisitor struct {
	gen, pred, join, agg, head int
}

func (self *countVisitor) VisitTableRowGenerator(*TableRowGenerator, interface{}) error {
	self.gen++
	return nil
}
func (self *countVisitor) VisitMembershipPredicate(*MembershipPredicate, interface{}) error {
	self.pred++
	return nil
}
func (self *countVisitor) VisitJoinPredicate(*JoinPredicate, interface{}) error {
	self.join++
	return nil
}
func (self *countVisitor) VisitGroupAggregate(*GroupAggregate, interface{}) error {
	self.agg++
	return nil
}
func (self *countVisitor) VisitHead(*Head, interface{}) error {
	self.head++
	return nil
}

func TestVisitorDispatch(t *testing.T) {
	assert := assert.New(t)
	tasks, nodes, gen := testPair(t)

	pred, err := NewMembershipPredicate(gen, 0, CmpNe, 1)
	assert.Nil(err)
	join, err := NewJoinPredicate(gen, 0, CmpEq, 1)
	assert.Nil(err)
	agg, err := NewCapacityAggregate(AggSum, gen, tasks.Column("dem"), nodes.Column("cap"))
	assert.Nil(err)
	head, err := NewHead(gen)
	assert.Nil(err)

	comp, err := NewComprehension(gen, pred, join, agg, head)
	assert.Nil(err)

	cv := &countVisitor{}
	assert.Nil(comp.Visit(cv, nil))
	assert.Equal(1, cv.gen)
	assert.Equal(1, cv.pred)
	assert.Equal(1, cv.join)
	assert.Equal(1, cv.agg)
	assert.Equal(1, cv.head)
}

func TestPrint(t *testing.T) {
	assert := assert.New(t)
	tasks, nodes, gen := testPair(t)

	agg, err := NewCapacityAggregate(AggSum, gen, tasks.Column("dem"), nodes.Column("cap"))
	assert.Nil(err)
	head, err := NewHead(gen)
	assert.Nil(err)
	comp, err := NewComprehension(gen, agg, head)
	assert.Nil(err)

	out := comp.Print()
	assert.Contains(out, "generator(tasks -> nodes via node)")
	assert.Contains(out, "aggregate(sum(dem) <= nodes.cap group by nodes)")
	assert.Contains(out, "head(tasks)")
}
