package ir

import (
	"fmt"
)

// Comparison operator of a membership predicate, comparing one row's
// assignment against a constant target index.
const (
	CmpEq = iota
	CmpNe
	CmpLe
	CmpGe
)

func cmpOpToName(i int) string {
	switch i {
	case CmpEq:
		return "=="
	case CmpNe:
		return "!="
	case CmpLe:
		return "<="
	case CmpGe:
		return ">="
	default:
		return "unknown"
	}
}

// Aggregate reduction kind, applied to a demand column over all rows landing
// on the same target.
const (
	AggSum = iota
	AggMax
)

func aggKindToName(i int) string {
	switch i {
	case AggSum:
		return "sum"
	case AggMax:
		return "max"
	default:
		return "unknown"
	}
}

// Qualifier is the common supertype of every comprehension tree node. The
// variant set is closed, ie consumers vary but nodes do not, so each node
// double dispatches into a Visitor and the marker method seals the set
// inside this package.
type Qualifier interface {
	Accept(v Visitor, ctx interface{}) error
	Dump() string

	qualifier()
}

// Visitor is how a consumer, the lowering backend or the pretty printer or
// anything else, adds behavior over the comprehension tree without touching
// the node definitions. One method per variant, adding a variant means
// touching every visitor, which is the accepted trade off.
type Visitor interface {
	VisitTableRowGenerator(q *TableRowGenerator, ctx interface{}) error
	VisitMembershipPredicate(q *MembershipPredicate, ctx interface{}) error
	VisitJoinPredicate(q *JoinPredicate, ctx interface{}) error
	VisitGroupAggregate(q *GroupAggregate, ctx interface{}) error
	VisitHead(q *Head, ctx interface{}) error
}

// ----------------------------------------------------------------------------
// TableRowGenerator

// TableRowGenerator binds a fresh row variable to "one row of table T". The
// lowering materializes one decision variable per row, ranging over the rows
// of the target table referenced by the generator's assignment column.
// Created once during IR construction, consumed exactly once by the
// lowering, never mutated afterwards.
type TableRowGenerator struct {
	table  *Table
	assign *Column
}

func NewTableRowGenerator(table *Table, assign *Column) (*TableRowGenerator, error) {
	if table == nil {
		return nil, fmt.Errorf("generator requires a table")
	}
	if assign == nil || assign.Owner() != table {
		return nil, fmt.Errorf(
			"generator over %s: assignment column must belong to the generated table",
			table.Name(),
		)
	}
	if assign.Type() != ColumnForeignKey || assign.Ref() == nil {
		return nil, fmt.Errorf(
			"generator over %s: assignment column %s must be a foreign key",
			table.Name(),
			assign.Name(),
		)
	}
	return &TableRowGenerator{
		table:  table,
		assign: assign,
	}, nil
}

func (self *TableRowGenerator) Table() *Table         { return self.table }
func (self *TableRowGenerator) AssignColumn() *Column { return self.assign }

// Targets is the table the assignment column references, ie the table whose
// row indices form the decision domain.
func (self *TableRowGenerator) Targets() *Table { return self.assign.Ref() }

// UniquePrimaryKeyColumn returns the generated table's primary key column
// when, and only when, the key consists of exactly one column. Multi column
// keys report absence and callers must take the composite key path.
func (self *TableRowGenerator) UniquePrimaryKeyColumn() (*Column, bool) {
	pk := self.table.PrimaryKey()
	if pk == nil || pk.Arity() != 1 {
		return nil, false
	}
	return pk.Columns()[0], true
}

func (self *TableRowGenerator) Accept(v Visitor, ctx interface{}) error {
	return v.VisitTableRowGenerator(self, ctx)
}

func (self *TableRowGenerator) qualifier() {}

// ----------------------------------------------------------------------------
// MembershipPredicate

// MembershipPredicate constrains the assignment of one generated row against
// a constant target row index, ie pinning (==), exclusion (!=) or one sided
// range restriction (<=, >=).
type MembershipPredicate struct {
	gen    *TableRowGenerator
	row    int
	op     int
	target int
}

func NewMembershipPredicate(
	gen *TableRowGenerator,
	row int,
	op int,
	target int,
) (*MembershipPredicate, error) {
	if gen == nil {
		return nil, fmt.Errorf("membership predicate requires a generator")
	}
	if row < 0 || row >= gen.Table().NumRows() {
		return nil, fmt.Errorf(
			"membership predicate: row %d out of range for table %s",
			row,
			gen.Table().Name(),
		)
	}
	switch op {
	case CmpEq, CmpNe, CmpLe, CmpGe:
	default:
		return nil, fmt.Errorf("membership predicate: invalid operator %d", op)
	}
	return &MembershipPredicate{
		gen:    gen,
		row:    row,
		op:     op,
		target: target,
	}, nil
}

func (self *MembershipPredicate) Generator() *TableRowGenerator { return self.gen }
func (self *MembershipPredicate) Row() int                      { return self.row }
func (self *MembershipPredicate) Op() int                       { return self.op }
func (self *MembershipPredicate) Target() int                   { return self.target }

func (self *MembershipPredicate) Accept(v Visitor, ctx interface{}) error {
	return v.VisitMembershipPredicate(self, ctx)
}

func (self *MembershipPredicate) qualifier() {}

// ----------------------------------------------------------------------------
// JoinPredicate

// JoinPredicate relates the assignments of two generated rows, for example
// co location (==) or anti affinity (!=) between a pair of rows. Part of the
// closed variant set, though not every backend registers a lowering for it.
type JoinPredicate struct {
	gen        *TableRowGenerator
	rowL, rowR int
	op         int
}

func NewJoinPredicate(
	gen *TableRowGenerator,
	rowL int,
	op int,
	rowR int,
) (*JoinPredicate, error) {
	if gen == nil {
		return nil, fmt.Errorf("join predicate requires a generator")
	}
	n := gen.Table().NumRows()
	if rowL < 0 || rowL >= n || rowR < 0 || rowR >= n {
		return nil, fmt.Errorf("join predicate: row pair (%d, %d) out of range", rowL, rowR)
	}
	switch op {
	case CmpEq, CmpNe:
	default:
		return nil, fmt.Errorf("join predicate: invalid operator %d", op)
	}
	return &JoinPredicate{
		gen:  gen,
		rowL: rowL,
		rowR: rowR,
		op:   op,
	}, nil
}

func (self *JoinPredicate) Generator() *TableRowGenerator { return self.gen }
func (self *JoinPredicate) RowL() int                     { return self.rowL }
func (self *JoinPredicate) RowR() int                     { return self.rowR }
func (self *JoinPredicate) Op() int                       { return self.op }

func (self *JoinPredicate) Accept(v Visitor, ctx interface{}) error {
	return v.VisitJoinPredicate(self, ctx)
}

func (self *JoinPredicate) qualifier() {}

// ----------------------------------------------------------------------------
// GroupAggregate

// GroupAggregate groups the generated rows by their assignment target and
// reduces a demand column over each group. Two flavors exist:
//
//  1. capacity != nil, the reduction is bounded per target by the capacity
//     column of the target table, which is the classic capacity constraint
//  2. objective == true, the per target reduction feeds a minimize max
//     objective
//
// Both flavors may be combined freely inside one comprehension.
type GroupAggregate struct {
	kind      int
	gen       *TableRowGenerator
	demand    *Column
	capacity  *Column // on the target table, nil for objective aggregates
	objective bool
}

func NewCapacityAggregate(
	kind int,
	gen *TableRowGenerator,
	demand *Column,
	capacity *Column,
) (*GroupAggregate, error) {
	out, err := newGroupAggregate(kind, gen, demand)
	if err != nil {
		return nil, err
	}
	if capacity == nil || capacity.Owner() != gen.Targets() {
		return nil, fmt.Errorf(
			"capacity aggregate: capacity column must belong to target table %s",
			gen.Targets().Name(),
		)
	}
	out.capacity = capacity
	return out, nil
}

func NewObjectiveAggregate(
	kind int,
	gen *TableRowGenerator,
	demand *Column,
) (*GroupAggregate, error) {
	out, err := newGroupAggregate(kind, gen, demand)
	if err != nil {
		return nil, err
	}
	out.objective = true
	return out, nil
}

func newGroupAggregate(
	kind int,
	gen *TableRowGenerator,
	demand *Column,
) (*GroupAggregate, error) {
	if gen == nil {
		return nil, fmt.Errorf("group aggregate requires a generator")
	}
	switch kind {
	case AggSum, AggMax:
	default:
		return nil, fmt.Errorf("group aggregate: invalid reduction kind %d", kind)
	}
	if demand == nil || demand.Owner() != gen.Table() {
		return nil, fmt.Errorf(
			"group aggregate: demand column must belong to generated table %s",
			gen.Table().Name(),
		)
	}
	return &GroupAggregate{
		kind:   kind,
		gen:    gen,
		demand: demand,
	}, nil
}

func (self *GroupAggregate) Kind() int                      { return self.kind }
func (self *GroupAggregate) Generator() *TableRowGenerator  { return self.gen }
func (self *GroupAggregate) Demand() *Column                { return self.demand }
func (self *GroupAggregate) Capacity() *Column              { return self.capacity }
func (self *GroupAggregate) IsObjective() bool              { return self.objective }
func (self *GroupAggregate) KindName() string               { return aggKindToName(self.kind) }

func (self *GroupAggregate) Accept(v Visitor, ctx interface{}) error {
	return v.VisitGroupAggregate(self, ctx)
}

func (self *GroupAggregate) qualifier() {}

// ----------------------------------------------------------------------------
// Head

// Head is the top level projection: report the solved assignment of every
// row produced by the generator, keyed by row identity.
type Head struct {
	gen *TableRowGenerator
}

func NewHead(gen *TableRowGenerator) (*Head, error) {
	if gen == nil {
		return nil, fmt.Errorf("head requires a generator")
	}
	return &Head{gen: gen}, nil
}

func (self *Head) Generator() *TableRowGenerator { return self.gen }

func (self *Head) Accept(v Visitor, ctx interface{}) error {
	return v.VisitHead(self, ctx)
}

func (self *Head) qualifier() {}

// ----------------------------------------------------------------------------
// Comprehension

// Comprehension is the full query: an ordered list of qualifiers terminated
// by a head projection. Order matters for the generator, since symmetry
// breaking is derived purely from generator row order.
type Comprehension struct {
	qualifiers []Qualifier
	head       *Head
}

func NewComprehension(quals ...Qualifier) (*Comprehension, error) {
	out := &Comprehension{}
	for _, q := range quals {
		if h, ok := q.(*Head); ok {
			if out.head != nil {
				return nil, fmt.Errorf("comprehension: multiple head projections")
			}
			out.head = h
		}
		out.qualifiers = append(out.qualifiers, q)
	}
	if out.head == nil {
		return nil, fmt.Errorf("comprehension: missing head projection")
	}
	return out, nil
}

func (self *Comprehension) Qualifiers() []Qualifier { return self.qualifiers }
func (self *Comprehension) Head() *Head             { return self.head }

// Visit walks every qualifier in order, bailing out on the first error.
func (self *Comprehension) Visit(v Visitor, ctx interface{}) error {
	for _, q := range self.qualifiers {
		if err := q.Accept(v, ctx); err != nil {
			return err
		}
	}
	return nil
}
