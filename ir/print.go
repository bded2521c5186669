package ir

import (
	"fmt"
	"strings"
)

// Printing the comprehension out, for testing, debugging, visualization
// purpose etc ... Implemented as a plain visitor to keep the node set free
// of consumer specific code, and doubles as a proof that the dispatch works
// for consumers other than the lowering.

func (self *TableRowGenerator) Dump() string {
	return fmt.Sprintf(
		"generator(%s -> %s via %s)",
		self.table.Name(),
		self.Targets().Name(),
		self.assign.Name(),
	)
}

func (self *MembershipPredicate) Dump() string {
	return fmt.Sprintf(
		"membership(%s[%d] %s %d)",
		self.gen.Table().Name(),
		self.row,
		cmpOpToName(self.op),
		self.target,
	)
}

func (self *JoinPredicate) Dump() string {
	return fmt.Sprintf(
		"join(%s[%d] %s %s[%d])",
		self.gen.Table().Name(),
		self.rowL,
		cmpOpToName(self.op),
		self.gen.Table().Name(),
		self.rowR,
	)
}

func (self *GroupAggregate) Dump() string {
	if self.objective {
		return fmt.Sprintf(
			"aggregate(minimize max %s(%s) group by %s)",
			self.KindName(),
			self.demand.Name(),
			self.gen.Targets().Name(),
		)
	}
	return fmt.Sprintf(
		"aggregate(%s(%s) <= %s.%s group by %s)",
		self.KindName(),
		self.demand.Name(),
		self.gen.Targets().Name(),
		self.capacity.Name(),
		self.gen.Targets().Name(),
	)
}

func (self *Head) Dump() string {
	return fmt.Sprintf("head(%s)", self.gen.Table().Name())
}

type printVisitor struct {
	buf *strings.Builder
}

func (self *printVisitor) line(q Qualifier) error {
	self.buf.WriteString(q.Dump())
	self.buf.WriteString("\n")
	return nil
}

func (self *printVisitor) VisitTableRowGenerator(q *TableRowGenerator, _ interface{}) error {
	return self.line(q)
}

func (self *printVisitor) VisitMembershipPredicate(q *MembershipPredicate, _ interface{}) error {
	return self.line(q)
}

func (self *printVisitor) VisitJoinPredicate(q *JoinPredicate, _ interface{}) error {
	return self.line(q)
}

func (self *printVisitor) VisitGroupAggregate(q *GroupAggregate, _ interface{}) error {
	return self.line(q)
}

func (self *printVisitor) VisitHead(q *Head, _ interface{}) error {
	return self.line(q)
}

func (self *Comprehension) Print() string {
	p := &printVisitor{
		buf: &strings.Builder{},
	}
	// the print visitor never fails
	_ = self.Visit(p, nil)
	return p.buf.String()
}
