package lower

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/relsolve/rel2cp/cp"
	"github.com/relsolve/rel2cp/ir"
)

const (
	EncodingAuto = iota
	EncodingInterval
	EncodingIndicator
)

func encodingToName(i int) string {
	switch i {
	case EncodingInterval:
		return "interval"
	case EncodingIndicator:
		return "indicator"
	default:
		return "auto"
	}
}

const (
	SymmetryAuto = iota
	SymmetryOn
	SymmetryOff
)

// Default finite upper bound handed to every aggregate variable. The solver
// requires bounded domains, so "large enough for any plausible load" is
// made explicit here instead of being implied.
const DefAggregateBound = 10000000

type Options struct {
	Encoding       int   // EncodingAuto / EncodingInterval / EncodingIndicator
	Symmetry       int   // SymmetryAuto / SymmetryOn / SymmetryOff
	AggregateBound int64 // 0 means DefAggregateBound
}

func (self *Options) aggregateBound() int64 {
	if self.AggregateBound == 0 {
		return DefAggregateBound
	}
	return self.AggregateBound
}

// RowRef ties a decision variable back to the (table, row) it was created
// for, the piece projection needs to translate solved values into row
// identities.
type RowRef struct {
	Table *ir.Table
	Row   int
}

// Program is one compiled comprehension: the native model plus the mapping
// from decision variables back to relational row identity. Owned by a
// single compile+solve cycle, never shared across concurrent solves.
type Program struct {
	Model *cp.Model

	encoding  int
	symBroken bool

	gen    *ir.TableRowGenerator
	assign []cp.IntVar
	rows   []RowRef

	objVar       cp.IntVar
	hasObjective bool
}

func (self *Program) Encoding() int        { return self.encoding }
func (self *Program) EncodingName() string { return encodingToName(self.encoding) }
func (self *Program) SymmetryBroken() bool { return self.symBroken }
func (self *Program) NumRows() int         { return len(self.rows) }

// ObjectiveVar returns the minimized aggregate variable, present only when
// the comprehension carried an objective aggregate.
func (self *Program) ObjectiveVar() (cp.IntVar, bool) {
	return self.objVar, self.hasObjective
}

// Solve hands the compiled model to the driver. One blocking call, the
// context deadline is the only cancellation mechanism.
func (self *Program) Solve(ctx context.Context, solver *cp.Solver) (*cp.Result, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rel2cp.solve")
	span.SetTag("encoding", self.EncodingName())
	span.SetTag("rows", len(self.rows))
	defer span.Finish()

	res, err := solver.Solve(ctx, self.Model)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	span.SetTag("status", res.Status().String())
	return res, nil
}
