package cp

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Hard cap on variable bounds. Anything wider is treated as a request for an
// unbounded domain, which the solver cannot search.
const maxDomainBound = int64(1) << 46

var (
	ErrEmptyDomain     = errors.New("empty variable domain")
	ErrUnboundedDomain = errors.New("unbounded variable domain")
)

// VarIndex identifies a variable inside its model when >= 0. A negative
// value encodes the negation of the boolean variable at (-v - 1), same
// trick CP model protos use, so a literal fits in one index.
type VarIndex int32

func (self VarIndex) positive() VarIndex {
	if self >= 0 {
		return self
	}
	return -self - 1
}

func (self VarIndex) negated() bool { return self < 0 }

type varData struct {
	lo, hi  int64
	name    string
	boolean bool
}

// IntVar is a handle to one integer decision variable of a model.
type IntVar struct {
	m     *Model
	index VarIndex
}

func (self IntVar) Name() string    { return self.m.vars[self.index].name }
func (self IntVar) Index() VarIndex { return self.index }

func (self IntVar) addToExpr(e *LinearExpr, coeff int64) {
	e.terms = append(e.terms, term{v: self.index, coeff: coeff})
}

// BoolVar is an IntVar restricted to {0, 1}, usable as an indicator or an
// enforcement literal.
type BoolVar struct {
	m     *Model
	index VarIndex
}

func (self BoolVar) Name() string    { return self.m.vars[self.index.positive()].name }
func (self BoolVar) Index() VarIndex { return self.index }

// Not returns the negated literal of this boolean variable.
func (self BoolVar) Not() BoolVar {
	return BoolVar{
		m:     self.m,
		index: -self.index - 1,
	}
}

func (self BoolVar) asIntVar() IntVar {
	return IntVar{m: self.m, index: self.index.positive()}
}

func (self BoolVar) addToExpr(e *LinearExpr, coeff int64) {
	if self.index.negated() {
		// not(b) == 1 - b
		e.terms = append(e.terms, term{v: self.index.positive(), coeff: -coeff})
		e.offset += coeff
	} else {
		e.terms = append(e.terms, term{v: self.index, coeff: coeff})
	}
}

// IntervalVar is a handle to an interval with a variable start, a fixed
// size and a variable end, usable inside cumulative constraints.
type IntervalVar struct {
	m     *Model
	index int
}

type intervalData struct {
	start VarIndex
	size  int64
	end   VarIndex
}

const (
	conLinear = iota // lo <= expr <= hi
	conNotEqual      // expr != forbidden
	conMaxEquality   // target == max(args)
	conCumulative    // profile(intervals, demands) <= capacity
)

// Constraint is a handle to one posted constraint. Linear and not-equal
// constraints may be half reified through OnlyEnforceIf.
type Constraint struct {
	m   *Model
	idx int
}

type conData struct {
	kind      int
	expr      *LinearExpr // linear / not-equal
	lo, hi    int64       // linear bounds, inclusive
	forbidden int64       // not-equal
	target    VarIndex    // max-equality
	args      []VarIndex  // max-equality
	intervals []int       // cumulative, indices into model.intervals
	demands   []int64     // cumulative
	capacity  VarIndex    // cumulative
	enforce   []VarIndex  // enforcement literals, empty means always on
}

// OnlyEnforceIf adds enforcement literals: when all listed literals are
// true the constraint must hold, when any is false the constraint is
// simply suspended, never negated. The one inference in the reverse
// direction is contrapositive: an impossible constraint whose literals are
// all-but-one true forces the remaining pending literal to false. Full
// equivalence needs a second constraint enforced on the negated literal,
// which is how the indicator encoding uses it.
func (self Constraint) OnlyEnforceIf(lits ...BoolVar) Constraint {
	c := &self.m.cons[self.idx]
	switch c.kind {
	case conLinear, conNotEqual:
	default:
		self.m.fail(fmt.Errorf("enforcement literal on unsupported constraint kind %d", c.kind))
		return self
	}
	for _, l := range lits {
		c.enforce = append(c.enforce, l.index)
	}
	return self
}

// Model accumulates decision variables, constraints and the objective. It is
// the "native model" of one compile, built single threaded and handed to a
// Solver as a whole. Construction errors are collected and reported by
// Validate, so a broken model never reaches the search.
type Model struct {
	vars      []varData
	cons      []conData
	intervals []intervalData
	objective *LinearExpr
	maximize  bool
	err       error
}

func NewModel() *Model {
	return &Model{}
}

func (self *Model) fail(err error) {
	self.err = multierr.Append(self.err, err)
}

func (self *Model) NumVars() int        { return len(self.vars) }
func (self *Model) NumConstraints() int { return len(self.cons) }
func (self *Model) NumIntervals() int   { return len(self.intervals) }
func (self *Model) HasObjective() bool  { return self.objective != nil }

// NewIntVar creates an integer variable with the inclusive domain [lo, hi].
// The domain must be finite and non empty.
func (self *Model) NewIntVar(lo int64, hi int64, name string) IntVar {
	if lo > hi {
		self.fail(fmt.Errorf("%w: variable %q has domain [%d, %d]", ErrEmptyDomain, name, lo, hi))
	}
	if lo < -maxDomainBound || hi > maxDomainBound {
		self.fail(fmt.Errorf("%w: variable %q has domain [%d, %d]", ErrUnboundedDomain, name, lo, hi))
	}
	self.vars = append(self.vars, varData{lo: lo, hi: hi, name: name})
	return IntVar{m: self, index: VarIndex(len(self.vars) - 1)}
}

func (self *Model) NewConstant(v int64) IntVar {
	return self.NewIntVar(v, v, fmt.Sprintf("const_%d", v))
}

func (self *Model) NewBoolVar(name string) BoolVar {
	iv := self.NewIntVar(0, 1, name)
	self.vars[iv.index].boolean = true
	return BoolVar{m: self, index: iv.index}
}

// NewIntervalVar creates an interval [start, start + size) with a fixed
// size. The equality start + size == end is posted as a side effect.
func (self *Model) NewIntervalVar(start IntVar, size int64, end IntVar) IntervalVar {
	if size <= 0 {
		self.fail(fmt.Errorf("interval size must be > 0, got %d", size))
	}
	self.AddEquality(
		NewLinearExpr().Add(start).AddConstant(size),
		end,
	)
	self.intervals = append(self.intervals, intervalData{
		start: start.index,
		size:  size,
		end:   end.index,
	})
	return IntervalVar{m: self, index: len(self.intervals) - 1}
}

func (self *Model) addCon(c conData) Constraint {
	self.cons = append(self.cons, c)
	return Constraint{m: self, idx: len(self.cons) - 1}
}

// AddEquality posts lhs == rhs.
func (self *Model) AddEquality(lhs LinearArgument, rhs LinearArgument) Constraint {
	return self.addCon(conData{
		kind: conLinear,
		expr: exprDiff(lhs, rhs),
		lo:   0,
		hi:   0,
	})
}

// AddLessOrEqual posts lhs <= rhs.
func (self *Model) AddLessOrEqual(lhs LinearArgument, rhs LinearArgument) Constraint {
	return self.addCon(conData{
		kind: conLinear,
		expr: exprDiff(lhs, rhs),
		lo:   -maxDomainBound * 2,
		hi:   0,
	})
}

// AddGreaterOrEqual posts lhs >= rhs.
func (self *Model) AddGreaterOrEqual(lhs LinearArgument, rhs LinearArgument) Constraint {
	return self.addCon(conData{
		kind: conLinear,
		expr: exprDiff(lhs, rhs),
		lo:   0,
		hi:   maxDomainBound * 2,
	})
}

// AddNotEqual posts lhs != rhs.
func (self *Model) AddNotEqual(lhs LinearArgument, rhs LinearArgument) Constraint {
	return self.addCon(conData{
		kind:      conNotEqual,
		expr:      exprDiff(lhs, rhs),
		forbidden: 0,
	})
}

// AddMaxEquality posts target == max(args). The args list must not be
// empty.
func (self *Model) AddMaxEquality(target IntVar, args ...IntVar) Constraint {
	if len(args) == 0 {
		self.fail(fmt.Errorf("max equality over empty argument list"))
	}
	idx := make([]VarIndex, len(args))
	for i, a := range args {
		idx[i] = a.index
	}
	return self.addCon(conData{
		kind:   conMaxEquality,
		target: target.index,
		args:   idx,
	})
}

// AddCumulative posts: at every point p of the discrete axis, the sum of
// demands of intervals covering p stays <= capacity. Capacity may be a
// plain constant (NewConstant) or a variable, the latter is how a cumulative
// feeds a minimized objective.
func (self *Model) AddCumulative(
	intervals []IntervalVar,
	demands []int64,
	capacity IntVar,
) Constraint {
	if len(intervals) == 0 {
		self.fail(fmt.Errorf("cumulative over empty interval list"))
	}
	if len(intervals) != len(demands) {
		self.fail(fmt.Errorf(
			"cumulative: %d intervals but %d demands",
			len(intervals),
			len(demands),
		))
	}
	for i, d := range demands {
		if d < 0 {
			self.fail(fmt.Errorf("cumulative: demand %d is negative", i))
		}
	}
	idx := make([]int, len(intervals))
	for i, iv := range intervals {
		idx[i] = iv.index
	}
	return self.addCon(conData{
		kind:      conCumulative,
		intervals: idx,
		demands:   demands,
		capacity:  capacity.index,
	})
}

// Minimize sets the objective to minimize. Only one objective per model, a
// second call replaces the first.
func (self *Model) Minimize(obj LinearArgument) {
	self.objective = asExpr(obj).clone()
	self.maximize = false
}

// Maximize sets the objective to maximize.
func (self *Model) Maximize(obj LinearArgument) {
	self.objective = asExpr(obj).clone()
	self.maximize = true
}

// Validate reports every construction error accumulated so far. A model
// failing validation must not be solved.
func (self *Model) Validate() error {
	return self.err
}
