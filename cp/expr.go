package cp

// LinearArgument is anything usable where a linear expression is expected,
// ie an IntVar, a BoolVar or a *LinearExpr.
type LinearArgument interface {
	addToExpr(e *LinearExpr, coeff int64)
}

type term struct {
	v     VarIndex
	coeff int64
}

// LinearExpr is a container for sum(coeff_i * var_i) + offset over finite
// integer variables.
type LinearExpr struct {
	terms  []term
	offset int64
}

func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

func NewConstantExpr(c int64) *LinearExpr {
	return &LinearExpr{offset: c}
}

func (self *LinearExpr) Add(a LinearArgument) *LinearExpr {
	a.addToExpr(self, 1)
	return self
}

func (self *LinearExpr) AddTerm(a LinearArgument, coeff int64) *LinearExpr {
	a.addToExpr(self, coeff)
	return self
}

func (self *LinearExpr) AddConstant(c int64) *LinearExpr {
	self.offset += c
	return self
}

func (self *LinearExpr) AddSum(as ...LinearArgument) *LinearExpr {
	for _, a := range as {
		a.addToExpr(self, 1)
	}
	return self
}

// AddScalProd appends sum(coeffs_i * as_i). Both slices must have the same
// length, extra coefficients are a programming error.
func (self *LinearExpr) AddScalProd(as []BoolVar, coeffs []int64) *LinearExpr {
	for i, a := range as {
		a.addToExpr(self, coeffs[i])
	}
	return self
}

func (self *LinearExpr) addToExpr(e *LinearExpr, coeff int64) {
	for _, t := range self.terms {
		e.terms = append(e.terms, term{v: t.v, coeff: t.coeff * coeff})
	}
	e.offset += self.offset * coeff
}

func (self *LinearExpr) clone() *LinearExpr {
	out := &LinearExpr{
		terms:  make([]term, len(self.terms)),
		offset: self.offset,
	}
	copy(out.terms, self.terms)
	return out
}

func asExpr(a LinearArgument) *LinearExpr {
	if e, ok := a.(*LinearExpr); ok {
		return e
	}
	e := NewLinearExpr()
	a.addToExpr(e, 1)
	return e
}

// exprDiff builds lhs - rhs as a single expression, the normal form all
// linear constraints are stored in.
func exprDiff(lhs LinearArgument, rhs LinearArgument) *LinearExpr {
	e := NewLinearExpr()
	lhs.addToExpr(e, 1)
	rhs.addToExpr(e, -1)
	return e
}
