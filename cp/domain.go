package cp

// Integer domain as inclusive bounds plus a sparse hole set. Bounds carry
// the bulk of the propagation, holes only ever come from not-equal pruning
// on enumerable decision domains, so the map stays tiny or nil. Wide derived
// domains (aggregate bounds up to 10^7) stay cheap this way, which a bitset
// representation would not.
type domain struct {
	lo, hi int64
	holes  map[int64]bool // values strictly inside (lo, hi) removed
}

func (self *domain) empty() bool { return self.lo > self.hi }
func (self *domain) fixed() bool { return self.lo == self.hi }
func (self *domain) value() int64 {
	return self.lo
}

// size is the number of values left. Only meaningful for enumerable
// domains, callers branch on width before enumerating.
func (self *domain) size() int64 {
	if self.empty() {
		return 0
	}
	return self.hi - self.lo + 1 - int64(len(self.holes))
}

func (self *domain) contains(v int64) bool {
	if v < self.lo || v > self.hi {
		return false
	}
	return !self.holes[v]
}

// skipHolesUp moves lo up over removed values, keeping bounds canonical, ie
// both endpoints always belong to the domain.
func (self *domain) skipHolesUp() {
	for self.lo <= self.hi && self.holes[self.lo] {
		delete(self.holes, self.lo)
		self.lo++
	}
}

func (self *domain) skipHolesDown() {
	for self.lo <= self.hi && self.holes[self.hi] {
		delete(self.holes, self.hi)
		self.hi--
	}
}

// tightenLo raises the lower bound. Reports whether the domain changed.
func (self *domain) tightenLo(v int64) bool {
	if v <= self.lo {
		return false
	}
	self.lo = v
	self.skipHolesUp()
	return true
}

func (self *domain) tightenHi(v int64) bool {
	if v >= self.hi {
		return false
	}
	self.hi = v
	self.skipHolesDown()
	return true
}

func (self *domain) assign(v int64) bool {
	changed := self.tightenLo(v)
	changed = self.tightenHi(v) || changed
	return changed
}

// removeValue punches a hole. Endpoint removal degrades to a bound update
// so the invariant "endpoints are members" holds.
func (self *domain) removeValue(v int64) bool {
	if v < self.lo || v > self.hi {
		return false
	}
	if v == self.lo {
		self.lo++
		self.skipHolesUp()
		return true
	}
	if v == self.hi {
		self.hi--
		self.skipHolesDown()
		return true
	}
	if self.holes[v] {
		return false
	}
	if self.holes == nil {
		self.holes = make(map[int64]bool)
	}
	self.holes[v] = true
	return true
}

// next returns the smallest member >= v, or hi+1 when none is left.
func (self *domain) next(v int64) int64 {
	if v < self.lo {
		v = self.lo
	}
	for v <= self.hi && self.holes[v] {
		v++
	}
	return v
}

func (self *domain) clone() domain {
	out := domain{lo: self.lo, hi: self.hi}
	if len(self.holes) != 0 {
		out.holes = make(map[int64]bool, len(self.holes))
		for k := range self.holes {
			out.holes[k] = true
		}
	}
	return out
}

type domainStore []domain

func newDomainStore(m *Model) domainStore {
	out := make(domainStore, len(m.vars))
	for i, v := range m.vars {
		out[i] = domain{lo: v.lo, hi: v.hi}
	}
	return out
}

func (self domainStore) clone() domainStore {
	out := make(domainStore, len(self))
	for i := range self {
		out[i] = self[i].clone()
	}
	return out
}

func (self domainStore) allFixed() bool {
	for i := range self {
		if !self[i].fixed() {
			return false
		}
	}
	return true
}

// litState reads the truth state of a literal: 1 true, 0 false, -1 unknown.
func (self domainStore) litState(l VarIndex) int {
	d := &self[l.positive()]
	if !d.fixed() {
		return -1
	}
	v := d.value()
	if l.negated() {
		v = 1 - v
	}
	if v != 0 {
		return 1
	}
	return 0
}

// setLit forces a literal to the given truth value. Reports false on
// wipeout.
func (self domainStore) setLit(l VarIndex, truth bool) bool {
	v := int64(0)
	if truth != l.negated() {
		v = 1
	}
	d := &self[l.positive()]
	d.assign(v)
	return !d.empty()
}

// exprBounds computes the reachable [lo, hi] of a linear expression under
// the current domains.
func (self domainStore) exprBounds(e *LinearExpr) (int64, int64) {
	lo, hi := e.offset, e.offset
	for _, t := range e.terms {
		d := &self[t.v]
		if t.coeff >= 0 {
			lo += t.coeff * d.lo
			hi += t.coeff * d.hi
		} else {
			lo += t.coeff * d.hi
			hi += t.coeff * d.lo
		}
	}
	return lo, hi
}

// exprValue evaluates a fully fixed expression.
func (self domainStore) exprValue(e *LinearExpr) int64 {
	out := e.offset
	for _, t := range e.terms {
		out += t.coeff * self[t.v].value()
	}
	return out
}
