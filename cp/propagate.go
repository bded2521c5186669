package cp

// Propagation engine: runs every constraint's filtering rule to fixpoint
// over a domain store. Round robin without watch lists, model sizes here are
// tens of variables per constraint and the fixpoint settles in a handful of
// rounds.

const enumerateLimit = 4096 // max domain size we enumerate during filtering

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}

type engine struct {
	m    *Model
	doms domainStore
}

func newEngine(m *Model) *engine {
	return &engine{
		m:    m,
		doms: newDomainStore(m),
	}
}

func (self *engine) fork() *engine {
	return &engine{
		m:    self.m,
		doms: self.doms.clone(),
	}
}

// enforcementState folds the enforcement literals of a constraint:
// 1 all true (active), 0 at least one false (inactive), -1 pending.
func (self *engine) enforcementState(c *conData) int {
	out := 1
	for _, l := range c.enforce {
		switch self.doms.litState(l) {
		case 0:
			return 0
		case -1:
			out = -1
		}
	}
	return out
}

// failEnforcement handles an impossible constraint that is not yet active:
// when exactly one enforcement literal is unfixed, its truth is forced to
// false (contrapositive), otherwise nothing can be deduced yet.
func (self *engine) failEnforcement(c *conData) (bool, bool) {
	unfixed := VarIndex(0)
	count := 0
	for _, l := range c.enforce {
		if self.doms.litState(l) == -1 {
			unfixed = l
			count++
		}
	}
	if count != 1 {
		return true, false
	}
	if !self.doms.setLit(unfixed, false) {
		return false, false
	}
	return true, true
}

func (self *engine) propagate() bool {
	for {
		changed := false
		for i := range self.m.cons {
			ok, ch := self.propagateCon(&self.m.cons[i])
			if !ok {
				return false
			}
			changed = changed || ch
		}
		if !changed {
			return true
		}
	}
}

func (self *engine) propagateCon(c *conData) (bool, bool) {
	switch c.kind {
	case conLinear:
		return self.propagateLinear(c)
	case conNotEqual:
		return self.propagateNotEqual(c)
	case conMaxEquality:
		return self.propagateMax(c)
	case conCumulative:
		return self.propagateCumulative(c)
	default:
		// unreachable, the builder only emits the kinds above
		return false, false
	}
}

// ----------------------------------------------------------------------------
// linear: lo <= expr <= hi

func (self *engine) propagateLinear(c *conData) (bool, bool) {
	state := self.enforcementState(c)
	if state == 0 {
		return true, false
	}

	exprLo, exprHi := self.doms.exprBounds(c.expr)
	impossible := exprLo > c.hi || exprHi < c.lo

	if state == -1 {
		if impossible {
			return self.failEnforcement(c)
		}
		return true, false
	}

	if impossible {
		return false, false
	}

	changed := false
	for _, t := range c.expr.terms {
		if t.coeff == 0 {
			continue
		}
		d := &self.doms[t.v]

		// bounds of the expression without this term
		var contribLo, contribHi int64
		if t.coeff > 0 {
			contribLo = t.coeff * d.lo
			contribHi = t.coeff * d.hi
		} else {
			contribLo = t.coeff * d.hi
			contribHi = t.coeff * d.lo
		}
		restLo := exprLo - contribLo
		restHi := exprHi - contribHi

		// lo - restHi <= coeff*x <= hi - restLo
		var newLo, newHi int64
		if t.coeff > 0 {
			newLo = ceilDiv(c.lo-restHi, t.coeff)
			newHi = floorDiv(c.hi-restLo, t.coeff)
		} else {
			newLo = ceilDiv(restLo-c.hi, -t.coeff)
			newHi = floorDiv(restHi-c.lo, -t.coeff)
		}

		ch := d.tightenLo(newLo)
		ch = d.tightenHi(newHi) || ch
		if d.empty() {
			return false, false
		}
		if ch {
			// refresh for the remaining terms
			exprLo, exprHi = self.doms.exprBounds(c.expr)
			changed = true
		}
	}
	return true, changed
}

// ----------------------------------------------------------------------------
// not-equal: expr != forbidden

func (self *engine) propagateNotEqual(c *conData) (bool, bool) {
	state := self.enforcementState(c)
	if state == 0 {
		return true, false
	}

	exprLo, exprHi := self.doms.exprBounds(c.expr)
	violated := exprLo == exprHi && exprLo == c.forbidden

	if state == -1 {
		if violated {
			return self.failEnforcement(c)
		}
		return true, false
	}

	if violated {
		return false, false
	}

	// value removal only for single variable expressions, wider ones are
	// handled by the conflict check alone
	if len(c.expr.terms) != 1 {
		return true, false
	}
	t := c.expr.terms[0]
	if t.coeff == 0 {
		return true, false
	}
	rhs := c.forbidden - c.expr.offset
	if rhs%t.coeff != 0 {
		return true, false
	}
	v := rhs / t.coeff
	d := &self.doms[t.v]
	ch := d.removeValue(v)
	if d.empty() {
		return false, false
	}
	return true, ch
}

// ----------------------------------------------------------------------------
// max-equality: target == max(args)

func (self *engine) propagateMax(c *conData) (bool, bool) {
	td := &self.doms[c.target]
	maxLo := int64(-1) << 62
	maxHi := int64(-1) << 62
	for _, a := range c.args {
		d := &self.doms[a]
		if d.lo > maxLo {
			maxLo = d.lo
		}
		if d.hi > maxHi {
			maxHi = d.hi
		}
	}

	changed := td.tightenLo(maxLo)
	changed = td.tightenHi(maxHi) || changed
	if td.empty() {
		return false, false
	}

	for _, a := range c.args {
		d := &self.doms[a]
		if d.tightenHi(td.hi) {
			changed = true
		}
		if d.empty() {
			return false, false
		}
	}
	return true, changed
}

// ----------------------------------------------------------------------------
// cumulative

// Time-table filtering with compulsory parts. For each interval the window
// [lst, est+size-1] must be occupied under every start choice; the summed
// profile of those windows both conflicts against the capacity upper bound
// and lifts the capacity lower bound, which is what drives a minimized
// capacity variable. Start values whose placement would push the profile
// over capacity are pruned.
func (self *engine) propagateCumulative(c *conData) (bool, bool) {
	capd := &self.doms[c.capacity]
	changed := false

	// build the compulsory profile
	profile := make(map[int64]int64)
	type window struct {
		a, b int64 // inclusive compulsory range, a > b means none
	}
	wins := make([]window, len(c.intervals))
	for i, ivIdx := range c.intervals {
		iv := &self.m.intervals[ivIdx]
		sd := &self.doms[iv.start]
		est, lst := sd.lo, sd.hi
		a, b := lst, est+iv.size-1
		wins[i] = window{a: a, b: b}
		if a > b {
			continue
		}
		dem := c.demands[i]
		for t := a; t <= b; t++ {
			profile[t] += dem
		}
	}

	peak := int64(0)
	for _, v := range profile {
		if v > peak {
			peak = v
		}
	}

	if peak > capd.hi {
		return false, false
	}
	if capd.tightenLo(peak) {
		changed = true
	}

	// prune start values which cannot fit under the capacity upper bound
	capHi := capd.hi
	for i, ivIdx := range c.intervals {
		iv := &self.m.intervals[ivIdx]
		sd := &self.doms[iv.start]
		if sd.fixed() || sd.size() > enumerateLimit {
			continue
		}
		dem := c.demands[i]
		if dem == 0 {
			continue
		}
		for s := sd.next(sd.lo); s <= sd.hi; s = sd.next(s + 1) {
			bad := false
			for t := s; t <= s+iv.size-1; t++ {
				own := int64(0)
				if wins[i].a <= t && t <= wins[i].b {
					own = dem
				}
				if profile[t]-own+dem > capHi {
					bad = true
					break
				}
			}
			if bad {
				if sd.removeValue(s) {
					changed = true
				}
				if sd.empty() {
					return false, false
				}
			}
		}
	}
	return true, changed
}
