package cp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Terminal solver status. Optimal and Feasible both carry a usable
// assignment, Infeasible is a proof that no assignment exists, Unknown
// means the search budget ran out before either proof.
type Status int

const (
	Unknown Status = iota
	Optimal
	Feasible
	Infeasible
)

func (self Status) String() string {
	switch self {
	case Optimal:
		return "OPTIMAL"
	case Feasible:
		return "FEASIBLE"
	case Infeasible:
		return "INFEASIBLE"
	default:
		return "UNKNOWN"
	}
}

// Result of one solve attempt. Values are readable only when the status is
// Optimal or Feasible, the second return of the accessors reports that.
type Result struct {
	status       Status
	values       []int64
	objective    int64
	hasObjective bool
	branches     int64
	wallTime     time.Duration
}

func (self *Result) Status() Status          { return self.status }
func (self *Result) Branches() int64         { return self.branches }
func (self *Result) WallTime() time.Duration { return self.wallTime }

func (self *Result) Value(v IntVar) (int64, bool) {
	if self.values == nil {
		return 0, false
	}
	return self.values[v.index], true
}

func (self *Result) BoolValue(b BoolVar) (bool, bool) {
	if self.values == nil {
		return false, false
	}
	val := self.values[b.index.positive()]
	if b.index.negated() {
		val = 1 - val
	}
	return val != 0, true
}

func (self *Result) ObjectiveValue() (int64, bool) {
	if self.values == nil || !self.hasObjective {
		return 0, false
	}
	return self.objective, true
}

// Solver drives the search over one model. It is the only stage with
// internal parallelism: Workers bounded search goroutines share one
// incumbent. A Solver value is reusable across solves but one Solve call is
// a single blocking, non reentrant operation, cancelled only through the
// context deadline.
type Solver struct {
	// Workers is the parallel search worker count, values < 1 mean 1.
	Workers int

	// LogSearchProgress logs every incumbent improvement.
	LogSearchProgress bool

	// ProbingLevel controls root node singleton probing: 0 off, 1 one
	// pass, 2 until fixpoint.
	ProbingLevel int

	// Logger defaults to the logrus standard logger.
	Logger *logrus.Logger
}

func (self *Solver) logger() *logrus.Logger {
	if self.Logger != nil {
		return self.Logger
	}
	return logrus.StandardLogger()
}

// shared is the cross worker search state: the incumbent under a mutex and
// the stop conditions.
type shared struct {
	mu           sync.Mutex
	best         []int64
	bestObj      int64
	hasIncumbent bool

	objective *LinearExpr // minimization form, nil for satisfaction
	stop      bool        // satisfaction search found its solution
	timedOut  bool
	branches  int64

	log         *logrus.Entry
	logProgress bool
}

func (self *shared) shouldStop() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.stop || self.timedOut
}

// bound returns the current branch-and-bound cutoff: any subtree whose
// objective lower bound reaches it cannot improve the incumbent.
func (self *shared) bound() (int64, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.bestObj, self.hasIncumbent
}

func (self *shared) offerSolution(doms domainStore) {
	values := make([]int64, len(doms))
	for i := range doms {
		values[i] = doms[i].value()
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	if self.objective == nil {
		if !self.hasIncumbent {
			self.best = values
			self.hasIncumbent = true
		}
		self.stop = true
		return
	}
	obj := doms.exprValue(self.objective)
	if self.hasIncumbent && obj >= self.bestObj {
		return
	}
	self.best = values
	self.bestObj = obj
	self.hasIncumbent = true
	if self.logProgress {
		self.log.WithField("objective", obj).Info("new incumbent")
	}
}

// ----------------------------------------------------------------------------
// search

type searcher struct {
	sh      *shared
	ctx     context.Context
	counter int
}

// dfs explores one subtree. Returns true when the subtree was exhausted,
// false when the search gave up (deadline or satisfaction stop).
func (self *searcher) dfs(eng *engine) bool {
	self.counter++
	if self.ctx.Err() != nil {
		self.sh.mu.Lock()
		self.sh.timedOut = true
		self.sh.mu.Unlock()
		return false
	}
	if self.counter%16 == 0 && self.sh.shouldStop() {
		return false
	}
	self.sh.mu.Lock()
	self.sh.branches++
	self.sh.mu.Unlock()

	if !eng.propagate() {
		return true
	}

	if self.sh.objective != nil {
		if best, ok := self.sh.bound(); ok {
			objLo, _ := eng.doms.exprBounds(self.sh.objective)
			if objLo >= best {
				return true
			}
		}
	}

	v := pickBranchVar(eng.doms)
	if v < 0 {
		self.sh.offerSolution(eng.doms)
		// keep searching for improvements unless this was satisfaction
		return self.sh.objective != nil
	}

	d := &eng.doms[v]
	if d.size() <= enumerateLimit {
		// left: x == lowest candidate, right: x != it
		val := d.next(d.lo)

		left := eng.fork()
		left.doms[v].assign(val)
		if !self.dfs(left) {
			return false
		}

		right := eng.fork()
		right.doms[v].removeValue(val)
		if right.doms[v].empty() {
			return true
		}
		return self.dfs(right)
	}

	// wide derived domain, bisect toward the lower half first since every
	// minimized quantity here is bounded from below
	mid := d.lo + (d.hi-d.lo)/2

	left := eng.fork()
	left.doms[v].tightenHi(mid)
	if !self.dfs(left) {
		return false
	}

	right := eng.fork()
	right.doms[v].tightenLo(mid + 1)
	return self.dfs(right)
}

// pickBranchVar selects the unfixed variable with the smallest domain
// (first fail), -1 when everything is fixed.
func pickBranchVar(doms domainStore) VarIndex {
	best := VarIndex(-1)
	var bestSize int64
	for i := range doms {
		d := &doms[i]
		if d.fixed() {
			continue
		}
		sz := d.size()
		if best < 0 || sz < bestSize {
			best = VarIndex(i)
			bestSize = sz
		}
	}
	return best
}

// ----------------------------------------------------------------------------
// probing

// probe runs root node singleton probing: tentatively assign each candidate
// value of each enumerable variable, propagate, and strip the values that
// fail. Level 2 repeats until nothing moves. This is the constraint-probing
// aggressiveness knob, it trades model load time for a smaller search tree.
func probe(root *engine, level int) bool {
	if level <= 0 {
		return true
	}
	rounds := 1
	if level >= 2 {
		rounds = 8
	}
	for r := 0; r < rounds; r++ {
		changed := false
		for i := range root.doms {
			d := &root.doms[i]
			if d.fixed() || d.size() > 512 {
				continue
			}
			for v := d.next(d.lo); v <= d.hi; v = d.next(v + 1) {
				trial := root.fork()
				trial.doms[i].assign(v)
				if !trial.propagate() {
					if d.removeValue(v) {
						changed = true
					}
					if d.empty() {
						return false
					}
				}
			}
			if changed && !root.propagate() {
				return false
			}
		}
		if !changed {
			break
		}
	}
	return true
}

// ----------------------------------------------------------------------------
// driver

// Solve runs the search until optimality, infeasibility, deadline or
// cancellation. The model must pass Validate, a broken model is rejected
// before any search effort.
func (self *Solver) Solve(ctx context.Context, m *Model) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}

	start := time.Now()
	workers := self.Workers
	if workers < 1 {
		workers = 1
	}

	log := self.logger().WithFields(logrus.Fields{
		"solve_id": uuid.NewString(),
		"workers":  workers,
		"probing":  self.ProbingLevel,
		"vars":     m.NumVars(),
		"cons":     m.NumConstraints(),
	})
	if self.LogSearchProgress {
		log.Info("solve started")
	}

	// normalize the objective to minimization
	var objective *LinearExpr
	objSign := int64(1)
	if m.objective != nil {
		objective = m.objective.clone()
		if m.maximize {
			objSign = -1
			for i := range objective.terms {
				objective.terms[i].coeff = -objective.terms[i].coeff
			}
			objective.offset = -objective.offset
		}
	}

	sh := &shared{
		objective:   objective,
		log:         log,
		logProgress: self.LogSearchProgress,
	}

	finish := func(status Status) *Result {
		out := &Result{
			status:   status,
			branches: sh.branches,
			wallTime: time.Since(start),
		}
		if status == Optimal || status == Feasible {
			out.values = sh.best
			if objective != nil {
				out.hasObjective = true
				out.objective = objSign * sh.bestObj
			}
		}
		if self.LogSearchProgress {
			log.WithFields(logrus.Fields{
				"status":    out.status.String(),
				"branches":  out.branches,
				"wall_time": out.wallTime,
			}).Info("solve finished")
		}
		return out
	}

	root := newEngine(m)
	if !root.propagate() || !probe(root, self.ProbingLevel) {
		return finish(Infeasible), nil
	}

	exhausted := self.runSearch(ctx, root, sh, workers)

	sh.mu.Lock()
	timedOut := sh.timedOut
	hasIncumbent := sh.hasIncumbent
	satisfied := sh.stop && objective == nil
	sh.mu.Unlock()

	switch {
	case satisfied:
		// satisfaction search stops at the first solution, which is as
		// good as any
		return finish(Optimal), nil
	case exhausted && hasIncumbent:
		return finish(Optimal), nil
	case exhausted:
		return finish(Infeasible), nil
	case timedOut && hasIncumbent:
		return finish(Feasible), nil
	default:
		return finish(Unknown), nil
	}
}

// runSearch splits the first branching variable's candidates across the
// workers, each exploring its own slice of the tree against the shared
// incumbent. Reports whether the whole tree was exhausted.
func (self *Solver) runSearch(
	ctx context.Context,
	root *engine,
	sh *shared,
	workers int,
) bool {
	v := pickBranchVar(root.doms)
	if v < 0 {
		sh.offerSolution(root.doms)
		return true
	}

	d := &root.doms[v]
	if workers == 1 || d.size() < 2 || d.size() > enumerateLimit {
		s := &searcher{sh: sh, ctx: ctx}
		return s.dfs(root)
	}

	var candidates []int64
	for val := d.next(d.lo); val <= d.hi; val = d.next(val + 1) {
		candidates = append(candidates, val)
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	results := make([]bool, workers)
	wg := sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		slice := make(map[int64]bool)
		for i := w; i < len(candidates); i += workers {
			slice[candidates[i]] = true
		}

		sub := root.fork()
		sd := &sub.doms[v]
		for _, val := range candidates {
			if !slice[val] {
				sd.removeValue(val)
			}
		}

		wg.Add(1)
		go func(w int, sub *engine) {
			defer wg.Done()
			s := &searcher{sh: sh, ctx: ctx}
			results[w] = s.dfs(sub)
		}(w, sub)
	}
	wg.Wait()

	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}
