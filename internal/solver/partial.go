package solver

import (
	"sort"

	"github.com/cppack/cppack/internal/ident"
)

// assignment is one entry of the partial solution's trail: a decision (a
// concrete candidate was chosen; cause nil) or a derivation (a term forced
// by unit propagation; cause set to the propagating incompatibility).
type assignment struct {
	t             term
	decisionLevel int
	cause         *incompatibility
	candidate     Candidate // decisions only
}

func (a assignment) isDecision() bool { return a.cause == nil }

// relation classifications of an incompatibility against the partial
// solution.
type relation int

const (
	relSatisfied relation = iota // every term holds: a conflict
	relAlmost                    // all but one hold; that one is undetermined
	relInconclusive
	relContradicted // some term cannot hold
)

// partial is the solver's trail of assignments plus, per package, the
// running intersection of every term assigned so far.
type partial struct {
	trail []assignment

	accum     map[ident.Name]term
	positive  map[ident.Name]bool // pkg has at least one positive assignment
	decisions map[ident.Name]Candidate
	level     int
}

func newPartial() *partial {
	return &partial{
		accum:     make(map[ident.Name]term),
		positive:  make(map[ident.Name]bool),
		decisions: make(map[ident.Name]Candidate),
	}
}

// accumFor returns the running constraint for pkg. A package nothing has
// constrained yet is unrestricted.
func (p *partial) accumFor(pkg ident.Name) term {
	if t, ok := p.accum[pkg]; ok {
		return t
	}
	return positiveTerm(pkg, fullSet())
}

func (p *partial) record(a assignment) {
	p.trail = append(p.trail, a)
	p.accum[a.t.pkg] = p.accumFor(a.t.pkg).intersect(a.t)
	if a.t.positive {
		p.positive[a.t.pkg] = true
	}
	if a.isDecision() {
		p.decisions[a.t.pkg] = a.candidate
	}
}

// decide appends a decision for c at a new decision level.
func (p *partial) decide(c Candidate) {
	p.level++
	p.record(assignment{
		t:             positiveTerm(c.ID.Name, singleton(point{v: c.ID.Version, rev: c.ID.PkgRev})),
		decisionLevel: p.level,
		candidate:     c,
	})
}

// derive appends a propagated term at the current decision level.
func (p *partial) derive(t term, cause *incompatibility) {
	p.record(assignment{t: t, decisionLevel: p.level, cause: cause})
}

// satisfies reports whether the accumulated assignments determine t to
// hold. An untouched package can neither satisfy nor contradict a term.
func (p *partial) satisfies(t term) bool {
	if _, ok := p.accum[t.pkg]; !ok {
		return false
	}
	return p.accumFor(t.pkg).satisfies(t)
}

func (p *partial) contradicts(t term) bool {
	if _, ok := p.accum[t.pkg]; !ok {
		return false
	}
	return p.accumFor(t.pkg).contradicts(t)
}

// relate classifies ic against the current trail. When the result is
// relAlmost, unsat is the single undetermined term.
func (p *partial) relate(ic *incompatibility) (rel relation, unsat term) {
	undetermined := 0
	for _, t := range ic.terms {
		switch {
		case p.contradicts(t):
			return relContradicted, term{}
		case !p.satisfies(t):
			undetermined++
			unsat = t
		}
	}
	switch undetermined {
	case 0:
		return relSatisfied, term{}
	case 1:
		return relAlmost, unsat
	}
	return relInconclusive, term{}
}

// satisfier returns the index of the earliest assignment such that the
// trail up to and including it satisfies every term of ic.
func (p *partial) satisfier(ic *incompatibility) int {
	return p.earliestSatisfying(ic, len(p.trail), -1)
}

// previousSatisfierLevel returns the decision level of the latest
// assignment, other than the satisfier itself, that the satisfaction of ic
// still depends on; 0 when the satisfier alone (plus nothing) suffices.
func (p *partial) previousSatisfierLevel(ic *incompatibility, satisfier int) int {
	idx := p.earliestSatisfying(ic, satisfier, satisfier)
	if idx < 0 {
		return 0
	}
	return p.trail[idx].decisionLevel
}

// earliestSatisfying replays the trail's first limit entries, always
// including the assignment at index extra (when >= 0), and returns the
// index at which ic first became satisfied, or -1 if extra alone satisfies
// it (or it never does within limit).
func (p *partial) earliestSatisfying(ic *incompatibility, limit, extra int) int {
	accum := make(map[ident.Name]term, len(ic.terms))
	get := func(pkg ident.Name) term {
		if t, ok := accum[pkg]; ok {
			return t
		}
		return positiveTerm(pkg, fullSet())
	}
	sat := func() bool {
		for _, t := range ic.terms {
			at, ok := accum[t.pkg]
			if !ok || !at.satisfies(t) {
				return false
			}
		}
		return true
	}

	if extra >= 0 {
		a := p.trail[extra]
		accum[a.t.pkg] = get(a.t.pkg).intersect(a.t)
		if sat() {
			return -1
		}
	}
	for i := 0; i < limit; i++ {
		if i == extra {
			continue
		}
		a := p.trail[i]
		if _, relevant := ic.termFor(a.t.pkg); !relevant {
			continue
		}
		accum[a.t.pkg] = get(a.t.pkg).intersect(a.t)
		if sat() {
			return i
		}
	}
	return -1
}

// backtrack discards every assignment above level and rebuilds the
// accumulated state.
func (p *partial) backtrack(level int) {
	kept := p.trail
	for len(kept) > 0 && kept[len(kept)-1].decisionLevel > level {
		kept = kept[:len(kept)-1]
	}
	p.trail = kept
	p.level = level
	p.accum = make(map[ident.Name]term)
	p.positive = make(map[ident.Name]bool)
	p.decisions = make(map[ident.Name]Candidate)
	for _, a := range kept {
		p.accum[a.t.pkg] = p.accumFor(a.t.pkg).intersect(a.t)
		if a.t.positive {
			p.positive[a.t.pkg] = true
		}
		if a.isDecision() {
			p.decisions[a.t.pkg] = a.candidate
		}
	}
}

// nextUndecided returns the lexicographically smallest package that some
// assignment positively requires but that has no decision yet. Choosing in
// name order rather than map order keeps solver traces reproducible.
func (p *partial) nextUndecided() (ident.Name, bool) {
	var names []ident.Name
	for pkg := range p.positive {
		if _, decided := p.decisions[pkg]; !decided {
			names = append(names, pkg)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names[0], true
}
