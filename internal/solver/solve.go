package solver

import (
	"sort"

	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/manifest"
)

// Solve resolves root (typically a project manifest's package-level
// dependencies) against src, returning one chosen revision per transitively
// required package name.
//
// The algorithm is PubGrub-style conflict-driven clause learning over
// (version, pkg-rev) decisions. Requirements and candidate-set gaps are
// expressed as incompatibilities; unit propagation forces every assignment
// an incompatibility reduces to; a satisfied incompatibility is a conflict,
// resolved by deriving a new incompatibility from its parents and
// backjumping to the decision level where the derivation becomes unit.
// When no forced assignment remains, the highest allowed (version, pkg-rev)
// of the lexicographically smallest undecided package is tried next; the
// candidate order src supplies (and, across repositories, CatalogSource's
// merge) is what realizes the remaining tie-break rules.
func Solve(root []manifest.Dependency, src CandidateSource) (*Result, error) {
	s := &solveCtx{
		src:       src,
		partial:   newPartial(),
		byPkg:     make(map[ident.Name][]*incompatibility),
		seen:      make(map[string]bool),
		depsAdded: make(map[ident.PkgID]bool),
	}

	for _, d := range root {
		s.addIncompat(&incompatibility{
			terms: []term{{pkg: d.Expr.Name, set: setFromInterval(d.Expr.Interval)}},
			cause: rootCause{expr: d.Expr},
		})
		s.registerLacking(term{}, d.Expr)
	}
	for _, d := range root {
		if err := s.propagate(d.Expr.Name); err != nil {
			return nil, err
		}
	}

	for {
		pkg, ok := s.partial.nextUndecided()
		if !ok {
			break
		}
		if err := s.decideOne(pkg); err != nil {
			return nil, err
		}
	}
	return s.result(root), nil
}

type solveCtx struct {
	src       CandidateSource
	partial   *partial
	byPkg     map[ident.Name][]*incompatibility
	seen      map[string]bool
	depsAdded map[ident.PkgID]bool
	attempts  int
}

// addIncompat registers ic, indexing it under every package it mentions.
// Re-registering an identical incompatibility (the same external fact
// re-encountered after a backjump) is a no-op.
func (s *solveCtx) addIncompat(ic *incompatibility) {
	k := ic.key()
	if s.seen[k] {
		return
	}
	s.seen[k] = true
	for _, t := range ic.terms {
		s.byPkg[t.pkg] = append(s.byPkg[t.pkg], ic)
	}
}

// registerDeps adds the dependency incompatibilities of candidate c: for
// every package-level dependency expression, "c AND not (dep in range)"
// cannot hold, plus one incompatibility per in-range candidate of the
// dependency that lacks a library the expression's "using" list requires.
func (s *solveCtx) registerDeps(c Candidate) {
	if s.depsAdded[c.ID] {
		return
	}
	s.depsAdded[c.ID] = true
	self := term{
		pkg:      c.ID.Name,
		set:      singleton(point{v: c.ID.Version, rev: c.ID.PkgRev}),
		positive: true,
	}
	for _, d := range c.Manifest.Dependencies {
		if d.Expr.Name == c.ID.Name {
			// A package depending on itself is rejected at manifest
			// validation; skipping here keeps every incompatibility to one
			// term per package.
			continue
		}
		s.addIncompat(&incompatibility{
			terms: []term{
				self,
				{pkg: d.Expr.Name, set: setFromInterval(d.Expr.Interval)},
			},
			cause: depCause{depender: c.ID, expr: d.Expr},
		})
		s.registerLacking(self, d.Expr)
	}
}

// registerLacking scans expr's in-range candidates for ones that do not
// declare every library expr requires, recording "package p@v lacks library
// L" for each. guard is the depender's own term, or the zero term for a
// root requirement (which holds unconditionally).
func (s *solveCtx) registerLacking(guard term, expr ident.DepExpr) {
	depSet := setFromInterval(expr.Interval)
	uses := expr.RequiredUses()
	for _, c := range s.src.Versions(expr.Name) {
		pt := point{v: c.ID.Version, rev: c.ID.PkgRev}
		if !depSet.contains(pt) {
			continue
		}
		missing := missingLibs(c.Manifest, uses)
		if len(missing) == 0 {
			continue
		}
		terms := []term{{pkg: expr.Name, set: singleton(pt), positive: true}}
		if guard.pkg != "" {
			terms = append([]term{guard}, terms...)
		}
		s.addIncompat(&incompatibility{
			terms: terms,
			cause: noVersionsCause{pkg: expr.Name, lacksLib: missing[0], banned: c.ID},
		})
	}
}

// missingLibs returns, sorted, the names in required that m declares no
// library for.
func missingLibs(m *manifest.Manifest, required []string) []string {
	var missing []string
	for _, name := range required {
		n, err := ident.ParseName(name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		if _, ok := m.Library(n); !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// propagate performs unit propagation starting from first: every
// incompatibility reduced to a single undetermined term forces that term's
// negation, and a fully satisfied incompatibility triggers conflict
// resolution. Returns an error only when resolution derives the root
// contradiction.
func (s *solveCtx) propagate(first ident.Name) error {
	changed := []ident.Name{first}
	for len(changed) > 0 {
		pkg := changed[0]
		changed = changed[1:]
		ics := s.byPkg[pkg]
		for i := len(ics) - 1; i >= 0; i-- {
			ic := ics[i]
			rel, unsat := s.partial.relate(ic)
			switch rel {
			case relSatisfied:
				learned, err := s.resolveConflict(ic)
				if err != nil {
					return err
				}
				rel2, unsat2 := s.partial.relate(learned)
				if rel2 != relAlmost {
					return s.fail(learned)
				}
				s.partial.derive(unsat2.negate(), learned)
				// Backjumping invalidated the rest of this pass; restart
				// propagation from the newly derived term's package.
				changed = []ident.Name{unsat2.pkg}
				i = -1
			case relAlmost:
				s.partial.derive(unsat.negate(), ic)
				changed = append(changed, unsat.pkg)
			}
		}
	}
	return nil
}

// resolveConflict derives new incompatibilities by resolution until one is
// found that will become unit after backjumping, then backjumps and returns
// it. An incompatibility resolved down to no terms at all is the root
// contradiction: no solution exists.
func (s *solveCtx) resolveConflict(ic *incompatibility) (*incompatibility, error) {
	for {
		if len(ic.terms) == 0 {
			return nil, s.fail(ic)
		}
		satIdx := s.partial.satisfier(ic)
		if satIdx < 0 {
			return nil, s.fail(ic)
		}
		satisfier := s.partial.trail[satIdx]
		t, _ := ic.termFor(satisfier.t.pkg)
		prevLevel := s.partial.previousSatisfierLevel(ic, satIdx)

		if satisfier.isDecision() || prevLevel < satisfier.decisionLevel {
			s.partial.backtrack(prevLevel)
			if ic.derived() {
				s.addIncompat(ic)
			}
			return ic, nil
		}

		// Resolve ic with the satisfier's cause: drop the satisfier
		// package's terms, merge the rest (same-package terms unify by
		// union), and when the satisfier only partially satisfies t, keep
		// the unsatisfied remainder.
		merged := make(map[ident.Name]term)
		var order []ident.Name
		add := func(tm term) {
			if tm.pkg == satisfier.t.pkg {
				return
			}
			if prev, ok := merged[tm.pkg]; ok {
				merged[tm.pkg] = prev.union(tm)
			} else {
				merged[tm.pkg] = tm
				order = append(order, tm.pkg)
			}
		}
		for _, tm := range ic.terms {
			add(tm)
		}
		for _, tm := range satisfier.cause.terms {
			add(tm)
		}
		terms := make([]term, 0, len(order)+1)
		for _, pkg := range order {
			terms = append(terms, merged[pkg])
		}
		if !satisfier.t.satisfies(t) {
			terms = append(terms, satisfier.t.intersect(t.negate()).negate())
		}
		ic = &incompatibility{
			terms: terms,
			cause: conflictCause{left: ic, right: satisfier.cause},
		}
	}
}

// decideOne tries the highest allowed candidate of pkg. With no candidate
// left in pkg's accumulated range, a no-versions incompatibility is added
// instead; with a candidate whose dependency incompatibilities would be
// immediately violated, the incompatibilities are added without the
// decision. Either way propagation runs before the next decision.
func (s *solveCtx) decideOne(pkg ident.Name) error {
	accum := s.partial.accumFor(pkg)
	allowed := accum.allowed()

	var chosen *Candidate
	cands := s.src.Versions(pkg)
	for i := range cands {
		pt := point{v: cands[i].ID.Version, rev: cands[i].ID.PkgRev}
		if allowed.contains(pt) {
			chosen = &cands[i]
			break
		}
	}
	if chosen == nil {
		s.addIncompat(&incompatibility{
			terms: []term{accum},
			cause: noVersionsCause{pkg: pkg},
		})
		return s.propagate(pkg)
	}

	s.attempts++
	s.registerDeps(*chosen)

	decTerm := positiveTerm(pkg, singleton(point{v: chosen.ID.Version, rev: chosen.ID.PkgRev}))
	if !s.wouldConflict(pkg, decTerm) {
		s.partial.decide(*chosen)
	}
	return s.propagate(pkg)
}

// wouldConflict reports whether deciding decTerm would fully satisfy some
// known incompatibility touching pkg.
func (s *solveCtx) wouldConflict(pkg ident.Name, decTerm term) bool {
	hyp := s.partial.accumFor(pkg).intersect(decTerm)
	for _, ic := range s.byPkg[pkg] {
		sat := true
		for _, t := range ic.terms {
			if t.pkg == pkg {
				if !hyp.satisfies(t) {
					sat = false
					break
				}
				continue
			}
			if !s.partial.satisfies(t) {
				sat = false
				break
			}
		}
		if sat {
			return true
		}
	}
	return false
}

// fail renders ic's derivation graph as a linearized explanation, wrapped
// in the failure's marker.
func (s *solveCtx) fail(ic *incompatibility) error {
	return explainFailure(ic)
}

// result assembles the final assignment map. A package's enabled libraries
// are the union of every "using" request from a dependency expression that
// reaches it in the solution: the root requirements plus the package-level
// dependencies of every decided candidate.
func (s *solveCtx) result(root []manifest.Dependency) *Result {
	uses := make(map[ident.Name]map[string]bool)
	addUses := func(expr ident.DepExpr) {
		c, ok := s.partial.decisions[expr.Name]
		if !ok || !expr.Interval.Contains(c.ID.Version) {
			return
		}
		m := uses[expr.Name]
		if m == nil {
			m = make(map[string]bool)
			uses[expr.Name] = m
		}
		for _, u := range expr.RequiredUses() {
			m[u] = true
		}
	}
	for _, d := range root {
		addUses(d.Expr)
	}
	for _, c := range s.partial.decisions {
		for _, d := range c.Manifest.Dependencies {
			addUses(d.Expr)
		}
	}

	assignments := make(map[ident.Name]Assignment, len(s.partial.decisions))
	for name, c := range s.partial.decisions {
		assignments[name] = Assignment{
			ID:          c.ID,
			Manifest:    c.Manifest,
			EnabledLibs: sortedKeys(uses[name]),
		}
	}
	return &Result{Assignments: assignments, Attempts: s.attempts}
}

// sortedKeys returns the keys of a string set in sorted order, used wherever
// a map-derived list needs to come out in a deterministic order.
func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
