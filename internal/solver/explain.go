package solver

import (
	"fmt"
	"strings"

	"github.com/cppack/cppack"
)

// explainFailure walks the derivation graph under the root contradiction
// and linearizes it into prose: each derived incompatibility becomes one
// sentence built from its two parents, parents first, with sub-derivations
// shared between branches referenced by line number instead of
// re-explained. The marker is MissingUsingDeclaration when the
// contradiction rests on a candidate lacking a requested library,
// NoDependencySolution otherwise.
func explainFailure(root *incompatibility) error {
	r := &reporter{
		refs: make(map[*incompatibility]int),
		nums: make(map[*incompatibility]int),
		done: make(map[*incompatibility]bool),
	}
	r.countRefs(root)
	if root.derived() {
		r.visit(root)
	} else {
		r.lines = append(r.lines, fmt.Sprintf("Because %s, version solving failed.", root))
	}

	marker := cppack.MarkerNoDependencySoln
	if lacksLibrary(root, make(map[*incompatibility]bool)) {
		marker = cppack.MarkerMissingUsingDecl
	}
	return cppack.Errorf(marker, "%s", strings.Join(r.lines, "\n"))
}

// lacksLibrary reports whether any external incompatibility in ic's
// derivation records a candidate missing a requested library.
func lacksLibrary(ic *incompatibility, seen map[*incompatibility]bool) bool {
	if seen[ic] {
		return false
	}
	seen[ic] = true
	switch c := ic.cause.(type) {
	case noVersionsCause:
		return c.lacksLib != ""
	case conflictCause:
		return lacksLibrary(c.left, seen) || lacksLibrary(c.right, seen)
	}
	return false
}

type reporter struct {
	refs  map[*incompatibility]int // how often each derivation is a parent
	lines []string
	nums  map[*incompatibility]int // line number assigned to a shared derivation
	done  map[*incompatibility]bool
}

func (r *reporter) countRefs(ic *incompatibility) {
	cc, ok := ic.cause.(conflictCause)
	if !ok {
		return
	}
	for _, parent := range []*incompatibility{cc.left, cc.right} {
		if parent.derived() {
			r.refs[parent]++
			if r.refs[parent] == 1 {
				r.countRefs(parent)
			}
		}
	}
}

// visit emits the explanation of a derived incompatibility, parents first.
func (r *reporter) visit(ic *incompatibility) {
	cc := ic.cause.(conflictCause)
	left, right := cc.left, cc.right
	for _, parent := range []*incompatibility{left, right} {
		if parent.derived() && !r.done[parent] {
			r.visit(parent)
		}
	}

	var line string
	switch {
	case left.derived() && right.derived():
		line = fmt.Sprintf("So, because %s and %s, %s.", r.describe(left), r.describe(right), ic)
	case left.derived() || right.derived():
		derived, external := left, right
		if right.derived() {
			derived, external = right, left
		}
		line = fmt.Sprintf("And because %s and %s, %s.", r.describe(derived), r.describe(external), ic)
	default:
		line = fmt.Sprintf("Because %s and %s, %s.", r.describe(left), r.describe(right), ic)
	}

	if r.refs[ic] > 1 {
		n := len(r.lines) + 1
		r.nums[ic] = n
		line = fmt.Sprintf("(%d) %s", n, line)
	}
	r.lines = append(r.lines, line)
	r.done[ic] = true
}

// describe returns how to reference ic in a sentence: external
// incompatibilities state themselves; an already-explained derivation is
// referenced by its conclusion, plus its line number when one was assigned.
func (r *reporter) describe(ic *incompatibility) string {
	if n, ok := r.nums[ic]; ok {
		return fmt.Sprintf("%s (%d)", ic, n)
	}
	return ic.String()
}
