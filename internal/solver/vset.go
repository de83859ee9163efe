package solver

import (
	"strconv"
	"strings"

	"github.com/cppack/cppack/internal/ident"
)

// point is one coordinate of the solver's decision space: a semver version
// plus a pkg-rev, ordered lexicographically. Carrying the rev in the point
// lets an incompatibility ban a single revision of a version (say, because
// it lacks a requested library) without also banning a sibling revision
// that declares it.
type point struct {
	v   ident.Version
	rev int
}

func (p point) compare(o point) int {
	if c := p.v.Compare(o.v); c != 0 {
		return c
	}
	switch {
	case p.rev < o.rev:
		return -1
	case p.rev > o.rev:
		return 1
	}
	return 0
}

func (p point) String() string {
	if p.rev > 0 {
		return p.v.String() + "~" + strconv.Itoa(p.rev)
	}
	return p.v.String()
}

// span is one contiguous run of points. A zero lo means unbounded below,
// a zero hi means unbounded above; loOpen/hiClosed flip the default
// inclusive-low/exclusive-high convention, which complementing a closed
// singleton requires.
type span struct {
	lo       point // zero Version means -infinity
	hi       point // zero Version means +infinity
	loOpen   bool
	hiClosed bool
}

func (s span) loUnbounded() bool { return s.lo.v.IsZero() }
func (s span) hiUnbounded() bool { return s.hi.v.IsZero() }

// cmpLo orders lower bounds: -infinity first, then by point, a closed bound
// before an open one at the same point.
func cmpLo(a, b span) int {
	switch {
	case a.loUnbounded() && b.loUnbounded():
		return 0
	case a.loUnbounded():
		return -1
	case b.loUnbounded():
		return 1
	}
	if c := a.lo.compare(b.lo); c != 0 {
		return c
	}
	switch {
	case a.loOpen == b.loOpen:
		return 0
	case b.loOpen:
		return -1
	}
	return 1
}

// cmpHi orders upper bounds: +infinity last, an open bound before a closed
// one at the same point.
func cmpHi(a, b span) int {
	switch {
	case a.hiUnbounded() && b.hiUnbounded():
		return 0
	case a.hiUnbounded():
		return 1
	case b.hiUnbounded():
		return -1
	}
	if c := a.hi.compare(b.hi); c != 0 {
		return c
	}
	switch {
	case a.hiClosed == b.hiClosed:
		return 0
	case a.hiClosed:
		return 1
	}
	return -1
}

func (s span) empty() bool {
	if s.loUnbounded() || s.hiUnbounded() {
		return false
	}
	c := s.lo.compare(s.hi)
	if c > 0 {
		return true
	}
	if c == 0 {
		return s.loOpen || !s.hiClosed
	}
	return false
}

func (s span) contains(p point) bool {
	if !s.loUnbounded() {
		c := p.compare(s.lo)
		if c < 0 || (c == 0 && s.loOpen) {
			return false
		}
	}
	if !s.hiUnbounded() {
		c := p.compare(s.hi)
		if c > 0 || (c == 0 && !s.hiClosed) {
			return false
		}
	}
	return true
}

func (s span) String() string {
	if s.loUnbounded() && s.hiUnbounded() {
		return "any version"
	}
	if !s.loUnbounded() && !s.hiUnbounded() {
		if s.lo.compare(s.hi) == 0 {
			return "=" + s.lo.String()
		}
		// The rendering of setFromInterval's Exact case: every rev of one
		// version.
		if s.lo.v.Equal(s.hi.v) && s.lo.rev == 0 && s.hi.rev == maxRev {
			return "=" + s.lo.v.String()
		}
	}
	var parts []string
	if !s.loUnbounded() {
		op := ">="
		if s.loOpen {
			op = ">"
		}
		parts = append(parts, op+s.lo.String())
	}
	if !s.hiUnbounded() {
		op := "<"
		if s.hiClosed {
			op = "<="
		}
		parts = append(parts, op+s.hi.String())
	}
	return strings.Join(parts, " ")
}

// vset is a union of disjoint, ascending spans: the solver's constraint
// algebra. The zero vset is the empty set; fullSet() is "any version".
type vset []span

func fullSet() vset { return vset{span{}} }

func singleton(p point) vset {
	return vset{span{lo: p, hi: p, hiClosed: true}}
}

// setFromInterval widens an ident.Interval (which is rev-agnostic) into the
// point space: [low, high) admits every rev of every version in range, and
// an Exact interval admits every rev of exactly its version.
func setFromInterval(iv ident.Interval) vset {
	if iv.Exact {
		return vset{span{
			lo:       point{v: iv.Low},
			hi:       point{v: iv.Low, rev: maxRev},
			hiClosed: true,
		}}
	}
	s := span{lo: point{v: iv.Low}}
	if !iv.High.IsZero() {
		s.hi = point{v: iv.High}
	}
	return vset{s}
}

// maxRev bounds the rev coordinate from above when an interval needs "every
// rev of version V"; pkg-revs are small integers in practice.
const maxRev = 1<<31 - 1

func (s vset) empty() bool { return len(s) == 0 }

func (s vset) contains(p point) bool {
	for _, sp := range s {
		if sp.contains(p) {
			return true
		}
	}
	return false
}

// intersect returns the set of points common to s and o.
func (s vset) intersect(o vset) vset {
	var out vset
	for _, a := range s {
		for _, b := range o {
			c := a
			if cmpLo(b, c) > 0 {
				c.lo, c.loOpen = b.lo, b.loOpen
			}
			if cmpHi(b, c) < 0 {
				c.hi, c.hiClosed = b.hi, b.hiClosed
			}
			if !c.empty() {
				out = append(out, c)
			}
		}
	}
	return out
}

// complement returns every point not in s. Spans are kept ascending and
// disjoint by construction, so the complement is the gaps between them.
func (s vset) complement() vset {
	if len(s) == 0 {
		return fullSet()
	}
	var out vset
	first := s[0]
	if !first.loUnbounded() {
		out = append(out, span{hi: first.lo, hiClosed: first.loOpen})
	}
	for i := 0; i < len(s)-1; i++ {
		gap := span{
			lo:       s[i].hi,
			loOpen:   s[i].hiClosed,
			hi:       s[i+1].lo,
			hiClosed: s[i+1].loOpen,
		}
		if !gap.empty() {
			out = append(out, gap)
		}
	}
	last := s[len(s)-1]
	if !last.hiUnbounded() {
		out = append(out, span{lo: last.hi, loOpen: last.hiClosed})
	}
	return out
}

// union returns every point in s or o, via De Morgan over the two
// operations already proven correct above.
func (s vset) union(o vset) vset {
	return s.complement().intersect(o.complement()).complement()
}

// subsetOf reports whether every point of s lies in o.
func (s vset) subsetOf(o vset) bool {
	return s.intersect(o.complement()).empty()
}

// disjoint reports whether s and o share no point.
func (s vset) disjoint(o vset) bool {
	return s.intersect(o).empty()
}

func (s vset) String() string {
	if len(s) == 0 {
		return "no version"
	}
	parts := make([]string, len(s))
	for i, sp := range s {
		parts[i] = sp.String()
	}
	return strings.Join(parts, " or ")
}
