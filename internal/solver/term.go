package solver

import "github.com/cppack/cppack/internal/ident"

// term is a statement about one package: "pkg's version is in set"
// (positive) or "pkg's version is not in set" (negative). Incompatibilities
// are conjunctions of terms that cannot all hold; the partial solution is a
// sequence of terms that do hold.
type term struct {
	pkg      ident.Name
	set      vset
	positive bool
}

func positiveTerm(pkg ident.Name, set vset) term {
	return term{pkg: pkg, set: set, positive: true}
}

// allowed is the set of points for which t holds.
func (t term) allowed() vset {
	if t.positive {
		return t.set
	}
	return t.set.complement()
}

func (t term) negate() term {
	return term{pkg: t.pkg, set: t.set, positive: !t.positive}
}

// intersect is the term for which both t and o hold. Both terms must be
// about the same package.
func (t term) intersect(o term) term {
	switch {
	case t.positive && o.positive:
		return term{pkg: t.pkg, set: t.set.intersect(o.set), positive: true}
	case !t.positive && !o.positive:
		return term{pkg: t.pkg, set: t.set.union(o.set), positive: false}
	case t.positive:
		return term{pkg: t.pkg, set: t.set.intersect(o.set.complement()), positive: true}
	default:
		return term{pkg: t.pkg, set: o.set.intersect(t.set.complement()), positive: true}
	}
}

// union is the term for which t or o (or both) hold.
func (t term) union(o term) term {
	return t.negate().intersect(o.negate()).negate()
}

// satisfies reports whether t holding implies o holding: every point
// allowed by t is allowed by o.
func (t term) satisfies(o term) bool {
	return t.allowed().subsetOf(o.allowed())
}

// contradicts reports whether t holding makes o impossible: no point
// allowed by t is allowed by o.
func (t term) contradicts(o term) bool {
	return t.allowed().disjoint(o.allowed())
}

func (t term) String() string {
	if t.positive {
		return string(t.pkg) + " " + t.set.String()
	}
	return "not " + string(t.pkg) + " " + t.set.String()
}
