package solver

import (
	"fmt"
	"strings"

	"github.com/cppack/cppack/internal/ident"
)

// An incompatibility is a set of terms (at most one per package) that
// cannot all hold in any solution. External incompatibilities come from the
// root requirements, from package dependencies, and from the candidate set;
// derived ones are produced by resolution during conflict handling and
// remember their two parents, forming the derivation graph a failure
// explanation walks.
type incompatibility struct {
	terms []term
	cause cause
}

type cause interface {
	isCause()
}

// rootCause marks an incompatibility stating one of the project's own
// dependency expressions.
type rootCause struct {
	expr ident.DepExpr
}

// depCause marks "version v of p depends on q in range".
type depCause struct {
	depender ident.PkgID
	expr     ident.DepExpr
}

// noVersionsCause marks "no candidate of p satisfies this range". When
// lacksLib is non-empty the cause is sharper: the range's candidates exist
// but do not declare a library a dependent's "using" list requires.
type noVersionsCause struct {
	pkg      ident.Name
	lacksLib string
	banned   ident.PkgID // the candidate lacking lacksLib, when set
}

// conflictCause marks a derived incompatibility and links its two parents.
type conflictCause struct {
	left, right *incompatibility
}

func (rootCause) isCause()       {}
func (depCause) isCause()        {}
func (noVersionsCause) isCause() {}
func (conflictCause) isCause()   {}

func (ic *incompatibility) derived() bool {
	_, ok := ic.cause.(conflictCause)
	return ok
}

// termFor returns ic's term about pkg, if any.
func (ic *incompatibility) termFor(pkg ident.Name) (term, bool) {
	for _, t := range ic.terms {
		if t.pkg == pkg {
			return t, true
		}
	}
	return term{}, false
}

// key is a canonical identity used to avoid registering the same external
// incompatibility twice across backtracks.
func (ic *incompatibility) key() string {
	parts := make([]string, len(ic.terms))
	for i, t := range ic.terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " | ")
}

// String renders the incompatibility as the sentence fragment failure
// explanations compose. External causes know their own precise phrasing;
// derived ones state what their terms forbid.
func (ic *incompatibility) String() string {
	switch c := ic.cause.(type) {
	case rootCause:
		return fmt.Sprintf("the project requires %s", c.expr.String())
	case depCause:
		return fmt.Sprintf("%s depends on %s", c.depender, c.expr.String())
	case noVersionsCause:
		if c.lacksLib != "" {
			return fmt.Sprintf("%s lacks library %s", c.banned, c.lacksLib)
		}
		if t, ok := ic.termFor(c.pkg); ok {
			return fmt.Sprintf("no version of %s matches %s", c.pkg, t.set.String())
		}
		return fmt.Sprintf("no version of %s is available", c.pkg)
	}

	switch len(ic.terms) {
	case 0:
		return "version solving failed"
	case 1:
		t := ic.terms[0]
		if t.positive {
			return fmt.Sprintf("%s %s is forbidden", t.pkg, t.set.String())
		}
		return fmt.Sprintf("%s %s is required", t.pkg, t.set.String())
	}
	parts := make([]string, 0, len(ic.terms))
	for _, t := range ic.terms {
		if t.positive {
			parts = append(parts, fmt.Sprintf("%s %s", t.pkg, t.set.String()))
		} else {
			parts = append(parts, fmt.Sprintf("not %s %s", t.pkg, t.set.String()))
		}
	}
	return fmt.Sprintf("%s are incompatible", strings.Join(parts, " and "))
}
