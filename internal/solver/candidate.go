// Package solver resolves a set of dependency expressions into a consistent
// assignment of exactly one package revision per name, the way a PubGrub
// solver does: requirements become incompatibilities over (version, pkg-rev)
// terms, unit propagation forces whatever assignments the incompatibilities
// determine, and a conflict derives a new incompatibility by resolution and
// backjumps, so a failed branch prunes every other branch that would fail
// for the same reason. On failure the derivation graph linearizes into a
// human-readable explanation of why no assignment exists.
package solver

import (
	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/manifest"
)

// Candidate is one known revision of a package, as offered by a
// CandidateSource, paired with the manifest describing its libraries and
// dependencies.
type Candidate struct {
	ID       ident.PkgID
	Manifest *manifest.Manifest
}

// CandidateSource supplies the known revisions of a package. Versions must
// return candidates already ordered by the solver's tie-break rule: highest
// version first, then highest pkg-rev for equal versions. repoindex.Catalog
// satisfies this via List, which this package's cppack wiring adapts to.
type CandidateSource interface {
	Versions(name ident.Name) []Candidate
}

// Assignment is one resolved package in a Result.
type Assignment struct {
	ID          ident.PkgID
	Manifest    *manifest.Manifest
	EnabledLibs []string // sorted, the union of every requested "using" name
}

// Result is the solver's output on success.
type Result struct {
	Assignments map[ident.Name]Assignment
	Attempts    int // number of candidates tried, printed by the solve verb
}
