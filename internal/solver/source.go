package solver

import (
	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/repoindex"
)

// CatalogSource adapts one or more repository catalogs into a
// CandidateSource, querying each in order and merging their entries for a
// given name: a package can be mirrored across repositories, and the
// earlier-listed repository wins ties on (version, pkg-rev).
type CatalogSource struct {
	Catalogs []*repoindex.Catalog
}

// Versions implements CandidateSource.
func (c CatalogSource) Versions(name ident.Name) []Candidate {
	var out []Candidate
	for _, cat := range c.Catalogs {
		for _, e := range cat.List(name) {
			m := e.Manifest
			out = append(out, Candidate{ID: e.ID, Manifest: &m})
		}
	}
	sortCandidates(out)
	return out
}

func sortCandidates(cands []Candidate) {
	// insertion sort is fine here: candidate lists are short and each
	// per-repository slice already arrives sorted from Catalog.List.
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].ID.Less(cands[j-1].ID); j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}
}
