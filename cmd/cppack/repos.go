package main

import (
	"context"
	"strings"

	"github.com/cppack/cppack/internal/env"
	"github.com/cppack/cppack/internal/repoindex"
)

// repoList splits a -repo flag's comma-separated value, falling back to
// CPPACK_REPOS (internal/env.Repos) when the flag was not given.
func repoList(flagVal string) []string {
	if flagVal == "" {
		return env.Repos
	}
	var out []string
	for _, p := range strings.Split(flagVal, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadCatalogs opens and refreshes one repoindex.Catalog per repository in
// repos, in order: the solver's CatalogSource and the plan materializer
// both treat that order as the repository-precedence tie-break.
func loadCatalogs(ctx context.Context, repos []string) ([]*repoindex.Catalog, error) {
	cats := make([]*repoindex.Catalog, 0, len(repos))
	for _, r := range repos {
		cat := repoindex.NewCatalog(repoindex.Source{Path: r})
		if err := repoindex.Refresh(ctx, cat); err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, nil
}
