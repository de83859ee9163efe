package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/cppack/cppack/internal/env"
	"github.com/cppack/cppack/internal/plan"
	"github.com/cppack/cppack/internal/solver"
	"github.com/cppack/cppack/internal/store"
)

const fetchHelp = `cppack fetch [-flags]

Solve the current project's dependency graph and populate the local store
with every resolved package's source tree, without building anything.

Example:
  % cppack fetch -dir myproject
`

// materializeProject solves dir's project against repos, opens the local
// store at env.CacheRoot (or -store), and materializes the resulting plan.
func materializeProject(ctx context.Context, dir string, repos []string, storeDir string) (*plan.Plan, *store.Store, *solver.Result, error) {
	result, cats, err := solveProject(ctx, dir, repos)
	if err != nil {
		return nil, nil, nil, err
	}
	if storeDir == "" {
		storeDir = env.CacheRoot
	}
	st, err := store.Open(storeDir)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := plan.Materialize(ctx, result, cats, st, env.DownloadJobs)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, st, result, nil
}

func fetch(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("fetch", flag.ExitOnError)
	var (
		dir      = fset.String("dir", ".", "project directory to solve and fetch")
		repo     = fset.String("repo", "", "comma-separated repository locations (paths or HTTP URLs)")
		storeDir = fset.String("store", "", "content-addressed store root (default: CPPACK_CACHE)")
	)
	fset.Usage = usage(fset, fetchHelp)
	fset.Parse(args)

	p, _, _, err := materializeProject(ctx, *dir, repoList(*repo), *storeDir)
	if err != nil {
		return err
	}
	for _, u := range p.Sorted() {
		fmt.Printf("fetched %s/%s -> %s\n", u.Key.Package, u.Key.Library, u.Root)
	}
	return nil
}
