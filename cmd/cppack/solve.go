package main

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/manifest"
	"github.com/cppack/cppack/internal/repoindex"
	"github.com/cppack/cppack/internal/solver"
)

const solveHelp = `cppack solve [-flags]

Resolve the current project's dependency graph against the configured
repositories and print the chosen (version, pkg-rev, enabled-libs) for
every package, without fetching or building anything.

Example:
  % cppack solve -dir myproject
`

// solveProject loads the project manifest at dir, refreshes one catalog per
// entry of repos (callers resolve the -repo flag, or CPPACK_REPOS, through
// repoList), and solves the project's root dependencies against them.
func solveProject(ctx context.Context, dir string, repos []string) (*solver.Result, []*repoindex.Catalog, error) {
	m, err := manifest.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	cats, err := loadCatalogs(ctx, repos)
	if err != nil {
		return nil, nil, err
	}
	src := solver.CatalogSource{Catalogs: cats}
	result, err := solver.Solve(m.Dependencies, src)
	if err != nil {
		return nil, nil, err
	}
	return result, cats, nil
}

func solve(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("solve", flag.ExitOnError)
	var (
		dir  = fset.String("dir", ".", "project directory to solve")
		repo = fset.String("repo", "", "comma-separated repository locations (paths or HTTP URLs)")
	)
	fset.Usage = usage(fset, solveHelp)
	fset.Parse(args)

	result, _, err := solveProject(ctx, *dir, repoList(*repo))
	if err != nil {
		return err
	}
	for _, name := range sortedAssignmentNames(result) {
		a := result.Assignments[ident.Name(name)]
		fmt.Printf("%s enabled=%v\n", a.ID, a.EnabledLibs)
	}
	fmt.Printf("solved in %d attempts\n", result.Attempts)
	return nil
}

// sortedAssignmentNames returns result's assigned package names in
// lexicographic order, for deterministic solve output.
func sortedAssignmentNames(result *solver.Result) []string {
	out := make([]string, 0, len(result.Assignments))
	for name := range result.Assignments {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}
