package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/cppack/cppack/internal/env"
	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/store"
)

const gcHelp = `cppack gc [-flags]

Delete store entries that are not reachable from any of the given
projects' solved dependency graphs. cppack has no "installed packages"
concept the way a system package manager does; an entry is kept as
long as at least one -dir project's solve still names it.

Example:
  % cppack gc -dir myproject -dir otherproject
`

type dirList []string

func (d *dirList) String() string { return strings.Join(*d, ",") }
func (d *dirList) Set(v string) error {
	*d = append(*d, v)
	return nil
}

func gc(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("gc", flag.ExitOnError)
	var dirs dirList
	fset.Var(&dirs, "dir", "project directory to keep packages for (repeatable)")
	repo := fset.String("repo", "", "comma-separated repository locations (paths or HTTP URLs)")
	storeDir := fset.String("store", "", "content-addressed store root (default: CPPACK_CACHE)")
	dryRun := fset.Bool("dry-run", false, "only print entries that would be deleted")
	fset.Usage = usage(fset, gcHelp)
	fset.Parse(args)

	if len(dirs) == 0 {
		dirs = dirList{"."}
	}

	keep := make(map[ident.PkgID]bool)
	for _, dir := range dirs {
		result, _, err := solveProject(ctx, dir, repoList(*repo))
		if err != nil {
			return fmt.Errorf("solve %s: %w", dir, err)
		}
		for _, a := range result.Assignments {
			keep[a.ID] = true
		}
	}

	root := *storeDir
	if root == "" {
		root = env.CacheRoot
	}
	st, err := store.Open(root)
	if err != nil {
		return err
	}

	ids, err := st.List()
	if err != nil {
		return err
	}

	var deleted, kept int
	for _, id := range ids {
		if keep[id] {
			kept++
			continue
		}
		if *dryRun {
			fmt.Printf("would delete %s\n", id)
			continue
		}
		if err := st.Remove(id); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", id)
		deleted++
	}
	if !*dryRun {
		fmt.Printf("%d entries deleted, %d kept\n", deleted, kept)
	}
	return nil
}
