package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
)

const listHelp = `cppack list [-flags] [prefix...]

List every package name available across the configured repositories,
optionally filtered to names starting with one of the given prefixes.

Example:
  % cppack list
  % cppack list -repo http://example.invalid/repo boost-
`

func cmdlist(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("list", flag.ExitOnError)
	repo := fset.String("repo", "", "comma-separated repository locations (paths or HTTP URLs)")
	fset.Usage = usage(fset, listHelp)
	fset.Parse(args)

	cats, err := loadCatalogs(ctx, repoList(*repo))
	if err != nil {
		return err
	}

	prefixes := fset.Args()
	seen := make(map[string]bool)
	for _, cat := range cats {
		for _, name := range cat.Names() {
			if !hasPrefix(name, prefixes) || seen[name] {
				continue
			}
			seen[name] = true
			fmt.Println(name)
		}
	}
	return nil
}

func hasPrefix(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
