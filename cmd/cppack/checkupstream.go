package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cppack/cppack/internal/checkupstream"
	"github.com/cppack/cppack/internal/manifest"
)

const checkUpstreamHelp = `cppack checkupstream [-flags] [package...]

Check every package's manifest "upstream" field against the newest
version actually published there (GitHub releases, or a scraped HTML
listing otherwise), printing any package whose current version is
behind. With no package arguments, checks every package under -dir.

Example:
  % cppack checkupstream -dir pkgs
  % GITHUB_TOKEN=... cppack checkupstream -dir pkgs zlib
`

func checkUpstream(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("checkupstream", flag.ExitOnError)
	dir := fset.String("dir", "pkgs", "directory containing one subdirectory per package")
	fset.Usage = usage(fset, checkUpstreamHelp)
	fset.Parse(args)

	cl := checkupstream.GitHubClient(ctx, os.Getenv("GITHUB_TOKEN"))

	names := fset.Args()
	if len(names) == 0 {
		entries, err := os.ReadDir(*dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}

	var failed bool
	for _, name := range names {
		pkgDir := filepath.Join(*dir, name)
		m, err := manifest.Load(pkgDir)
		if err != nil {
			continue
		}
		if m.Upstream == "" {
			continue
		}
		result, err := checkupstream.Check(ctx, cl, m.Upstream)
		if err != nil {
			fmt.Printf("%s: %v\n", m.Name, err)
			failed = true
			continue
		}
		if result.Version.Compare(m.Version) > 0 {
			fmt.Printf("%s: %s -> %s (%s)\n", m.Name, m.Version, result.Version, result.SourceURL)
		}
	}
	if failed {
		return fmt.Errorf("checkupstream: one or more upstream checks failed")
	}
	return nil
}
