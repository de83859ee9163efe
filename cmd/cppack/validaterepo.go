package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/cppack/cppack/internal/repoindex"
)

const validateRepoHelp = `cppack validate-repo [-flags]

Schema-check a repository index without installing it into any catalog,
the same decode path "fetch"/"build" use for a remote repository, run
locally against a file before publishing it.

Example:
  % cppack validate-repo -index out/index.json.gz
`

func validateRepo(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("validate-repo", flag.ExitOnError)
	index := fset.String("index", "index.json.gz", "path to the index.json.gz file to validate")
	fset.Usage = usage(fset, validateRepoHelp)
	fset.Parse(args)

	entries, err := repoindex.ValidateIndexFile(*index)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\t%d bytes\n", e.ID, e.Digest, e.Size)
	}
	fmt.Printf("%d entries, schema ok\n", len(entries))
	return nil
}
