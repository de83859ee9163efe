package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/cppack/cppack/internal/env"
)

const envHelp = `cppack env [-flags]

Display cppack environment variables.

Example:
  % cppack env
`

func printenv(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("env", flag.ExitOnError)
	fset.Usage = usage(fset, envHelp)
	fset.Parse(args)

	if fset.NArg() > 0 {
		switch fset.Arg(0) {
		case "CPPACK_CACHE":
			fmt.Println(env.CacheRoot)
		case "CPPACK_REPOS":
			fmt.Println(env.Repos)
		case "CPPACK_JOBS":
			fmt.Println(env.DownloadJobs)
		}
		return nil
	}
	fmt.Printf("CPPACK_CACHE=%q\n", env.CacheRoot)
	fmt.Printf("CPPACK_REPOS=%q\n", env.Repos)
	fmt.Printf("CPPACK_JOBS=%d\n", env.DownloadJobs)
	return nil
}
