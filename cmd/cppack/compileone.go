package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/cppack/cppack/internal/toolchain"
)

const compileOneHelp = `cppack compile-one [-flags] <source-file>

Compile a single source file to an object file using the configured
toolchain, without touching the dependency database or the rest of the
build graph. Intended for editor/IDE tooling that wants a single
translation unit's diagnostics without a full build.

Example:
  % cppack compile-one -o foo.o -I include src/foo.cpp
`

func compileOne(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("compile-one", flag.ExitOnError)
	var (
		out         = fset.String("o", "", "output object file path (required)")
		includeDirs = fset.String("I", "", "comma-separated include directories")
	)
	tf := addToolchainFlags(fset)
	fset.Usage = usage(fset, compileOneHelp)
	fset.Parse(args)

	if fset.NArg() != 1 || *out == "" {
		fset.Usage()
		return fmt.Errorf("compile-one: exactly one source file and -o are required")
	}
	source := fset.Arg(0)

	var dirs []string
	if *includeDirs != "" {
		dirs = strings.Split(*includeDirs, ",")
	}

	tc, err := toolchain.New(tf.config())
	if err != nil {
		return err
	}

	headers, err := tc.Compile(ctx, source, *out, dirs)
	if err != nil {
		return err
	}
	for _, h := range headers {
		fmt.Println(h)
	}
	return nil
}
