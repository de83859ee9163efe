package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/buildgraph"
	"github.com/cppack/cppack/internal/toolchain"
)

const buildHelp = `cppack build [-flags]

Solve the current project's dependency graph, fetch every resolved
package's sources into the local store, and drive an incremental,
parallel build: compile, header-isolation-check, archive, link, and run
tests.

Example:
  % cppack build -dir myproject -cc clang -cxx clang++
`

// toolchainFlags are shared between build and compile-one.
type toolchainFlags struct {
	family     *string
	cc         *string
	cxx        *string
	archiver   *string
	linker     *string
	extraFlags *string
	jobs       *int
}

func addToolchainFlags(fset *flag.FlagSet) toolchainFlags {
	return toolchainFlags{
		family:     fset.String("family", string(toolchain.GNULike), "compiler family: gnu-like or msvc-like"),
		cc:         fset.String("cc", "cc", "C compiler executable"),
		cxx:        fset.String("cxx", "c++", "C++ compiler executable"),
		archiver:   fset.String("ar", "ar", "static archiver executable"),
		linker:     fset.String("linker", "", "link driver (default: cxx)"),
		extraFlags: fset.String("flags", "", "space-separated extra compiler flags"),
		jobs:       fset.Int("jobs", 0, "parallelism factor (default: CPU count + 2)"),
	}
}

func (f toolchainFlags) config() toolchain.Config {
	var extra []string
	if *f.extraFlags != "" {
		extra = strings.Fields(*f.extraFlags)
	}
	return toolchain.Config{
		Family:     toolchain.Family(*f.family),
		CC:         *f.cc,
		CXX:        *f.cxx,
		Archiver:   *f.archiver,
		Linker:     *f.linker,
		ExtraFlags: extra,
		Jobs:       *f.jobs,
	}
}

func build(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("build", flag.ExitOnError)
	var (
		dir       = fset.String("dir", ".", "project directory to build")
		repo      = fset.String("repo", "", "comma-separated repository locations (paths or HTTP URLs)")
		storeDir  = fset.String("store", "", "content-addressed store root (default: CPPACK_CACHE)")
		workDir   = fset.String("work", "build", "directory build outputs are written under")
		strict    = fset.Bool("strict-keys", false, "use content-hash cache keys instead of (mtime, size)")
		keepGoing = fset.Bool("keep-going", false, "continue building after a node fails, instead of stopping new dispatch")
	)
	tf := addToolchainFlags(fset)
	fset.Usage = usage(fset, buildHelp)
	fset.Parse(args)

	p, _, _, err := materializeProject(ctx, *dir, repoList(*repo), *storeDir)
	if err != nil {
		return err
	}

	tc, err := toolchain.New(tf.config())
	if err != nil {
		return err
	}

	keyMode := buildgraph.KeyModeFast
	if *strict {
		keyMode = buildgraph.KeyModeStrict
	}

	gr, err := buildgraph.Build(p, buildgraph.Options{WorkDir: *workDir, KeyMode: keyMode})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*workDir, 0o755); err != nil {
		return err
	}
	if err := buildgraph.WriteCompileCommands(filepath.Join(*workDir, "compile_commands.json"), gr, tc); err != nil {
		return err
	}

	db, err := buildgraph.OpenDepDB(dbPath(*workDir))
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	sched := buildgraph.NewScheduler(gr, tc, db, keyMode, *tf.jobs, *keepGoing, logger)
	result, err := sched.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("build finished: %d succeeded, %d failed, %d skipped\n", result.Succeeded, result.Failed, result.Skipped)
	if result.Failed > 0 {
		return firstNodeError(result)
	}
	return nil
}

// firstNodeError surfaces one failed node's own marked error (compile,
// link, header-check, or test-run each carry their own marker already) in
// a stable order, rather than inventing a generic top-level marker that
// would shadow it.
func firstNodeError(result *buildgraph.RunResult) error {
	ids := make([]int64, 0, len(result.Results))
	for id := range result.Results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if nr := result.Results[id]; nr.Err != nil && !nr.Skipped {
			return nr.Err
		}
	}
	return cppack.Errorf(cppack.MarkerCompileFailed, "build failed")
}

// dbPath is the dependency database directory under a build's work
// directory, matching spec.md §6's ".deps.db" filesystem layout entry
// (realized here as a directory of per-node records rather than a single
// file, per internal/buildgraph.DepDB's design).
func dbPath(workDir string) string {
	return workDir + "/.deps.db"
}
