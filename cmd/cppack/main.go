// Command cppack is the source-based C/C++ package manager and build
// driver: it resolves a project's dependency graph, fetches package
// sources into a local content-addressed store, and drives incremental,
// parallel compilation and linking.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/cppack/cppack"

	_ "net/http/pprof"
)

var (
	debug      = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	cpuprofile = flag.String("cpuprofile", "", "path to store a CPU profile at")
	memprofile = flag.String("memprofile", "", "path to store a memory profile at")
	tracefile  = flag.String("tracefile", "", "path to store a trace at")
	httpListen = flag.String("listen", "", "host:port to listen on for HTTP (pprof)")
)

type cmd struct {
	fn   func(ctx context.Context, args []string) error
	help string
}

var verbs = map[string]cmd{
	"solve":         {solve, solveHelp},
	"fetch":         {fetch, fetchHelp},
	"build":         {build, buildHelp},
	"compile-one":   {compileOne, compileOneHelp},
	"validate-repo": {validateRepo, validateRepoHelp},
	"repo-import":   {repoImport, repoImportHelp},
	"pack-sdist":    {packSdist, packSdistHelp},
	"bump":          {bump, bumpHelp},
	"checkupstream": {checkUpstream, checkUpstreamHelp},
	"export":        {export, exportHelp},
	"gc":            {gc, gcHelp},
	"list":          {cmdlist, listHelp},
	"env":           {printenv, envHelp},
}

func funcmain() error {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *tracefile != "" {
		f, err := os.Create(*tracefile)
		if err != nil {
			return err
		}
		trace.Start(f)
		defer trace.Stop()
	}

	if *httpListen != "" {
		go http.ListenAndServe(*httpListen, nil)
	}

	args := flag.Args()
	verb := "build"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "cppack [-flags] <command> [-flags] <args>\n")
			fmt.Fprintln(os.Stderr)
			fmt.Fprintf(os.Stderr, "To get help on any command, use cppack <command> -help.\n")
			fmt.Fprintln(os.Stderr)
			fmt.Fprintf(os.Stderr, "Dependency commands:\n")
			fmt.Fprintf(os.Stderr, "\tsolve          - resolve the project's dependency graph\n")
			fmt.Fprintf(os.Stderr, "\tfetch          - populate the local store from a solved plan\n")
			fmt.Fprintln(os.Stderr)
			fmt.Fprintf(os.Stderr, "Build commands:\n")
			fmt.Fprintf(os.Stderr, "\tbuild          - solve, fetch, and build the current project\n")
			fmt.Fprintf(os.Stderr, "\tcompile-one    - compile a single source file, for editor tooling\n")
			fmt.Fprintln(os.Stderr)
			fmt.Fprintf(os.Stderr, "Repository commands:\n")
			fmt.Fprintf(os.Stderr, "\tvalidate-repo  - schema-check a repository index without publishing it\n")
			fmt.Fprintf(os.Stderr, "\trepo-import    - build and publish a repository index from package manifests\n")
			fmt.Fprintf(os.Stderr, "\tpack-sdist     - export the current project tree as a publishable archive\n")
			fmt.Fprintf(os.Stderr, "\texport         - serve the local store as a repository\n")
			fmt.Fprintln(os.Stderr)
			fmt.Fprintf(os.Stderr, "Maintenance commands:\n")
			fmt.Fprintf(os.Stderr, "\tgc             - garbage collect unreferenced store entries\n")
			fmt.Fprintf(os.Stderr, "\tlist           - list packages available in configured repositories\n")
			fmt.Fprintf(os.Stderr, "\tenv            - display cppack environment variables\n")
			fmt.Fprintf(os.Stderr, "\tbump           - increase a package's pkg-rev\n")
			fmt.Fprintf(os.Stderr, "\tcheckupstream  - check for newer upstream versions\n")
			os.Exit(1)
		}
		verb = args[0]
		args = []string{"-help"}
	}

	ctx, canc := cppack.InterruptibleContext()
	defer canc()
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: cppack <command> [options]\n")
		os.Exit(1)
	}
	if err := v.fn(ctx, args); err != nil {
		if *memprofile != "" {
			f, err := os.Create(*memprofile)
			if err != nil {
				log.Fatal("could not create memory profile: ", err)
			}
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatal("could not write memory profile: ", err)
			}
		}
		if *debug {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		}
		return fmt.Errorf("%s: %w", verb, err)
	}

	return cppack.RunAtExit()
}

// exitCode maps an error's marker to the documented exit codes: 1 for
// configuration and user errors, 2 for build failures, 3 for environment
// failures (I/O, network, toolchain).
func exitCode(err error) int {
	buildFailures := []cppack.Marker{
		cppack.MarkerSyntaxCheckFailed,
		cppack.MarkerMissingUsingDecl,
		cppack.MarkerCompileFailed,
		cppack.MarkerLinkFailed,
		cppack.MarkerBuildTestsFailed,
	}
	for _, m := range buildFailures {
		if cppack.Is(err, m) {
			return 2
		}
	}
	envFailures := []cppack.Marker{
		cppack.MarkerRepoSyncMissing,
		cppack.MarkerRepoSyncInvalid,
		cppack.MarkerRepoIndexTooNew,
		cppack.MarkerNetworkFailure,
		cppack.MarkerArchiveMalformed,
		cppack.MarkerManifestMismatch,
		cppack.MarkerCorruptedCache,
		cppack.MarkerDiskFull,
		cppack.MarkerPermissionDenied,
		cppack.MarkerBadToolchain,
	}
	for _, m := range envFailures {
		if cppack.Is(err, m) {
			return 3
		}
	}
	return 1
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
