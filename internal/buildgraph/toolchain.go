package buildgraph

import "context"

// Toolchain is the seam between the build graph and an actual C/C++
// compiler driver. internal/toolchain implements it against a real
// compiler; tests in this package implement it against a fake one, so the
// scheduling and caching logic is exercised without ever shelling out.
type Toolchain interface {
	// Jobs returns the toolchain's preferred parallelism factor, or 0 to
	// let the caller pick a default (CPU-count + 2).
	Jobs() int

	// CompileCommand returns the canonical, fully expanded command line
	// compiling src with the given include directories would run. It is
	// never executed directly; it is hashed into the node's cache key and
	// shown in failure output.
	CompileCommand(src string, includeDirs []string) string

	// Compile compiles src into an object file at the given path, and
	// returns the list of headers the compiler reports the translation
	// unit actually depends on.
	Compile(ctx context.Context, src, objectPath string, includeDirs []string) (headers []string, err error)

	// CheckHeader compiles a translation unit consisting solely of
	// `#include "header"` with includeDirs as the only available search
	// path, to catch a public header that silently depends on a sibling
	// include it does not pull in itself.
	CheckHeader(ctx context.Context, header string, includeDirs []string) error

	// Archive bundles objects into a static archive at archivePath.
	Archive(ctx context.Context, objects []string, archivePath string) error

	// Link produces an executable at binaryPath from objects and the
	// archives they depend on.
	Link(ctx context.Context, objects, archives []string, binaryPath string) error

	// RunTest executes a linked test binary. A non-zero exit is always a
	// failure, regardless of output.
	RunTest(ctx context.Context, binaryPath string) error
}
