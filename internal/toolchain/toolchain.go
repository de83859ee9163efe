// Package toolchain maps the build graph's generic compile/archive/link/
// test intents onto concrete command lines for a configured compiler
// family. It is the only polymorphism in the build engine worth
// abstracting: a tagged variant over known families, not an open-ended
// plugin system.
package toolchain

import (
	"path/filepath"
	"runtime"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/buildgraph"
)

// Family names a compiler family this package knows how to drive.
type Family string

const (
	// GNULike covers gcc/clang and their compatible command-line shape:
	// -I, -c -o, -MMD -MF for header dependencies, ar for archives.
	GNULike Family = "gnu-like"
	// MSVCLike covers cl.exe/lib.exe/link.exe: /I, /c /Fo, /showIncludes
	// for header dependencies, .obj/.lib/.exe extensions.
	MSVCLike Family = "msvc-like"
)

// Config describes one concrete toolchain installation.
type Config struct {
	Family Family

	// CC/CXX name the C and C++ compiler executables (resolved via PATH
	// unless absolute). CXX defaults to CC for families that use one
	// driver for both languages.
	CC  string
	CXX string
	// Archiver names the static-library archiver (ar, or lib.exe).
	Archiver string
	// Linker names the link driver. When empty, the GNU-like family links
	// through CXX (most projects link through the compiler driver rather
	// than invoking the linker directly) and the MSVC-like family uses
	// link.exe.
	Linker string

	// ExtraFlags are appended to every compile command, after the
	// family's own required flags.
	ExtraFlags []string

	// Jobs is the parallelism factor this toolchain prefers; 0 means let
	// the scheduler pick CPU-count + 2.
	Jobs int
}

// New validates cfg and returns a buildgraph.Toolchain driving it.
func New(cfg Config) (buildgraph.Toolchain, error) {
	if cfg.CC == "" && cfg.CXX == "" {
		return nil, cppack.Errorf(cppack.MarkerBadToolchain, "toolchain config names no compiler (cc/cxx both empty)")
	}
	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU() + 2
	}

	switch cfg.Family {
	case GNULike, "":
		return newGNUToolchain(cfg, jobs), nil
	case MSVCLike:
		return newMSVCToolchain(cfg, jobs), nil
	default:
		return nil, cppack.Errorf(cppack.MarkerBadToolchain, "unknown toolchain family %q", cfg.Family)
	}
}

// sourceIsCxx reports whether path's extension identifies a C++ (rather
// than C) translation unit, the one place either family's driver selects
// between CC and CXX.
func sourceIsCxx(path string) bool {
	switch filepath.Ext(path) {
	case ".cc", ".cpp", ".cxx", ".c++", ".C":
		return true
	default:
		return false
	}
}
