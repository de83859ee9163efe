// Package buildgraph turns a materialized plan (internal/plan) into a node
// DAG of compile, header-check, archive, link, and test-run steps, and
// schedules it with a bounded worker pool. It is the incremental build
// engine: a compile node only runs when its recorded cache key has changed,
// its object file is missing, or its previous attempt failed; header-check,
// archive, link, and test-run nodes run on every invocation. Nodes with no
// dependency between them run concurrently.
//
// buildgraph knows nothing about how a compiler is actually invoked; that
// is the Toolchain interface's job (see toolchain.go), implemented by
// internal/toolchain. This keeps the scheduling and caching logic testable
// against a fake toolchain.
package buildgraph

import (
	"github.com/cppack/cppack/internal/plan"
)

// Kind is the role a Node plays in the build.
type Kind int

const (
	// KindCompile produces one object file from one source file.
	KindCompile Kind = iota
	// KindHeaderCheck compiles a synthesized translation unit that includes
	// exactly one public header, to catch a header silently depending on a
	// sibling include it never pulls in itself.
	KindHeaderCheck
	// KindArchive bundles a library's compiled objects into a static
	// archive.
	KindArchive
	// KindLink produces an executable from one main/test object plus the
	// archives it depends on.
	KindLink
	// KindTestRun executes a linked test binary.
	KindTestRun
)

func (k Kind) String() string {
	switch k {
	case KindCompile:
		return "compile"
	case KindHeaderCheck:
		return "header-check"
	case KindArchive:
		return "archive"
	case KindLink:
		return "link"
	case KindTestRun:
		return "test-run"
	default:
		return "unknown"
	}
}

// Node is one unit of work in the build graph.
type Node struct {
	id   int64
	Kind Kind
	Lib  plan.LibKey

	// Source is the compiled file for KindCompile, the header under test
	// for KindHeaderCheck, and unused otherwise.
	Source string
	// Object is this node's principal output path: an object file for
	// KindCompile/KindHeaderCheck, an archive for KindArchive, an
	// executable for KindLink, the linked test executable to run for
	// KindTestRun.
	Object string
	// TestName names the test for KindLink nodes that link a test
	// executable, and for the KindTestRun node that follows them. Empty
	// for a main-executable link.
	TestName string

	// Command is the canonical, already-expanded toolchain invocation this
	// node represents, used verbatim in its cache key and in failure
	// output.
	Command string
	// IncludeDirs is the include search path this node compiles or checks
	// with.
	IncludeDirs []string
}

// ID implements gonum's graph.Node.
func (n *Node) ID() int64 { return n.id }
