package manifest

import (
	"strings"

	"github.com/cppack/cppack"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// checkUseCycles rejects a manifest whose libraries form a cycle through
// their "using" edges (including the degenerate one-library self-using
// case). It builds the same kind of gonum directed graph the build graph and
// the bump verb use elsewhere and topologically sorts it, the pattern
// used for breaking dependency cycles among packages: here an unorderable
// graph is a hard error rather than something to repair.
func checkUseCycles(m *Manifest) error {
	index := make(map[string]int64, len(m.Libraries))
	for i, lib := range m.Libraries {
		index[string(lib.Name)] = int64(i)
	}

	g := simple.NewDirectedGraph()
	for i := range m.Libraries {
		g.AddNode(simple.Node(int64(i)))
	}
	for i, lib := range m.Libraries {
		for _, use := range lib.Uses {
			j, ok := index[use.Lib]
			if !ok {
				continue // dangling uses are reported by Validate, not here
			}
			if int64(i) == j {
				return cycleErrf("library %q uses itself", lib.Name)
			}
			g.SetEdge(g.NewEdge(simple.Node(int64(i)), simple.Node(j)))
		}
	}

	if _, err := topo.Sort(g); err != nil {
		uo, ok := err.(topo.Unorderable)
		if !ok {
			return cycleErrf("library use graph: %v", err)
		}
		names := make([]string, 0, len(uo[0]))
		for _, n := range uo[0] {
			names = append(names, string(m.Libraries[n.ID()].Name))
		}
		return cycleErrf("library use cycle: %s", strings.Join(names, " -> "))
	}
	return nil
}

// cycleErrf builds a LibraryCycle error with context, the cycle-specific
// counterpart of errf.
func cycleErrf(format string, args ...interface{}) error {
	return cppack.Errorf(cppack.MarkerLibraryCycle, format, args...)
}
