package buildgraph

import (
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/plan"
)

// Options configures how a Graph is built from a Plan.
type Options struct {
	// WorkDir is the root directory object files, archives, and
	// executables are written under.
	WorkDir string
	// KeyMode selects fast (mtime/size) or strict (content hash) cache
	// keys. Zero value is KeyModeFast.
	KeyMode KeyMode
}

// Graph is a built, acyclic node DAG ready for scheduling. Edges point from
// a node to the nodes it depends on: g.From(n) are n's dependencies,
// g.To(n) are the nodes that depend on n.
type Graph struct {
	g    *simple.DirectedGraph
	byID map[int64]*Node
	// downstream[id] is the number of nodes transitively depending on id,
	// memoized once at build time and used as the scheduler's priority:
	// the more a node unlocks, the sooner it should run.
	downstream map[int64]int
	nextID     int64
}

// Nodes returns every node in the graph, in id order.
func (gr *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(gr.byID))
	for id := int64(0); id < gr.nextID; id++ {
		if n, ok := gr.byID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Dependencies returns the nodes n directly depends on.
func (gr *Graph) Dependencies(n *Node) []*Node {
	var out []*Node
	it := gr.g.From(n.id)
	for it.Next() {
		out = append(out, gr.byID[it.Node().ID()])
	}
	return out
}

// Dependents returns the nodes that directly depend on n.
func (gr *Graph) Dependents(n *Node) []*Node {
	var out []*Node
	it := gr.g.To(n.id)
	for it.Next() {
		out = append(out, gr.byID[it.Node().ID()])
	}
	return out
}

// Downstream returns the number of nodes transitively depending on n.
func (gr *Graph) Downstream(n *Node) int { return gr.downstream[n.id] }

func (gr *Graph) addNode(n *Node) *Node {
	n.id = gr.nextID
	gr.nextID++
	gr.g.AddNode(n)
	gr.byID[n.id] = n
	return n
}

func (gr *Graph) dependsOn(n, dep *Node) {
	gr.g.SetEdge(gr.g.NewEdge(n, dep))
}

// Build discovers every library's source tree and constructs the full
// compile/header-check/archive/link/test-run node graph for p.
func Build(p *plan.Plan, opts Options) (*Graph, error) {
	usages := p.Sorted()

	unitsByLib := make(map[plan.LibKey][]Unit, len(usages))
	for _, u := range usages {
		units, err := discoverUnits(u.Root)
		if err != nil {
			return nil, cppack.Wrap(cppack.MarkerDiskFull, err, "discover sources under "+u.Root)
		}
		unitsByLib[u.Key] = units
	}

	if err := checkSiblingUsing(p, unitsByLib); err != nil {
		return nil, err
	}

	gr := &Graph{g: simple.NewDirectedGraph(), byID: make(map[int64]*Node)}

	archiveOf := make(map[plan.LibKey]*Node, len(usages))

	// Pass 1: compile + header-check + archive nodes, so every library's
	// archive node exists before pass 2 wires cross-library link edges.
	for _, u := range usages {
		var libCompiles, headerChecks []*Node
		includes := transitiveIncludes(p, u.Key)

		for _, unit := range unitsByLib[u.Key] {
			switch unit.Kind {
			case UnitLibrarySource:
				n := gr.addNode(&Node{
					Kind:        KindCompile,
					Lib:         u.Key,
					Source:      unit.Path,
					Object:      objectPath(opts.WorkDir, u.Key, unit.Path),
					IncludeDirs: includes,
				})
				libCompiles = append(libCompiles, n)
			case UnitHeader:
				if !unit.Public {
					continue
				}
				n := gr.addNode(&Node{
					Kind:        KindHeaderCheck,
					Lib:         u.Key,
					Source:      unit.Path,
					Object:      objectPath(opts.WorkDir, u.Key, unit.Path+".headercheck"),
					IncludeDirs: u.Includes,
				})
				headerChecks = append(headerChecks, n)
			}
		}

		archive := gr.addNode(&Node{
			Kind:   KindArchive,
			Lib:    u.Key,
			Object: archivePath(opts.WorkDir, u.Key),
		})
		for _, n := range libCompiles {
			gr.dependsOn(archive, n)
		}
		for _, n := range headerChecks {
			gr.dependsOn(archive, n)
		}
		archiveOf[u.Key] = archive
	}

	// Pass 2: main/test compile + link (+ test-run) nodes, wired against
	// every archive node reachable through the usage map.
	for _, u := range usages {
		includes := transitiveIncludes(p, u.Key)
		linkArchives := []*Node{archiveOf[u.Key]}
		for _, l := range u.Links {
			if a, ok := archiveOf[l]; ok {
				linkArchives = append(linkArchives, a)
			}
		}

		for _, unit := range unitsByLib[u.Key] {
			var testName string
			switch unit.Kind {
			case UnitMainSource:
			case UnitTestSource:
				testName = strings.TrimSuffix(filepath.Base(unit.Path), filepath.Ext(unit.Path))
				testName = strings.TrimSuffix(testName, ".test")
			default:
				continue
			}

			compile := gr.addNode(&Node{
				Kind:        KindCompile,
				Lib:         u.Key,
				Source:      unit.Path,
				Object:      objectPath(opts.WorkDir, u.Key, unit.Path),
				IncludeDirs: includes,
			})

			link := gr.addNode(&Node{
				Kind:     KindLink,
				Lib:      u.Key,
				TestName: testName,
				Object:   binaryPath(opts.WorkDir, u.Key, unit.Path),
			})
			gr.dependsOn(link, compile)
			for _, a := range linkArchives {
				gr.dependsOn(link, a)
			}

			if testName != "" {
				run := gr.addNode(&Node{
					Kind:     KindTestRun,
					Lib:      u.Key,
					TestName: testName,
					Object:   link.Object,
				})
				gr.dependsOn(run, link)
			}
		}
	}

	if _, err := topo.Sort(gr.g); err != nil {
		return nil, cppack.Errorf(cppack.MarkerLibraryCycle, "build graph contains a cycle: %v", err)
	}

	gr.downstream = computeDownstream(gr)
	return gr, nil
}

// computeDownstream counts, for every node, how many nodes transitively
// depend on it, memoized via a single pass in reverse topological order so
// each node's count is a cheap sum of its direct dependents' counts.
func computeDownstream(gr *Graph) map[int64]int {
	order, err := topo.Sort(gr.g)
	if err != nil {
		// Build already checked this; unreachable in practice.
		return map[int64]int{}
	}
	counts := make(map[int64]int, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i].ID()
		total := 0
		it := gr.g.To(id)
		for it.Next() {
			depID := it.Node().ID()
			total += 1 + counts[depID]
		}
		counts[id] = total
	}
	return counts
}

// transitiveIncludes gathers the include directories of start and every
// library reachable through its (and its dependencies') usage links,
// de-duplicated and sorted.
func transitiveIncludes(p *plan.Plan, start plan.LibKey) []string {
	seen := map[plan.LibKey]bool{start: true}
	queue := []plan.LibKey{start}
	var dirs []string
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		u, ok := p.Usages[key]
		if !ok {
			continue
		}
		dirs = append(dirs, u.Includes...)
		for _, l := range u.Links {
			if !seen[l] {
				seen[l] = true
				queue = append(queue, l)
			}
		}
	}
	sort.Strings(dirs)
	return dedup(dirs)
}

func dedup(in []string) []string {
	out := in[:0]
	var last string
	for i, s := range in {
		if i == 0 || s != last {
			out = append(out, s)
			last = s
		}
	}
	return out
}

func objectPath(workDir string, lib plan.LibKey, source string) string {
	rel := strings.ReplaceAll(source, string(filepath.Separator), "_")
	return filepath.Join(workDir, string(lib.Package), lib.Library, "obj", rel+".o")
}

func archivePath(workDir string, lib plan.LibKey) string {
	return filepath.Join(workDir, string(lib.Package), lib.Library, "lib"+lib.Library+".a")
}

func binaryPath(workDir string, lib plan.LibKey, source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(workDir, string(lib.Package), lib.Library, "bin", stem)
}
