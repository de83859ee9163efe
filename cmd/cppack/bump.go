package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/cppack/cppack/internal/manifest"
)

const bumpHelp = `cppack bump [-flags] [package...]

Increase the pkg-rev of the named packages, and of every package in
-dir that (transitively) depends on one of them, so that a content
change propagates a new revision through its reverse-dependency chain.

Example:
  % cppack bump -dir pkgs zlib
`

// pkgRevPattern matches a manifest's pkg-rev field across the JSON, YAML,
// and TOML variants this tool accepts: "pkg-rev": 3, pkg-rev: 3, and
// pkg-rev = 3 all satisfy key<sep>digits.
var pkgRevPattern = regexp.MustCompile(`(pkg-rev['"]?\s*[:=]\s*)(\d+)`)

type revIncrement struct {
	path    string
	pkg     string
	current int
	new     int
}

func (r revIncrement) perform() error {
	b, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}
	rewritten := pkgRevPattern.ReplaceAll(b, []byte(fmt.Sprintf("${1}%d", r.new)))
	return renameio.WriteFile(r.path, rewritten, 0o644)
}

type bumpnode struct {
	id   int64
	name string
	path string
	rev  int
	deps []string
}

func (n *bumpnode) ID() int64 { return n.id }

type bumpctx struct {
	graph  *simple.DirectedGraph
	byName map[string]*bumpnode
	bumped map[string]bool
}

func newBumpctx(dir string) (*bumpctx, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	b := &bumpctx{
		graph:  simple.NewDirectedGraph(),
		byName: make(map[string]*bumpnode),
		bumped: make(map[string]bool),
	}

	var id int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pkgDir := filepath.Join(dir, e.Name())
		m, err := manifest.Load(pkgDir)
		if err != nil {
			continue // not a package directory
		}
		path, err := manifestPath(pkgDir)
		if err != nil {
			return nil, err
		}
		id++
		deps := make([]string, 0, len(m.Dependencies))
		for _, d := range m.Dependencies {
			deps = append(deps, string(d.Expr.Name))
		}
		n := &bumpnode{id: id, name: string(m.Name), path: path, rev: m.PkgRev, deps: deps}
		b.byName[n.name] = n
		b.graph.AddNode(n)
	}

	nodes := b.graph.Nodes()
	for nodes.Next() {
		n := nodes.Node().(*bumpnode)
		for _, dep := range n.deps {
			if d, ok := b.byName[dep]; ok && d.name != n.name {
				// edge dependency -> dependent, so graph.From(dep) finds reverse deps
				b.graph.SetEdge(b.graph.NewEdge(d, n))
			}
		}
	}

	if _, err := topo.Sort(b.graph); err != nil {
		uo, ok := err.(topo.Unorderable)
		if !ok {
			return nil, err
		}
		for _, component := range uo {
			for _, n := range component {
				from := b.graph.From(n.ID())
				for from.Next() {
					b.graph.RemoveEdge(n.ID(), from.Node().ID())
				}
			}
		}
		if _, err := topo.Sort(b.graph); err != nil {
			return nil, xerrors.Errorf("could not break dependency cycles: %w", err)
		}
	}

	return b, nil
}

// bumpPkg increments pkg and every package depending on it, transitively.
func (b *bumpctx) bumpPkg(pkg string) ([]revIncrement, error) {
	if b.bumped[pkg] {
		return nil, nil
	}
	n, ok := b.byName[pkg]
	if !ok {
		return nil, fmt.Errorf("unknown package %q", pkg)
	}
	b.bumped[pkg] = true

	inc := []revIncrement{{path: n.path, pkg: n.name, current: n.rev, new: n.rev + 1}}
	dependents := b.graph.From(n.id)
	for dependents.Next() {
		d := dependents.Node().(*bumpnode)
		tmp, err := b.bumpPkg(d.name)
		if err != nil {
			return nil, err
		}
		inc = append(inc, tmp...)
	}
	return inc, nil
}

func manifestPath(dir string) (string, error) {
	for _, name := range []string{"cppack.json", "cppack.yaml", "cppack.yml", "cppack.toml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no manifest found in %s", dir)
}

func bump(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("bump", flag.ExitOnError)
	var (
		dir   = fset.String("dir", "pkgs", "directory containing one subdirectory per package")
		write = fset.Bool("w", false, "write changes (default is a dry run)")
	)
	fset.Usage = usage(fset, bumpHelp)
	fset.Parse(args)

	if fset.NArg() == 0 {
		fset.Usage()
		return fmt.Errorf("bump: at least one package name is required")
	}

	b, err := newBumpctx(*dir)
	if err != nil {
		return err
	}

	var inc []revIncrement
	for _, name := range fset.Args() {
		tmp, err := b.bumpPkg(name)
		if err != nil {
			return err
		}
		inc = append(inc, tmp...)
	}

	for _, i := range inc {
		if *write {
			if err := i.perform(); err != nil {
				return err
			}
		}
		fmt.Printf("bump %s: pkg-rev %d -> %d\n", i.pkg, i.current, i.new)
	}
	return nil
}
