// Package plan turns a solved dependency assignment into a concrete
// workspace: every assigned package's source tree fetched into the local
// store, plus a usage map recording, for every enabled library, the
// include directories and sibling/cross-package libraries it links
// against. The build graph (internal/buildgraph) consumes the usage map
// without needing to know anything about how the packages it names were
// resolved.
package plan

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/manifest"
	"github.com/cppack/cppack/internal/repoindex"
	"github.com/cppack/cppack/internal/solver"
	"github.com/cppack/cppack/internal/store"
)

// LibKey identifies one library within one assigned package.
type LibKey struct {
	Package ident.Name
	Library string
}

func (k LibKey) less(o LibKey) bool {
	if k.Package != o.Package {
		return k.Package < o.Package
	}
	return k.Library < o.Library
}

// Usage is one entry of the usage map: everything the build graph needs to
// compile and link one library.
type Usage struct {
	Key      LibKey
	Root     string // the library's source directory, inside the package's store tree
	Includes []string
	Links    []LibKey
}

// Plan is the materializer's output.
type Plan struct {
	Usages map[LibKey]Usage
}

// Sorted returns p's usages in a stable, deterministic order, for callers
// that build the build graph from them (and for tests).
func (p *Plan) Sorted() []Usage {
	out := make([]Usage, 0, len(p.Usages))
	for _, u := range p.Usages {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// Materialize fetches every assigned package into st (skipping ones already
// present) and builds the usage map. catalogs is searched in order for each
// assignment's repository entry; the first match's Source is used to fetch
// the archive. At most jobs archive downloads run concurrently (10 when
// jobs is zero or negative).
func Materialize(ctx context.Context, result *solver.Result, catalogs []*repoindex.Catalog, st *store.Store, jobs int) (*Plan, error) {
	if jobs <= 0 {
		jobs = 10
	}

	eg, fetchCtx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)
	for _, asn := range result.Assignments {
		asn := asn
		entry, cat, ok := findEntry(catalogs, asn.ID)
		if !ok {
			return nil, cppack.Errorf(cppack.MarkerCorruptedCache,
				"no repository entry found for resolved package %s", asn.ID)
		}
		eg.Go(func() error {
			return store.Fetch(fetchCtx, st, cat.Source(), entry)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	p := &Plan{Usages: make(map[LibKey]Usage)}
	for name, asn := range result.Assignments {
		enabled := expandLibs(asn.Manifest, asn.EnabledLibs)

		pkgRoot := st.Path(asn.ID)
		for _, libName := range enabled {
			lib, ok := asn.Manifest.Library(ident.Name(libName))
			if !ok {
				// expandLibs only returns names that resolved; defensive only.
				continue
			}
			key := LibKey{Package: name, Library: libName}
			links, err := usageLinks(result, name, lib)
			if err != nil {
				return nil, err
			}
			p.Usages[key] = Usage{
				Key:      key,
				Root:     filepath.Join(pkgRoot, lib.Path),
				Includes: includePaths(pkgRoot, lib),
				Links:    links,
			}
		}
	}
	return p, nil
}

// expandLibs computes the full, transitively-closed set of a package's
// enabled libraries: seed is widened by following each enabled library's
// sibling "using" edges until no new sibling library is reached. Names that
// do not resolve to a sibling library are left for usageLinks to treat as
// cross-package references.
func expandLibs(m *manifest.Manifest, seed []string) []string {
	enabled := make(map[string]bool, len(seed))
	queue := make([]string, 0, len(seed))
	for _, s := range seed {
		if !enabled[s] {
			enabled[s] = true
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		libName := queue[0]
		queue = queue[1:]
		lib, ok := m.Library(ident.Name(libName))
		if !ok {
			continue
		}
		for _, u := range lib.Uses {
			if _, ok := m.Library(ident.Name(u.Lib)); !ok {
				continue // not a sibling; usageLinks resolves it cross-package
			}
			if !enabled[u.Lib] {
				enabled[u.Lib] = true
				queue = append(queue, u.Lib)
			}
		}
	}
	out := make([]string, 0, len(enabled))
	for k := range enabled {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// usageLinks resolves lib's "using" list and library-scoped dependencies
// into concrete LibKeys, validating that every cross-package reference is
// actually present in the solved result.
func usageLinks(result *solver.Result, pkg ident.Name, lib *manifest.Library) ([]LibKey, error) {
	var links []LibKey
	for _, u := range lib.Uses {
		if parentHasLibrary(result, pkg, u.Lib) {
			links = append(links, LibKey{Package: pkg, Library: u.Lib})
			continue
		}
		refs, err := crossPackageLinks(result, pkg, lib.Name, ident.Name(u.Lib))
		if err != nil {
			return nil, err
		}
		links = append(links, refs...)
	}
	for _, d := range lib.Dependencies {
		asn, ok := result.Assignments[d.Expr.Name]
		if !ok || !d.Expr.Interval.Contains(asn.ID.Version) {
			return nil, cppack.Errorf(cppack.MarkerNoDependencySoln,
				"%s/%s: library-scoped dependency %s is not satisfied by the resolved package set",
				pkg, lib.Name, d.Expr.String())
		}
		for _, req := range d.Expr.RequiredUses() {
			links = append(links, LibKey{Package: d.Expr.Name, Library: req})
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].less(links[j]) })
	return links, nil
}

func parentHasLibrary(result *solver.Result, pkg ident.Name, libName string) bool {
	asn, ok := result.Assignments[pkg]
	if !ok {
		return false
	}
	_, ok = asn.Manifest.Library(ident.Name(libName))
	return ok
}

// crossPackageLinks resolves a "using" entry that names a package-level
// dependency rather than a sibling library: the link targets every library
// of that dependency that some dependent's "using" list already requested
// (Assignment.EnabledLibs), which is exactly the set manifest validation
// already confirmed depName declares.
func crossPackageLinks(result *solver.Result, pkg ident.Name, libName ident.Name, depName ident.Name) ([]LibKey, error) {
	dep, ok := result.Assignments[depName]
	if !ok {
		return nil, cppack.Errorf(cppack.MarkerMissingUsingDecl,
			"%s/%s: using %q does not name a sibling library or a resolved dependency",
			pkg, libName, depName)
	}
	out := make([]LibKey, 0, len(dep.EnabledLibs))
	for _, l := range dep.EnabledLibs {
		out = append(out, LibKey{Package: depName, Library: l})
	}
	return out, nil
}

// includePaths returns the include directories a library exposes to its
// consumers: its own "include" subtree if one exists, otherwise its root
// directory, matching the layout the build graph's header discovery (C7)
// expects.
func includePaths(pkgRoot string, lib *manifest.Library) []string {
	base := filepath.Join(pkgRoot, lib.Path)
	inc := filepath.Join(base, "include")
	if fi, err := os.Stat(inc); err == nil && fi.IsDir() {
		return []string{inc}
	}
	return []string{base}
}

// findEntry searches catalogs in order for id, returning the first match
// and the catalog it came from.
func findEntry(catalogs []*repoindex.Catalog, id ident.PkgID) (repoindex.Entry, *repoindex.Catalog, bool) {
	for _, cat := range catalogs {
		if e, ok := cat.Find(id); ok {
			return e, cat, true
		}
	}
	return repoindex.Entry{}, nil, false
}
