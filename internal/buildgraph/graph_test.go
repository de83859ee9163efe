package buildgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/plan"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverUnitsClassifiesBySuffix(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "widget.cpp"), "// lib source\n")
	writeFile(t, filepath.Join(root, "widget.main.cpp"), "int main() { return 0; }\n")
	writeFile(t, filepath.Join(root, "widget.test.cpp"), "// test\n")
	writeFile(t, filepath.Join(root, "include", "widget.h"), "#pragma once\n")
	writeFile(t, filepath.Join(root, "src", "detail.h"), "#pragma once\n")
	writeFile(t, filepath.Join(root, "build", "stale.o"), "junk")

	units, err := discoverUnits(root)
	if err != nil {
		t.Fatal(err)
	}

	var lib, main, test, pubHeader, privHeader int
	for _, u := range units {
		switch {
		case u.Kind == UnitLibrarySource:
			lib++
		case u.Kind == UnitMainSource:
			main++
		case u.Kind == UnitTestSource:
			test++
		case u.Kind == UnitHeader && u.Public:
			pubHeader++
		case u.Kind == UnitHeader && !u.Public:
			privHeader++
		}
	}
	if lib != 1 || main != 1 || test != 1 || pubHeader != 1 || privHeader != 1 {
		t.Fatalf("classification counts = lib:%d main:%d test:%d pub:%d priv:%d, want 1 each", lib, main, test, pubHeader, privHeader)
	}
	for _, u := range units {
		if filepath.Base(u.Path) == "stale.o" {
			t.Fatal("discoverUnits: build/ directory should have been skipped")
		}
	}
}

func buildTestPlan(t *testing.T) (*plan.Plan, string) {
	t.Helper()
	store := t.TempDir()

	fooRoot := filepath.Join(store, "foo")
	writeFile(t, filepath.Join(fooRoot, "foo.cpp"), "#include \"foo.h\"\n#include \"bar.h\"\nint foo() { return bar(); }\n")
	writeFile(t, filepath.Join(fooRoot, "foo.main.cpp"), "int main() { return 0; }\n")
	writeFile(t, filepath.Join(fooRoot, "include", "foo.h"), "#pragma once\nint foo();\n")

	barRoot := filepath.Join(store, "bar")
	writeFile(t, filepath.Join(barRoot, "bar.cpp"), "int bar() { return 0; }\n")
	writeFile(t, filepath.Join(barRoot, "include", "bar.h"), "#pragma once\nint bar();\n")

	fooKey := plan.LibKey{Package: ident.Name("foo"), Library: "foo"}
	barKey := plan.LibKey{Package: ident.Name("bar"), Library: "bar"}

	p := &plan.Plan{Usages: map[plan.LibKey]plan.Usage{
		fooKey: {
			Key:      fooKey,
			Root:     fooRoot,
			Includes: []string{filepath.Join(fooRoot, "include")},
			Links:    []plan.LibKey{barKey},
		},
		barKey: {
			Key:      barKey,
			Root:     barRoot,
			Includes: []string{filepath.Join(barRoot, "include")},
		},
	}}
	return p, store
}

func TestBuildConstructsExpectedNodeGraph(t *testing.T) {
	p, store := buildTestPlan(t)
	work := filepath.Join(store, "_work")

	gr, err := Build(p, Options{WorkDir: work})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	counts := map[Kind]int{}
	for _, n := range gr.Nodes() {
		counts[n.Kind]++
	}
	// foo: 1 lib compile + 1 main compile + 1 header check; bar: 1 lib compile + 1 header check.
	if counts[KindCompile] != 3 {
		t.Errorf("compile nodes = %d, want 3", counts[KindCompile])
	}
	if counts[KindHeaderCheck] != 2 {
		t.Errorf("header-check nodes = %d, want 2", counts[KindHeaderCheck])
	}
	if counts[KindArchive] != 2 {
		t.Errorf("archive nodes = %d, want 2", counts[KindArchive])
	}
	if counts[KindLink] != 1 {
		t.Errorf("link nodes = %d, want 1", counts[KindLink])
	}

	var link *Node
	for _, n := range gr.Nodes() {
		if n.Kind == KindLink {
			link = n
		}
	}
	if link == nil {
		t.Fatal("no link node found")
	}
	deps := gr.Dependencies(link)
	if len(deps) != 3 { // its own compile + foo's archive + bar's archive
		t.Errorf("link node has %d dependencies, want 3", len(deps))
	}
}

func TestBuildRejectsMissingUsingDeclaration(t *testing.T) {
	store := t.TempDir()
	fooRoot := filepath.Join(store, "foo")
	writeFile(t, filepath.Join(fooRoot, "foo.cpp"), "#include \"bar.h\"\nint foo() { return bar(); }\n")

	barRoot := filepath.Join(store, "bar")
	writeFile(t, filepath.Join(barRoot, "include", "bar.h"), "#pragma once\nint bar();\n")

	fooKey := plan.LibKey{Package: ident.Name("foo"), Library: "foo"}
	barKey := plan.LibKey{Package: ident.Name("bar"), Library: "bar"}

	// foo does not list bar in Links, yet its source includes bar.h.
	p := &plan.Plan{Usages: map[plan.LibKey]plan.Usage{
		fooKey: {Key: fooKey, Root: fooRoot},
		barKey: {Key: barKey, Root: barRoot, Includes: []string{filepath.Join(barRoot, "include")}},
	}}

	_, err := Build(p, Options{WorkDir: filepath.Join(store, "_work")})
	if err == nil {
		t.Fatal("Build: want MissingUsingDeclaration error, got nil")
	}
}
