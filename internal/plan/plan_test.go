package plan

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cppack/cppack/internal/cpktest"
	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/manifest"
	"github.com/cppack/cppack/internal/repoindex"
	"github.com/cppack/cppack/internal/solver"
	"github.com/cppack/cppack/internal/store"
)

func mustVersion(t *testing.T, s string) ident.Version {
	t.Helper()
	v, err := ident.ParseVersion(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestMaterializeFetchesAndBuildsUsageMap(t *testing.T) {
	barArchive := cpktest.BuildTarGz(t, map[string]string{
		"include/bar.h": "#pragma once\n",
		"cppack.json":   `{"name":"bar","version":"1.0.0"}`,
	})
	fooArchive := cpktest.BuildTarGz(t, map[string]string{
		"extra/include/extra.h": "#pragma once\n",
		"cppack.json":           `{"name":"foo","version":"1.0.0"}`,
	})

	repoDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(repoDir, "bar@1.0.0~1.tar.gz"), barArchive, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repoDir, "foo@1.0.0~1.tar.gz"), fooArchive, 0o644); err != nil {
		t.Fatal(err)
	}

	index := fmt.Sprintf(`{
		"schema-version": 1,
		"entries": [
			{"id": "bar@1.0.0~1", "manifest": {"name": "bar", "version": "1.0.0", "pkg-rev": 1, "libraries": [{"name": "bar", "path": "."}]}, "archive": "bar@1.0.0~1.tar.gz", "digest": %q, "size": %d},
			{"id": "foo@1.0.0~1", "manifest": {"name": "foo", "version": "1.0.0", "pkg-rev": 1, "libraries": [{"name": "foo", "path": "."}]}, "archive": "foo@1.0.0~1.tar.gz", "digest": %q, "size": %d}
		]
	}`, cpktest.Digest(barArchive), len(barArchive), cpktest.Digest(fooArchive), len(fooArchive))
	cpktest.WriteGzippedIndex(t, filepath.Join(repoDir, repoindex.IndexFileName), []byte(index))

	srv := httptest.NewServer(http.FileServer(http.Dir(repoDir)))
	defer srv.Close()

	cat := repoindex.NewCatalog(repoindex.Source{Path: srv.URL})
	if err := repoindex.Refresh(context.Background(), cat); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	barID := ident.PkgID{Name: "bar", Version: mustVersion(t, "1.0.0"), PkgRev: 1}
	fooID := ident.PkgID{Name: "foo", Version: mustVersion(t, "1.0.0"), PkgRev: 1}

	barManifest := &manifest.Manifest{
		Name: "bar", Version: barID.Version, PkgRev: 1,
		Libraries: []manifest.Library{{Name: "bar", Path: "."}},
	}
	fooManifest := &manifest.Manifest{
		Name: "foo", Version: fooID.Version, PkgRev: 1,
		Libraries: []manifest.Library{
			{
				Name: "foo", Path: ".",
				Uses: []manifest.Use{{Lib: "extra", For: manifest.ForLib}, {Lib: "bar", For: manifest.ForLib}},
			},
			{Name: "extra", Path: "extra"},
		},
	}

	result := &solver.Result{
		Assignments: map[ident.Name]solver.Assignment{
			"bar": {ID: barID, Manifest: barManifest, EnabledLibs: []string{"bar"}},
			"foo": {ID: fooID, Manifest: fooManifest, EnabledLibs: []string{"foo"}},
		},
	}

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	p, err := Materialize(context.Background(), result, []*repoindex.Catalog{cat}, st, 4)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	if !st.Has(barID) || !st.Has(fooID) {
		t.Fatal("Materialize: expected both packages to be fetched into the store")
	}

	fooUsage, ok := p.Usages[LibKey{Package: "foo", Library: "foo"}]
	if !ok {
		t.Fatal("Usages: missing foo/foo")
	}
	wantLinks := []LibKey{{Package: "bar", Library: "bar"}, {Package: "foo", Library: "extra"}}
	if len(fooUsage.Links) != len(wantLinks) {
		t.Fatalf("foo/foo Links = %v, want %v", fooUsage.Links, wantLinks)
	}
	for i, l := range wantLinks {
		if fooUsage.Links[i] != l {
			t.Errorf("foo/foo Links[%d] = %v, want %v", i, fooUsage.Links[i], l)
		}
	}

	extraUsage, ok := p.Usages[LibKey{Package: "foo", Library: "extra"}]
	if !ok {
		t.Fatal("Usages: missing foo/extra (should be pulled in by foo's sibling \"using\")")
	}
	wantInclude := filepath.Join(st.Path(fooID), "extra", "include")
	if len(extraUsage.Includes) != 1 || extraUsage.Includes[0] != wantInclude {
		t.Errorf("foo/extra Includes = %v, want [%s]", extraUsage.Includes, wantInclude)
	}

	barUsage, ok := p.Usages[LibKey{Package: "bar", Library: "bar"}]
	if !ok {
		t.Fatal("Usages: missing bar/bar")
	}
	wantBarInclude := filepath.Join(st.Path(barID), "include")
	if len(barUsage.Includes) != 1 || barUsage.Includes[0] != wantBarInclude {
		t.Errorf("bar/bar Includes = %v, want [%s]", barUsage.Includes, wantBarInclude)
	}
}

func TestMaterializeRejectsUnresolvedCrossPackageUsing(t *testing.T) {
	fooArchive := cpktest.BuildTarGz(t, map[string]string{"cppack.json": `{"name":"foo","version":"1.0.0"}`})
	repoDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(repoDir, "foo@1.0.0~1.tar.gz"), fooArchive, 0o644); err != nil {
		t.Fatal(err)
	}
	index := fmt.Sprintf(`{"schema-version": 1, "entries": [
		{"id": "foo@1.0.0~1", "manifest": {"name": "foo", "version": "1.0.0", "pkg-rev": 1, "libraries": [{"name": "foo", "path": "."}]}, "archive": "foo@1.0.0~1.tar.gz", "digest": %q, "size": %d}
	]}`, cpktest.Digest(fooArchive), len(fooArchive))
	cpktest.WriteGzippedIndex(t, filepath.Join(repoDir, repoindex.IndexFileName), []byte(index))

	srv := httptest.NewServer(http.FileServer(http.Dir(repoDir)))
	defer srv.Close()

	cat := repoindex.NewCatalog(repoindex.Source{Path: srv.URL})
	if err := repoindex.Refresh(context.Background(), cat); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	fooID := ident.PkgID{Name: "foo", Version: mustVersion(t, "1.0.0"), PkgRev: 1}
	fooManifest := &manifest.Manifest{
		Name: "foo", Version: fooID.Version, PkgRev: 1,
		Libraries: []manifest.Library{
			{Name: "foo", Path: ".", Uses: []manifest.Use{{Lib: "ghost", For: manifest.ForLib}}},
		},
	}
	result := &solver.Result{
		Assignments: map[ident.Name]solver.Assignment{
			"foo": {ID: fooID, Manifest: fooManifest, EnabledLibs: []string{"foo"}},
		},
	}

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// foo's archive fetches fine; the failure must come from "ghost" not
	// naming a sibling library or any package in the resolved set.
	if _, err := Materialize(context.Background(), result, []*repoindex.Catalog{cat}, st, 4); err == nil {
		t.Fatal("Materialize: want error for unresolved cross-package using, got nil")
	}
}
