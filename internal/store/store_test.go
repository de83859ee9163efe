package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/cpktest"
	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/repoindex"
)

func TestFetchVerifiesAndPublishesAtomically(t *testing.T) {
	archive := cpktest.BuildTarGz(t, map[string]string{
		"src/widget.cc": "// widget\n",
		"cppack.json":   `{"name":"widgets","version":"1.0.0"}`,
	})

	repoDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(repoDir, "widgets@1.0.0~1.tar.gz"), archive, 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.FileServer(http.Dir(repoDir)))
	defer srv.Close()

	storeDir := t.TempDir()
	s, err := Open(storeDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	v, _ := ident.ParseVersion("1.0.0")
	id := ident.PkgID{Name: "widgets", Version: v, PkgRev: 1}
	entry := repoindex.Entry{
		ID:          id,
		ArchiveName: "widgets@1.0.0~1.tar.gz",
		Digest:      cpktest.Digest(archive),
		Size:        int64(len(archive)),
	}

	if s.Has(id) {
		t.Fatal("Has: want false before Fetch")
	}
	if err := Fetch(context.Background(), s, repoindex.Source{Path: srv.URL}, entry); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !s.Has(id) {
		t.Fatal("Has: want true after Fetch")
	}

	want := "// widget\n"
	got, err := os.ReadFile(filepath.Join(s.Path(id), "src/widget.cc"))
	if err != nil {
		t.Fatalf("read unpacked file: %v", err)
	}
	if string(got) != want {
		t.Errorf("unpacked content = %q, want %q", got, want)
	}

	// Fetching an already-present entry is a no-op, not a re-download.
	if err := Fetch(context.Background(), s, repoindex.Source{Path: "http://127.0.0.1:1"}, entry); err != nil {
		t.Errorf("Fetch on already-present entry should skip the network: %v", err)
	}
}

func TestFetchRejectsDigestMismatch(t *testing.T) {
	archive := cpktest.BuildTarGz(t, map[string]string{"x": "y"})
	repoDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(repoDir, "bad@1.0.0~1.tar.gz"), archive, 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.FileServer(http.Dir(repoDir)))
	defer srv.Close()

	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	v, _ := ident.ParseVersion("1.0.0")
	id := ident.PkgID{Name: "bad", Version: v, PkgRev: 1}
	entry := repoindex.Entry{ID: id, ArchiveName: "bad@1.0.0~1.tar.gz", Digest: "sha256:0000"}

	if err := Fetch(context.Background(), s, repoindex.Source{Path: srv.URL}, entry); err == nil {
		t.Fatal("Fetch: want error for digest mismatch, got nil")
	}
	if s.Has(id) {
		t.Error("Has: entry should not be visible after a failed Fetch")
	}
}

func TestFetchRejectsManifestMismatch(t *testing.T) {
	// Archive is internally consistent (digest matches its own bytes) but
	// its embedded manifest names a different package than the entry
	// claims to be.
	archive := cpktest.BuildTarGz(t, map[string]string{"cppack.json": `{"name":"impostor","version":"1.0.0"}`})
	repoDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(repoDir, "widgets@1.0.0~1.tar.gz"), archive, 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.FileServer(http.Dir(repoDir)))
	defer srv.Close()

	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	v, _ := ident.ParseVersion("1.0.0")
	id := ident.PkgID{Name: "widgets", Version: v, PkgRev: 1}
	entry := repoindex.Entry{
		ID: id, ArchiveName: "widgets@1.0.0~1.tar.gz",
		Digest: cpktest.Digest(archive), Size: int64(len(archive)),
	}

	err = Fetch(context.Background(), s, repoindex.Source{Path: srv.URL}, entry)
	if err == nil {
		t.Fatal("Fetch: want error for manifest/entry mismatch, got nil")
	}
	if !cppack.Is(err, cppack.MarkerManifestMismatch) {
		t.Errorf("Fetch error marker = %v, want MarkerManifestMismatch", err)
	}
	if s.Has(id) {
		t.Error("Has: entry should not be visible after a failed Fetch")
	}
}

func TestVerifyEntryDetectsCorruption(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	v, _ := ident.ParseVersion("1.0.0")
	id := ident.PkgID{Name: "widgets", Version: v, PkgRev: 1}

	// Hand-place an entry whose manifest identifies as a different package,
	// the way a corrupted or tampered cache entry would look.
	if err := os.MkdirAll(s.Path(id), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Path(id), "cppack.json"), []byte(`{"name":"other","version":"1.0.0"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Path(id), completeMarker), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if !s.Has(id) {
		t.Fatal("Has: want true for a fully-written entry")
	}
	err = s.VerifyEntry(id)
	if err == nil {
		t.Fatal("VerifyEntry: want error for mismatched manifest, got nil")
	}
	if !cppack.Is(err, cppack.MarkerCorruptedCache) {
		t.Errorf("VerifyEntry error marker = %v, want MarkerCorruptedCache", err)
	}
}

func TestListSkipsIncompleteEntries(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	v, _ := ident.ParseVersion("2.0.0")
	id := ident.PkgID{Name: "partial", Version: v, PkgRev: 1}
	if err := os.MkdirAll(s.Path(id), 0o755); err != nil {
		t.Fatal(err)
	}
	// No completion marker written: this entry must not be listed.
	ids, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	for _, got := range ids {
		if got.Equal(id) {
			t.Fatalf("List: incomplete entry %v should not appear", id)
		}
	}
}
