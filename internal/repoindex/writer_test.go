package repoindex

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cppack/cppack/internal/cpktest"
	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/manifest"
)

func sampleEntries(t *testing.T) []Entry {
	t.Helper()
	v1, _ := ident.ParseVersion("1.0.0")
	v2, _ := ident.ParseVersion("2.0.0")
	return []Entry{
		{
			ID:          ident.PkgID{Name: "zlib", Version: v2, PkgRev: 1},
			Manifest:    manifest.Manifest{Name: "zlib", Version: v2, PkgRev: 1, Libraries: []manifest.Library{{Name: "zlib", Path: "."}}},
			ArchiveName: "zlib@2.0.0~1.tar.gz",
			Digest:      "sha256:aaaa",
			Size:        10,
		},
		{
			ID:          ident.PkgID{Name: "zlib", Version: v1, PkgRev: 1},
			Manifest:    manifest.Manifest{Name: "zlib", Version: v1, PkgRev: 1, Libraries: []manifest.Library{{Name: "zlib", Path: "."}}},
			ArchiveName: "zlib@1.0.0~1.tar.gz",
			Digest:      "sha256:bbbb",
			Size:        9,
		},
	}
}

func TestWriteAndValidateIndexFile(t *testing.T) {
	entries := sampleEntries(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json.gz")

	if err := WriteIndexFile(path, entries); err != nil {
		t.Fatalf("WriteIndexFile: %v", err)
	}

	got, err := ValidateIndexFile(path)
	if err != nil {
		t.Fatalf("ValidateIndexFile: %v", err)
	}
	// WriteIndexFile sorts by ID (descending version within name), so the
	// round trip should come back in that order already.
	want := []Entry{entries[0], entries[1]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ValidateIndexFile mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateIndexFileRejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json.gz")
	cpktest.WriteGzippedIndex(t, path, []byte(`{"schema-version": 999, "entries": []}`))

	if _, err := ValidateIndexFile(path); err == nil {
		t.Fatal("ValidateIndexFile: want error for too-new schema version, got nil")
	}
}

func TestEncodeIndexDeterministic(t *testing.T) {
	entries := sampleEntries(t)
	a, err := EncodeIndex(entries)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeIndex([]Entry{entries[1], entries[0]})
	if err != nil {
		t.Fatal(err)
	}
	idxA, err := decodeIndex(bytes.NewReader(a))
	if err != nil {
		t.Fatal(err)
	}
	idxB, err := decodeIndex(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(idxA.Entries, idxB.Entries); diff != "" {
		t.Errorf("EncodeIndex: order-independent input produced different output (-a +b):\n%s", diff)
	}
}
