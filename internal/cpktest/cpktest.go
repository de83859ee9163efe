// Package cpktest collects the small pieces of test infrastructure that
// would otherwise be copy-pasted into every package that needs a fake
// repository to fetch or solve against: building an in-memory tar.gz
// archive, hashing it the way internal/store verifies archives, and
// writing a gzip+JSON repository index file for internal/repoindex to
// read back. Modeled on the teacher's own per-package test-helper
// packages rather than a single monolithic fixtures file.
package cpktest

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"
)

// BuildTarGz packs files (path -> content) into an in-memory tar.gz
// archive, the same layout internal/store.Fetch unpacks and
// internal/store.PackArchive produces.
func BuildTarGz(t testing.TB, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Digest returns b's content hash in the "sha256:<hex>" form
// internal/repoindex.Entry.Digest and internal/store.Fetch use.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// WriteGzippedIndex writes a gzip-compressed body to path, letting a test
// build a repository index file byte-for-byte without going through
// internal/repoindex.WriteIndexFile when it wants to feed in a raw or
// deliberately malformed payload.
func WriteGzippedIndex(t testing.TB, path string, body []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

// MustMarshal JSON-encodes v or fails the test, for building inline index
// or manifest fixtures without hand-written JSON strings.
func MustMarshal(t testing.TB, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
