package repoindex

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"
	"github.com/klauspost/compress/gzip"

	"github.com/cppack/cppack"
)

// decodeIndex reads a gzip+JSON repository index from r, rejecting any
// schema version newer than this client understands. It is the single
// decode path shared by Refresh (reading a remote/local repository) and
// ValidateIndexFile (schema-checking a locally built index before
// publishing it), so the two never drift in what they consider valid.
func decodeIndex(r io.Reader) (*wireIndex, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, cppack.Wrap(cppack.MarkerRepoSyncInvalid, err, "repository index is not gzip-compressed")
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, cppack.Wrap(cppack.MarkerRepoSyncInvalid, err, "read repository index")
	}

	var idx wireIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, cppack.Wrap(cppack.MarkerRepoSyncInvalid, err, "decode repository index")
	}
	if idx.SchemaVersion > schemaVersion {
		return nil, cppack.Errorf(cppack.MarkerRepoIndexTooNew,
			"repository index schema version %d is newer than the %d this client understands",
			idx.SchemaVersion, schemaVersion)
	}
	if idx.SchemaVersion == 0 {
		idx.SchemaVersion = schemaVersion
	}
	return &idx, nil
}

// EncodeIndex serializes entries into the gzip+JSON wire format Refresh
// reads back, sorted by ID for reproducible output.
func EncodeIndex(entries []Entry) ([]byte, error) {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID.Less(sorted[j].ID) })

	data, err := json.Marshal(wireIndex{SchemaVersion: schemaVersion, Entries: sorted})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteIndexFile builds the gzip+JSON index for entries and publishes it at
// path atomically (stage-then-rename via renameio), matching the
// never-observe-a-partial-index guarantee Refresh's readers depend on.
func WriteIndexFile(path string, entries []Entry) error {
	b, err := EncodeIndex(entries)
	if err != nil {
		return cppack.Wrap(cppack.MarkerRepoSyncInvalid, err, "encode repository index")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cppack.Wrap(cppack.MarkerDiskFull, err, "create "+filepath.Dir(path))
	}
	return renameio.WriteFile(path, b, 0o644)
}

// ValidateIndexFile decodes and schema-checks the index at path without
// installing it into any Catalog, the operation cppack's validate-repo verb
// exposes.
func ValidateIndexFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cppack.Wrap(cppack.MarkerRepoSyncMissing, err, "open "+path)
	}
	defer f.Close()
	idx, err := decodeIndex(f)
	if err != nil {
		return nil, err
	}
	return idx.Entries, nil
}
