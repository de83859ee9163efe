package buildgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio"

	"github.com/cppack/cppack"
)

// DepRecord is the dependency database's record for one compile node: the
// cache key it last succeeded (or failed) with, and the headers the
// compiler reported it actually depends on.
type DepRecord struct {
	CacheKey string   `json:"cache-key"`
	Headers  []string `json:"headers"`
	// Failed marks that the last attempt with this CacheKey did not
	// succeed. The header list from the last successful attempt (or the
	// initial discovery) is preserved rather than cleared, so a rebuild
	// after a fix still knows which headers to watch.
	Failed bool `json:"failed,omitempty"`
}

// DepDB is a crash-safe, one-JSON-file-per-node record store. Each record
// is published via stage-then-rename, so a reader never observes a
// half-written record; concurrent node completions never corrupt each
// other's files since each owns a distinct path.
type DepDB struct {
	dir string
	mu  sync.Mutex
}

// OpenDepDB opens (creating if necessary) a dependency database rooted at
// dir.
func OpenDepDB(dir string) (*DepDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cppack.Wrap(cppack.MarkerDiskFull, err, "create dependency database "+dir)
	}
	return &DepDB{dir: dir}, nil
}

// NodeKey derives a stable identity for a compile node from the library it
// belongs to and the source file it compiles, independent of the node's
// transient graph id.
func NodeKey(pkg, lib, source string) string {
	h := sha256.New()
	h.Write([]byte(pkg))
	h.Write([]byte{0})
	h.Write([]byte(lib))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

func (db *DepDB) path(key string) string {
	return filepath.Join(db.dir, key+".json")
}

// Get returns the record for key, if one has been written.
func (db *DepDB) Get(key string) (DepRecord, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	data, err := os.ReadFile(db.path(key))
	if err != nil {
		return DepRecord{}, false
	}
	var rec DepRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return DepRecord{}, false
	}
	return rec, true
}

// Put atomically writes rec as key's record.
func (db *DepDB) Put(key string, rec DepRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	f, err := renameio.TempFile("", db.path(key))
	if err != nil {
		return cppack.Wrap(cppack.MarkerDiskFull, err, "stage dependency record")
	}
	defer f.Cleanup()
	if _, err := f.Write(data); err != nil {
		return cppack.Wrap(cppack.MarkerDiskFull, err, "write dependency record")
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return cppack.Wrap(cppack.MarkerDiskFull, err, "publish dependency record")
	}
	return nil
}
