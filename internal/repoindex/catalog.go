package repoindex

import (
	"context"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/xerrors"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/manifest"
)

// IndexFileName is the name of the repository index file under a Source's
// base path.
const IndexFileName = "index.json.gz"

// schemaVersion is the only index schema this reader understands. A
// repository whose index declares a newer version is refused outright
// rather than parsed partially.
const schemaVersion = 1

// Entry describes one published package revision in a repository index.
type Entry struct {
	ID       ident.PkgID       `json:"id"`
	Manifest manifest.Manifest `json:"manifest"`
	// ArchiveName is the file, relative to the repository's base path,
	// containing the package's content-addressed archive.
	ArchiveName string `json:"archive"`
	// Digest is the archive's content hash, "sha256:<hex>".
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
}

type wireIndex struct {
	SchemaVersion int     `json:"schema-version"`
	Entries       []Entry `json:"entries"`
}

// Catalog holds the most recently fetched index for a Source, supporting
// concurrent readers during a Refresh via an atomic pointer swap: readers
// never observe a half-updated index.
type Catalog struct {
	src Source
	cur atomic.Pointer[wireIndex]
}

// NewCatalog returns a Catalog with no index loaded; call Refresh before
// using Find/List.
func NewCatalog(src Source) *Catalog {
	return &Catalog{src: src}
}

// Source returns the repository location this catalog was built against, so
// a caller that found an entry via Find/List knows where to fetch its
// archive from.
func (c *Catalog) Source() Source { return c.src }

// refreshMaxAttempts and refreshInitialBackoff implement spec.md §7's
// retry policy: 3 attempts, doubling from 1s, applied only to transient
// network errors. A definitive "no such repository" (HTTP 404) or a
// malformed/too-new index is not transient and fails on the first attempt.
const refreshMaxAttempts = 3

var refreshInitialBackoff = time.Second

// Refresh fetches and atomically installs the repository's current index.
// On error the previously installed index (if any) remains in effect.
func Refresh(ctx context.Context, c *Catalog) error {
	backoff := refreshInitialBackoff
	var lastErr error
	for attempt := 0; attempt < refreshMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		idx, err := fetchIndex(ctx, c.src)
		if err == nil {
			c.cur.Store(idx)
			return nil
		}
		lastErr = err
		if !cppack.Is(err, cppack.MarkerNetworkFailure) {
			// Missing repository and schema errors are not transient: fail
			// fast instead of retrying a doomed request.
			return err
		}
	}
	return lastErr
}

// fetchIndex performs one untried-retry attempt at reading and decoding the
// repository's index.
func fetchIndex(ctx context.Context, src Source) (*wireIndex, error) {
	rc, err := Reader(ctx, src, IndexFileName, true)
	if err != nil {
		var notFound *ErrNotFound
		if xerrors.As(err, &notFound) || os.IsNotExist(err) {
			return nil, cppack.Wrap(cppack.MarkerRepoSyncMissing, err, "fetch repository index")
		}
		return nil, cppack.Wrap(cppack.MarkerNetworkFailure, err, "fetch repository index")
	}
	defer rc.Close()

	return decodeIndex(rc)
}

// Find returns the entry for id, if the installed index has one.
func (c *Catalog) Find(id ident.PkgID) (Entry, bool) {
	idx := c.cur.Load()
	if idx == nil {
		return Entry{}, false
	}
	for _, e := range idx.Entries {
		if e.ID.Equal(id) {
			return e, true
		}
	}
	return Entry{}, false
}

// List returns every entry for the named package, highest (version,
// pkg-rev) first.
func (c *Catalog) List(name ident.Name) []Entry {
	idx := c.cur.Load()
	if idx == nil {
		return nil
	}
	var out []Entry
	for _, e := range idx.Entries {
		if e.ID.Name == name {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}

// Names returns every distinct package name present in the installed
// index.
func (c *Catalog) Names() []string {
	idx := c.cur.Load()
	if idx == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range idx.Entries {
		n := string(e.ID.Name)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}
