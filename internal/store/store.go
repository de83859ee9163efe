// Package store implements the local content-addressed package cache: the
// directory layout under a cache root holding unpacked source trees keyed
// by package identity, plus atomic publish-on-fetch semantics so that a
// crash or interrupted download never leaves a partial entry visible.
package store

import (
	"os"
	"path/filepath"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/ident"
	"github.com/cppack/cppack/internal/manifest"
)

// Store is a cache root directory laid out as:
//
//	<root>/pkgs/<name>@<version>~<rev>/   unpacked source tree + manifest
//	<root>/tmp/                           staging area for in-progress fetches
type Store struct {
	Root string
}

// Open returns a Store rooted at dir, creating the directory layout if it
// does not already exist. A clean process exit sweeps tmp/ of any staging
// directory left behind, including ones abandoned by a previous invocation
// that crashed before its own deferred cleanup in Fetch ran.
func Open(dir string) (*Store, error) {
	s := &Store{Root: dir}
	for _, sub := range []string{s.pkgsDir(), s.tmpDir()} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, cppack.Wrap(cppack.MarkerDiskFull, err, "create store directory "+sub)
		}
	}
	cppack.RegisterAtExit(s.sweepStaleStaging)
	return s, nil
}

// sweepStaleStaging removes every entry under tmp/, the store's staging
// area. Fetch already removes its own staging directory via defer on any
// failure; this is the backstop for a process that didn't get to run that
// defer, so the next clean exit still leaves the cache free of debris.
func (s *Store) sweepStaleStaging() error {
	entries, err := os.ReadDir(s.tmpDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.tmpDir(), e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) pkgsDir() string { return filepath.Join(s.Root, "pkgs") }
func (s *Store) tmpDir() string  { return filepath.Join(s.Root, "tmp") }

// Path returns the directory an entry for id would live in, whether or not
// it has been fetched yet.
func (s *Store) Path(id ident.PkgID) string {
	return filepath.Join(s.pkgsDir(), id.String())
}

// Has reports whether id's source tree is already present and complete.
// Completeness is judged by the presence of the ".cppack-complete" marker
// file that publishComplete writes last, after every other file is in place, so a
// tree left behind by a killed process never reads as present.
func (s *Store) Has(id ident.PkgID) bool {
	_, err := os.Stat(filepath.Join(s.Path(id), completeMarker))
	return err == nil
}

// VerifyEntry checks that an existing, complete entry's on-disk manifest
// still identifies as id, without touching the network — the store's
// open-time counterpart to Fetch's post-unpack check. Per spec §4.3,
// validation errors in an existing entry are reported as CorruptedCacheEntry
// but the entry is left exactly as found; callers that want it replaced
// must Remove it explicitly before fetching again.
func (s *Store) VerifyEntry(id ident.PkgID) error {
	m, err := manifest.Load(s.Path(id))
	if err != nil {
		return cppack.Wrap(cppack.MarkerCorruptedCache, err, "load manifest for store entry "+id.String())
	}
	got := ident.PkgID{Name: m.Name, Version: m.Version, PkgRev: m.PkgRev}
	if !got.Equal(id) {
		return cppack.Errorf(cppack.MarkerCorruptedCache,
			"store entry %s contains manifest identifying as %s", id, got)
	}
	return nil
}

// completeMarker is written last by publishComplete, after the rename that
// makes the rest of the tree visible, so Has can't observe a tree that
// looks complete but is still being populated by another process using
// the same staging directory naming convention.
const completeMarker = ".cppack-complete"

// List returns the PkgIDs of every complete entry currently in the store.
func (s *Store) List() ([]ident.PkgID, error) {
	entries, err := os.ReadDir(s.pkgsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []ident.PkgID
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := ident.ParsePkgID(e.Name())
		if err != nil {
			continue // not one of ours; skip rather than fail the whole listing
		}
		if s.Has(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Remove deletes id's entry entirely, used by garbage collection.
func (s *Store) Remove(id ident.PkgID) error {
	return os.RemoveAll(s.Path(id))
}
