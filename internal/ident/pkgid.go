package ident

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cppack/cppack"
)

// PkgID is a globally unique package identity: the tuple (name, version,
// pkg-rev). Higher pkg-rev with identical (name, version) supersedes lower
// for the same source content.
type PkgID struct {
	Name    Name
	Version Version
	PkgRev  int // >= 1
}

// String formats the ID as "name@version~pkg-rev", the layout also used for
// the package store's on-disk directory names.
func (id PkgID) String() string {
	return string(id.Name) + "@" + id.Version.String() + "~" + strconv.Itoa(id.PkgRev)
}

// ParsePkgID parses the "name@version~pkg-rev" form produced by String.
func ParsePkgID(s string) (PkgID, error) {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return PkgID{}, cppack.Errorf(cppack.MarkerInvalidManifest, "package id %q missing '@'", s)
	}
	name, err := ParseName(s[:at])
	if err != nil {
		return PkgID{}, err
	}
	rest := s[at+1:]
	tilde := strings.LastIndexByte(rest, '~')
	if tilde < 0 {
		return PkgID{}, cppack.Errorf(cppack.MarkerInvalidManifest, "package id %q missing '~pkg-rev'", s)
	}
	version, err := ParseVersion(rest[:tilde])
	if err != nil {
		return PkgID{}, err
	}
	rev, err := strconv.Atoi(rest[tilde+1:])
	if err != nil || rev < 1 {
		return PkgID{}, cppack.Errorf(cppack.MarkerInvalidManifest, "package id %q has invalid pkg-rev", s)
	}
	return PkgID{Name: name, Version: version, PkgRev: rev}, nil
}

// MarshalJSON encodes the ID as its canonical "name@version~pkg-rev" string.
func (id PkgID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON parses the ID from its canonical string form.
func (id *PkgID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePkgID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Equal reports whether id and o identify the same package revision.
func (id PkgID) Equal(o PkgID) bool {
	return id.Name == o.Name && id.PkgRev == o.PkgRev && id.Version.Equal(o.Version)
}

// Less orders PkgIDs by name, then by descending (version, pkg-rev) so that
// the "current" revision of a package sorts first within its name — the
// tie-break order the solver and repository catalog both use.
func (id PkgID) Less(o PkgID) bool {
	if id.Name != o.Name {
		return id.Name < o.Name
	}
	if c := id.Version.Compare(o.Version); c != 0 {
		return c > 0 // higher version first
	}
	return id.PkgRev > o.PkgRev // higher pkg-rev first
}
