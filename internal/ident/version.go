package ident

import (
	"encoding/json"

	"github.com/Masterminds/semver/v3"

	"github.com/cppack/cppack"
)

// Version is a semantic version (MAJOR.MINOR.PATCH with optional
// pre-release and build metadata), ordered by semver rules.
type Version struct {
	v *semver.Version
}

// ParseVersion parses s as a semver version, returning InvalidVersion on
// failure.
func ParseVersion(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, cppack.Wrap(cppack.MarkerInvalidVersion, err, "parse version "+s)
	}
	return Version{v: v}, nil
}

// String formats the version back to its canonical textual form, such that
// ParseVersion(v.String()) reproduces v.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// Compare returns -1, 0, or +1 as v is less than, equal to, or greater than
// o, by semver precedence rules.
func (v Version) Compare(o Version) int {
	return v.v.Compare(o.v)
}

// Less reports whether v orders strictly before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// Equal reports version equality (including pre-release, ignoring build
// metadata per semver precedence rules).
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// IsZero reports whether v is the zero Version (never successfully parsed).
func (v Version) IsZero() bool { return v.v == nil }

// NextPatch returns the version one patch release ahead of v, used to build
// the half-open interval for the "@" operator.
func (v Version) NextPatch() Version {
	return Version{v: ptr(v.v.IncPatch())}
}

// NextMinor returns the version one minor release ahead of v (patch reset
// to 0), used for the "~" operator.
func (v Version) NextMinor() Version {
	return Version{v: ptr(v.v.IncMinor())}
}

// NextMajor returns the version one major release ahead of v (minor/patch
// reset to 0), used for the "^" operator.
func (v Version) NextMajor() Version {
	return Version{v: ptr(v.v.IncMajor())}
}

func ptr(v semver.Version) *semver.Version { return &v }

// MarshalJSON encodes the version as its canonical string, the same form
// repository indices and package IDs use on disk.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON parses the version from its canonical string form.
func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*v = Version{}
		return nil
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
