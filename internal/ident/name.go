// Package ident implements the identity model of the system: names,
// versions, version intervals, dependency expressions, and package IDs.
package ident

import (
	"github.com/cppack/cppack"
)

// MaxNameLength is the longest a package or library Name may be.
const MaxNameLength = 64

// Name is a validated package or library identifier: a non-empty ASCII
// token matching [a-z0-9][a-z0-9._-]*, length <= 64.
type Name string

// ParseName validates s as a Name, returning InvalidName on failure.
func ParseName(s string) (Name, error) {
	if s == "" {
		return "", cppack.Errorf(cppack.MarkerInvalidName, "empty name")
	}
	if len(s) > MaxNameLength {
		return "", cppack.Errorf(cppack.MarkerInvalidName, "name %q exceeds %d bytes", s, MaxNameLength)
	}
	if !isNameStart(s[0]) {
		return "", cppack.Errorf(cppack.MarkerInvalidName, "name %q must start with [a-z0-9]", s)
	}
	for i := 1; i < len(s); i++ {
		if !isNameRune(s[i]) {
			return "", cppack.Errorf(cppack.MarkerInvalidName, "name %q contains invalid byte %q at offset %d", s, s[i], i)
		}
	}
	return Name(s), nil
}

func isNameStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func isNameRune(b byte) bool {
	return isNameStart(b) || b == '.' || b == '_' || b == '-'
}

// String formats the name back to its canonical textual form.
func (n Name) String() string { return string(n) }

// Valid reports whether n still satisfies the name grammar; useful after
// constructing a Name by means other than ParseName (e.g. in tests).
func (n Name) Valid() bool {
	_, err := ParseName(string(n))
	return err == nil
}
