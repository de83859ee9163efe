// Package manifest loads project and package manifests into a canonical,
// read-only in-memory form, recognizing JSON, YAML, and TOML variants of
// the same schema.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/ident"
)

// UseFor names the context in which a use applies: a library ("lib"), a
// main/executable source ("app"), or a test source ("test") — the
// {lib, for: lib|app|test} long form of a using-list entry.
type UseFor string

const (
	ForLib  UseFor = "lib"
	ForApp  UseFor = "app"
	ForTest UseFor = "test"
)

// Use is one entry of a library's "using" (or "test-using") list.
type Use struct {
	Lib string `json:"lib"`
	For UseFor `json:"for"` // defaults to ForLib
}

// Dependency is one parsed entry of a "dependencies" (or
// "test-dependencies") list: a dependency expression plus the required-uses
// set it carries.
type Dependency struct {
	Expr ident.DepExpr
}

// MarshalJSON encodes a Dependency as its expression's canonical string,
// matching the flat "dependencies": ["foo@1.2.3", ...] shape manifests use
// on the wire.
func (d Dependency) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Expr)
}

// UnmarshalJSON parses a Dependency from its expression's canonical string.
func (d *Dependency) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Expr)
}

// Library is one compilation-unit group within a package.
type Library struct {
	Name             ident.Name   `json:"name"`
	Path             string       `json:"path"`
	Uses             []Use        `json:"using,omitempty"`
	TestUses         []Use        `json:"test-using,omitempty"`
	Dependencies     []Dependency `json:"dependencies,omitempty"`
	TestDependencies []Dependency `json:"test-dependencies,omitempty"`
}

// Manifest is the canonical, validated representation of a package or
// project manifest.
type Manifest struct {
	Name        ident.Name    `json:"name"`
	Version     ident.Version `json:"version"`
	PkgRev      int           `json:"pkg-rev"` // >= 1; missing in source means 1
	License     string        `json:"license,omitempty"`
	Description string        `json:"description,omitempty"`
	// Upstream optionally names where this package's sources are published
	// upstream, e.g. "https://github.com/owner/repo", consulted by
	// internal/checkupstream to detect new upstream releases. Absent for
	// packages with no single upstream project (e.g. vendored forks).
	Upstream     string       `json:"upstream,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	Libraries    []Library    `json:"libraries"`

	// SourcePath is the directory the manifest was loaded from, empty for
	// manifests decoded directly from bytes (e.g. repository index entries).
	SourcePath string `json:"-"`
}

// RootLibrary returns the library that, by convention, shares the package
// name, or the sole library if there is exactly one.
func (m *Manifest) RootLibrary() (*Library, bool) {
	if len(m.Libraries) == 1 {
		return &m.Libraries[0], true
	}
	for i := range m.Libraries {
		if m.Libraries[i].Name == m.Name {
			return &m.Libraries[i], true
		}
	}
	return nil, false
}

// Library looks up a library by name within the manifest.
func (m *Manifest) Library(name ident.Name) (*Library, bool) {
	for i := range m.Libraries {
		if m.Libraries[i].Name == name {
			return &m.Libraries[i], true
		}
	}
	return nil, false
}

func (m *Manifest) String() string {
	return fmt.Sprintf("%s@%s~%d", m.Name, m.Version, m.PkgRev)
}

// errf is a small helper building an InvalidManifest error with context.
func errf(format string, args ...interface{}) error {
	return cppack.Errorf(cppack.MarkerInvalidManifest, format, args...)
}
