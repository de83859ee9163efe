package manifest

import (
	"fmt"

	"github.com/cppack/cppack/internal/ident"
)

// fromGeneric converts the generic map produced by any of the three codecs
// (json.go/yaml.go/toml.go) into a canonical Manifest. Working from a
// common map[string]interface{} representation — rather than three parallel
// sets of struct tags — lets all three wire formats share one conversion
// path and one set of error messages, and naturally supports the "using"
// field's two shapes (a bare library name, or {lib, for: lib|app|test}).
func fromGeneric(raw map[string]interface{}) (*Manifest, error) {
	m := &Manifest{PkgRev: 1}

	name, ok := asString(raw["name"])
	if !ok || name == "" {
		return nil, errf("manifest missing required field \"name\"")
	}
	n, err := ident.ParseName(name)
	if err != nil {
		return nil, err
	}
	m.Name = n

	versionStr, ok := asString(raw["version"])
	if !ok || versionStr == "" {
		return nil, errf("manifest missing required field \"version\"")
	}
	v, err := ident.ParseVersion(versionStr)
	if err != nil {
		return nil, err
	}
	m.Version = v

	if rev, present := raw["pkg-rev"]; present {
		i, ok := asInt(rev)
		if !ok || i < 1 {
			return nil, errf("pkg-rev must be an integer >= 1")
		}
		m.PkgRev = i
	}

	if lic, ok := asString(raw["license"]); ok && lic != "" {
		if err := ValidateSPDX(lic); err != nil {
			return nil, err
		}
		m.License = lic
	}

	if desc, ok := asString(raw["description"]); ok {
		m.Description = desc
	}

	if up, ok := asString(raw["upstream"]); ok {
		m.Upstream = up
	}

	deps, err := parseDepList(raw["dependencies"])
	if err != nil {
		return nil, fmt.Errorf("dependencies: %w", err)
	}
	m.Dependencies = deps

	libsRaw := asSlice(raw["libraries"])
	if libsRaw == nil {
		// "lib" is the single-library shorthand.
		if lib, ok := raw["lib"]; ok {
			libsRaw = []interface{}{lib}
		}
	}
	if len(libsRaw) == 0 {
		// A package always has at least one library; default it to the
		// package root, rooted at the manifest's own directory.
		libsRaw = []interface{}{map[string]interface{}{
			"name": string(m.Name),
			"path": ".",
		}}
	}

	seen := make(map[ident.Name]bool, len(libsRaw))
	for _, lr := range libsRaw {
		lib, err := parseLibrary(lr, m.Name)
		if err != nil {
			return nil, err
		}
		if seen[lib.Name] {
			return nil, errf("duplicate library name %q", lib.Name)
		}
		seen[lib.Name] = true
		m.Libraries = append(m.Libraries, lib)
	}

	return m, nil
}

func parseLibrary(raw interface{}, pkgName ident.Name) (Library, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return Library{}, errf("library entry must be a table/object")
	}

	var lib Library
	lib.Path = "."
	if name, ok := asString(obj["name"]); ok && name != "" {
		n, err := ident.ParseName(name)
		if err != nil {
			return Library{}, err
		}
		lib.Name = n
	} else {
		lib.Name = pkgName
	}
	if path, ok := asString(obj["path"]); ok && path != "" {
		lib.Path = path
	}

	uses, err := parseUseList(obj["using"], ForLib)
	if err != nil {
		return Library{}, fmt.Errorf("library %s: using: %w", lib.Name, err)
	}
	lib.Uses = uses

	testUses, err := parseUseList(obj["test-using"], ForTest)
	if err != nil {
		return Library{}, fmt.Errorf("library %s: test-using: %w", lib.Name, err)
	}
	lib.TestUses = testUses

	deps, err := parseDepList(obj["dependencies"])
	if err != nil {
		return Library{}, fmt.Errorf("library %s: dependencies: %w", lib.Name, err)
	}
	lib.Dependencies = deps

	testDeps, err := parseDepList(obj["test-dependencies"])
	if err != nil {
		return Library{}, fmt.Errorf("library %s: test-dependencies: %w", lib.Name, err)
	}
	lib.TestDependencies = testDeps

	return lib, nil
}

// parseUseList parses a "using"/"test-using" list: each entry is either a
// bare library name, or a {lib, for} table.
func parseUseList(raw interface{}, defaultFor UseFor) ([]Use, error) {
	items := asSlice(raw)
	if items == nil {
		return nil, nil
	}
	out := make([]Use, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, Use{Lib: v, For: defaultFor})
		case map[string]interface{}:
			lib, ok := asString(v["lib"])
			if !ok || lib == "" {
				return nil, errf("using entry missing \"lib\"")
			}
			forVal := defaultFor
			if f, ok := asString(v["for"]); ok && f != "" {
				switch UseFor(f) {
				case ForLib, ForApp, ForTest:
					forVal = UseFor(f)
				default:
					return nil, errf("using entry has invalid for=%q", f)
				}
			}
			out = append(out, Use{Lib: lib, For: forVal})
		default:
			return nil, errf("using entry must be a string or a {lib, for} table")
		}
	}
	return out, nil
}

func parseDepList(raw interface{}) ([]Dependency, error) {
	items := asSlice(raw)
	if items == nil {
		return nil, nil
	}
	out := make([]Dependency, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, errf("dependency entry must be a string dependency expression")
		}
		expr, err := ident.ParseDepExpr(s)
		if err != nil {
			return nil, err
		}
		out = append(out, Dependency{Expr: expr})
	}
	return out, nil
}

// --- generic decoding helpers -------------------------------------------
//
// Each wire format decodes numbers/strings/maps slightly differently
// (encoding/json yields float64 for all numbers, gopkg.in/yaml.v3 yields
// int/int64, pelletier/go-toml yields int64), so these helpers normalize
// across all three rather than duplicating conversion logic per codec.

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}
