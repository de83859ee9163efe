package buildgraph

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// UnitKind classifies one discovered source file.
type UnitKind int

const (
	UnitLibrarySource UnitKind = iota
	UnitMainSource
	UnitTestSource
	UnitHeader
)

// Unit is one file discovered under a library's source tree.
type Unit struct {
	Kind UnitKind
	// Path is absolute.
	Path string
	// Public is only meaningful for UnitHeader: whether the header lives
	// under an include/ subtree and is therefore part of the library's
	// exported interface.
	Public bool
}

var sourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true, ".C": true,
}

var headerExts = map[string]bool{
	".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".h++": true, ".inl": true,
}

// discoverUnits walks root and classifies every source and header file it
// finds. Directories named "build" or starting with "." are skipped, the
// way a source tree's own build output and VCS metadata are never
// themselves build inputs.
func discoverUnits(root string) ([]Unit, error) {
	var units []Unit
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if name != "." && (name == "build" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if u, ok := classify(root, path); ok {
			units = append(units, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Path < units[j].Path })
	return units, nil
}

// classify inspects one file's path relative to root and decides whether
// (and how) it participates in the build.
func classify(root, path string) (Unit, bool) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)

	if headerExts[ext] {
		return Unit{Kind: UnitHeader, Path: path, Public: underInclude(root, path)}, true
	}
	if !sourceExts[ext] {
		return Unit{}, false
	}
	switch {
	case strings.HasSuffix(stem, ".main"):
		return Unit{Kind: UnitMainSource, Path: path}, true
	case strings.HasSuffix(stem, ".test"):
		return Unit{Kind: UnitTestSource, Path: path}, true
	default:
		return Unit{Kind: UnitLibrarySource, Path: path}, true
	}
}

// underInclude reports whether path has an "include" path component
// between root and the file itself.
func underInclude(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
		if part == "include" {
			return true
		}
	}
	return false
}
