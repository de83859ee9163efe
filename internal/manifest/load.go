package manifest

import (
	"os"
	"path/filepath"
	"strings"
)

// manifestNames lists the recognized manifest file names, in the order
// Load tries them when given a directory.
var manifestNames = []string{"cppack.json", "cppack.yaml", "cppack.yml", "cppack.toml"}

// Load reads and validates the manifest for the package rooted at dir,
// recognizing whichever of the supported file names is present.
func Load(dir string) (*Manifest, error) {
	for _, name := range manifestNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errf("read %s: %v", path, err)
		}
		m, err := Parse(data, name)
		if err != nil {
			return nil, err
		}
		m.SourcePath = dir
		return m, nil
	}
	return nil, errf("no manifest found in %s (expected one of %s)", dir, strings.Join(manifestNames, ", "))
}

// Parse decodes manifest bytes according to the wire format implied by
// fileName's extension, then converts and validates the result.
func Parse(data []byte, fileName string) (*Manifest, error) {
	var (
		raw map[string]interface{}
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".json":
		raw, err = decodeJSON(data)
	case ".yaml", ".yml":
		raw, err = decodeYAML(data)
	case ".toml":
		raw, err = decodeTOML(data)
	default:
		return nil, errf("unrecognized manifest extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	m, err := fromGeneric(raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}
