package manifest

import "github.com/pelletier/go-toml"

// decodeTOML loads a manifest via go-toml's Tree API rather than its
// struct-tag unmarshaler: a "using" entry can be either a bare string or an
// inline table, a shape that is awkward to express as Go struct tags. Going
// through Tree.ToMap() gives the same map[string]interface{} shape as the
// JSON and YAML decoders, so all three share one conversion path.
func decodeTOML(data []byte) (map[string]interface{}, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errf("parse TOML manifest: %v", err)
	}
	return tree.ToMap(), nil
}
