package manifest

import "gopkg.in/yaml.v3"

func decodeYAML(data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errf("parse YAML manifest: %v", err)
	}
	return raw, nil
}
