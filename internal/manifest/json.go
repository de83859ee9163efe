package manifest

import "encoding/json"

func decodeJSON(data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errf("parse JSON manifest: %v", err)
	}
	return raw, nil
}
