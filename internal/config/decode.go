package config

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	yaml "go.yaml.in/yaml/v3"
)

// strictJSON rejects keys the Config schema does not know, and trailing data.
var strictJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

// decodeFile overlays a YAML (.yaml, .yml) or JSON document onto cfg. YAML is
// converted to JSON first so both formats go through the same strict decoder.
func decodeFile(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if doc == nil {
			return nil
		}
		b, err := strictJSON.Marshal(stringKeys(doc))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		data = b
	}
	if err := strictJSON.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// stringKeys rewrites YAML maps with non-string keys so they encode as JSON objects.
func stringKeys(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case map[string]any:
		for k, val := range x {
			x[k] = stringKeys(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = stringKeys(val)
		}
		return x
	}
	return v
}

// fingerprint identifies a config by content; nil yields 0.
func fingerprint(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := strictJSON.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
