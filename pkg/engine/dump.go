package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DumpJSON exports the primary store grouped by type and id, for
// diagnostics and backup. Keys that carry the internal "_" prefix or lack
// the "@" separator (the per-type counters) are excluded; entries whose
// value is not valid JSON are skipped rather than failing the dump.
//
// The output shape is:
//
//	{
//	  "User": {
//	    "1": {"_type": "User", "_id": "1", "name": "Alice"},
//	    "2": {"_type": "User", "_id": "2", "name": "Bob"}
//	  }
//	}
//
// With pretty set, the JSON is indented for human reading.
func (d *Database) DumpJSON(pretty bool) (string, error) {
	items, err := d.store.Items()
	if err != nil {
		return "", err
	}

	result := make(map[string]map[string]any)
	for _, item := range items {
		if strings.HasPrefix(item.Key, "_") {
			continue
		}
		typeName, id, ok := SplitKey(item.Key)
		if !ok {
			continue
		}

		var value any
		if err := json.Unmarshal([]byte(item.Value), &value); err != nil {
			continue
		}

		if result[typeName] == nil {
			result[typeName] = make(map[string]any)
		}
		result[typeName][id] = value
	}

	return marshal(result, pretty)
}

// RawDumpJSON exports the raw key-to-value contents of the primary store,
// internal keys included. Values are emitted verbatim as strings.
func (d *Database) RawDumpJSON(pretty bool) (string, error) {
	items, err := d.store.Items()
	if err != nil {
		return "", err
	}

	result := make(map[string]string, len(items))
	for _, item := range items {
		result[item.Key] = item.Value
	}

	return marshal(result, pretty)
}

// SplitKey parses a "{type}@{id}" primary key. Namespaced types keep
// their "ns::Name" prefix intact.
func SplitKey(key string) (typeName, id string, ok bool) {
	i := strings.LastIndex(key, "@")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

func marshal(v any, pretty bool) (string, error) {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", fmt.Errorf("encoding dump: %w", err)
	}
	return string(data), nil
}
