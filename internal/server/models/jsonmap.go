package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores free-form settings as JSONB in PostgreSQL and as a nested
// object in the document store.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner.
func (j *JSONMap) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported settings type %T", value)
	}
	var m JSONMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*j = m
	return nil
}

// MergeSettings returns base overlaid with patch. Nested objects present on
// both sides are merged key by key; any other value in patch replaces the
// one in base. Neither argument is modified.
func MergeSettings(base, patch JSONMap) JSONMap {
	if base == nil && patch == nil {
		return nil
	}
	return JSONMap(mergeObjects(base, patch))
}

func mergeObjects(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if pv, ok := asObject(v); ok {
			if bv, ok := asObject(out[k]); ok {
				out[k] = mergeObjects(bv, pv)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case JSONMap:
		return m, true
	}
	return nil, false
}
