package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// optionalSuffix marks optional fields in the type-string form ("bool?").
const optionalSuffix = "?"

// TypeMap returns the declarative form of the schema: field name to type string.
func (s Schema) TypeMap() map[string]string {
	raw := make(map[string]string, len(s))
	for _, f := range s {
		name := f.Type.Name()
		if !f.Required {
			name += optionalSuffix
		}
		raw[f.Name] = name
	}
	return raw
}

// MarshalJSON serializes the schema as a map of field names to type strings.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	for _, f := range s {
		if f.Type == nil {
			return nil, fmt.Errorf("field %s: type is nil", f.Name)
		}
	}
	return json.Marshal(s.TypeMap())
}

// UnmarshalJSON deserializes the schema from a map of field names to type strings.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}

	if string(data) == "null" {
		*s = nil
		return nil
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed, err := ParseTypeMap(raw)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}

// ParseTypeMap converts a map of field names to type strings into a Schema.
// Fields are ordered by name; a trailing "?" marks a field optional.
// Example: {"group_id": "number|string", "no_cache": "bool?"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	keys := make([]string, 0, len(typeMap))
	for k := range typeMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make(Schema, 0, len(keys))
	for _, key := range keys {
		typeStr := strings.TrimSpace(typeMap[key])
		required := !strings.HasSuffix(typeStr, optionalSuffix)
		typeStr = strings.TrimSuffix(typeStr, optionalSuffix)

		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		result = append(result, Field{Name: key, Type: t, Required: required})
	}
	return result, nil
}
