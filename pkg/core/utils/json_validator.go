package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON fixes common hand-editing mistakes in JSON documents:
// trailing commas, single quotes, unquoted keys, comments and
// unclosed brackets.
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// DecodeLenientJSON unmarshals strict JSON first and falls back to a
// repaired copy of the input.
func DecodeLenientJSON(data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err == nil {
		return nil
	}
	repaired, err := RepairJSON(string(data))
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("JSON_STRUCTURAL_ERROR: %v", err)
	}
	return nil
}

// ParseHJSONToStruct parses Hjson (comments, unquoted keys, optional
// commas) into a Go struct. Hjson is routed through encoding/json so
// the struct's json tags apply.
func ParseHJSONToStruct(hjsonData []byte, schema interface{}) error {
	var generic interface{}
	if err := hjson.Unmarshal(hjsonData, &generic); err != nil {
		return fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	if err := json.Unmarshal(raw, schema); err != nil {
		return fmt.Errorf("HJSON_UNMARSHAL_ERROR: %v", err)
	}
	return nil
}

// RequireFields returns an error naming every listed field of the struct
// that is still zero-valued. Nested fields use dotted paths ("Tax.EffectiveRate").
func RequireFields(v interface{}, fields ...string) error {
	root := reflect.ValueOf(v)
	if root.Kind() == reflect.Ptr {
		root = root.Elem()
	}
	var missing []string
	for _, path := range fields {
		cur := root
		for _, part := range strings.Split(path, ".") {
			if cur.Kind() != reflect.Struct {
				cur = reflect.Value{}
				break
			}
			cur = cur.FieldByName(part)
			if !cur.IsValid() {
				break
			}
		}
		if !cur.IsValid() || cur.IsZero() {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("SCHEMA_VIOLATION: required fields missing or zero: %s", strings.Join(missing, ", "))
	}
	return nil
}
