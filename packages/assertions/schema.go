package assertions

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateSchema validates document against schema. The schema may be a JSON
// string, raw bytes, or an already decoded value.
func ValidateSchema(schema any, document any) error {
	schemaData, err := toJSON(schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	documentData, err := toJSON(document)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(documentData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, desc.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(errors, "; "))
}

func toJSON(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		if !json.Valid(val) {
			return nil, fmt.Errorf("not valid JSON")
		}
		return val, nil
	case string:
		if !json.Valid([]byte(val)) {
			return nil, fmt.Errorf("not valid JSON")
		}
		return []byte(val), nil
	default:
		return json.Marshal(v)
	}
}
