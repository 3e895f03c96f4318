package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema used to check backend response bodies.
type Schema struct {
	schema *gojsonschema.Schema
}

// CompileSchema parses a JSON schema document.
func CompileSchema(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompileSchema panics on an invalid schema; for package-level contracts.
func MustCompileSchema(schemaJSON string) *Schema {
	s, err := CompileSchema(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateBytes validates a raw JSON document. A body that is not JSON at
// all yields a single violation on the root field.
func (s *Schema) ValidateBytes(body []byte) *ValidationResult {
	result := NewResult()

	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		result.Add("(root)", CodeSchemaViolation, fmt.Sprintf("document is not valid JSON: %v", err))
		return result
	}

	for _, desc := range res.Errors() {
		result.Add(desc.Field(), CodeSchemaViolation, desc.Description())
	}
	return result
}

// Summary joins every violation into one line.
func (r *ValidationResult) Summary() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(parts, "; ")
}
