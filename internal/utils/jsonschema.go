package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchemaValidator validates raw JSON documents against named schemas
type JSONSchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewJSONSchemaValidator creates a new JSONSchemaValidator
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// LoadSchema compiles a JSON schema and stores it under name
func (v *JSONSchemaValidator) LoadSchema(name, schema string) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	v.schemas[name] = compiled
	return nil
}

// ValidateBytes validates a raw JSON document against a named schema
func (v *JSONSchemaValidator) ValidateBytes(name string, document []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("schema %s not found", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			messages = append(messages, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(messages, "; "))
	}

	return nil
}

// JSONSchemaBuilder helps build object schemas programmatically
type JSONSchemaBuilder struct {
	schema     map[string]interface{}
	properties map[string]map[string]interface{}
	required   []string
}

// NewJSONSchemaBuilder creates a builder for a draft-07 object schema.
// Unknown properties are allowed.
func NewJSONSchemaBuilder() *JSONSchemaBuilder {
	return &JSONSchemaBuilder{
		schema: map[string]interface{}{
			"$schema": "http://json-schema.org/draft-07/schema#",
			"type":    "object",
		},
		properties: map[string]map[string]interface{}{},
	}
}

// SetTitle sets the schema title
func (b *JSONSchemaBuilder) SetTitle(title string) *JSONSchemaBuilder {
	b.schema["title"] = title
	return b
}

// AddProperty adds a property of one or more JSON types
func (b *JSONSchemaBuilder) AddProperty(name string, required bool, types ...string) *JSONSchemaBuilder {
	prop := map[string]interface{}{}
	if len(types) == 1 {
		prop["type"] = types[0]
	} else {
		prop["type"] = types
	}
	b.properties[name] = prop

	if required {
		b.required = append(b.required, name)
	}
	return b
}

// AddStringProperty adds a string property
func (b *JSONSchemaBuilder) AddStringProperty(name string, required bool) *JSONSchemaBuilder {
	return b.AddProperty(name, required, "string")
}

// AddNumberProperty adds a number property
func (b *JSONSchemaBuilder) AddNumberProperty(name string, required bool) *JSONSchemaBuilder {
	return b.AddProperty(name, required, "number")
}

// AddIntegerProperty adds an integer property
func (b *JSONSchemaBuilder) AddIntegerProperty(name string, required bool) *JSONSchemaBuilder {
	return b.AddProperty(name, required, "integer")
}

// Minimum constrains a previously added numeric property
func (b *JSONSchemaBuilder) Minimum(name string, min float64) *JSONSchemaBuilder {
	if prop, ok := b.properties[name]; ok {
		prop["minimum"] = min
	}
	return b
}

// Enum constrains a previously added property to a fixed set of values
func (b *JSONSchemaBuilder) Enum(name string, values ...interface{}) *JSONSchemaBuilder {
	if prop, ok := b.properties[name]; ok {
		prop["enum"] = values
	}
	return b
}

// Build returns the JSON schema as a string
func (b *JSONSchemaBuilder) Build() (string, error) {
	out := make(map[string]interface{}, len(b.schema)+2)
	for k, v := range b.schema {
		out[k] = v
	}
	out["properties"] = b.properties
	if len(b.required) > 0 {
		out["required"] = b.required
	}

	jsonBytes, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}

	return string(jsonBytes), nil
}
