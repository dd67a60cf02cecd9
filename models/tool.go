package models

import (
	"bytes"
	"encoding/json"
)

// PropertyType is the JSON Schema type of a property
type PropertyType string

const (
	PropertyTypeString  PropertyType = "string"
	PropertyTypeNumber  PropertyType = "number"
	PropertyTypeInteger PropertyType = "integer"
	PropertyTypeBoolean PropertyType = "boolean"
	PropertyTypeObject  PropertyType = "object"
	PropertyTypeArray   PropertyType = "array"
)

// Property describes one field of a tool or schema
type Property struct {
	Name        string        `json:"name" validate:"required"`
	Type        PropertyType  `json:"type" validate:"required,oneof=string number integer boolean object array"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required,omitempty"`
	Properties  []Property    `json:"properties,omitempty" validate:"dive"`
	Items       *Property     `json:"items,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
	Default     interface{}   `json:"default,omitempty"`
}

func StringProperty(name, description string, required bool) Property {
	return Property{Name: name, Type: PropertyTypeString, Description: description, Required: required}
}

func NumberProperty(name, description string, required bool) Property {
	return Property{Name: name, Type: PropertyTypeNumber, Description: description, Required: required}
}

func IntegerProperty(name, description string, required bool) Property {
	return Property{Name: name, Type: PropertyTypeInteger, Description: description, Required: required}
}

func BooleanProperty(name, description string, required bool) Property {
	return Property{Name: name, Type: PropertyTypeBoolean, Description: description, Required: required}
}

func ObjectProperty(name string, properties []Property, description string, required bool) Property {
	return Property{Name: name, Type: PropertyTypeObject, Description: description, Required: required, Properties: properties}
}

func ArrayProperty(name string, items Property, description string, required bool) Property {
	return Property{Name: name, Type: PropertyTypeArray, Description: description, Required: required, Items: &items}
}

// EnumProperty is a string property restricted to the given values
func EnumProperty(name string, values []interface{}, description string, required bool) Property {
	return Property{Name: name, Type: PropertyTypeString, Description: description, Required: required, Enum: values}
}

// ToMap renders the property as a JSON Schema fragment
func (p Property) ToMap() map[string]interface{} {
	data := map[string]interface{}{
		"type": string(p.Type),
	}
	if p.Description != "" {
		data["description"] = p.Description
	}
	if p.Enum != nil {
		data["enum"] = append([]interface{}(nil), p.Enum...)
	}
	if p.Default != nil {
		data["default"] = p.Default
	}

	if p.Type == PropertyTypeObject && len(p.Properties) > 0 {
		data["properties"] = propertiesMap(p.Properties)
		if required := requiredNames(p.Properties); len(required) > 0 {
			data["required"] = required
		}
	}

	if p.Type == PropertyTypeArray && p.Items != nil {
		data["items"] = p.Items.ToMap()
	}

	return data
}

// Tool is a function the model may call
type Tool struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	Properties  []Property `json:"properties,omitempty" validate:"dive"`
	Strict      bool       `json:"strict,omitempty"`
}

// NewTool creates a non-strict tool
func NewTool(name, description string, properties ...Property) Tool {
	return Tool{Name: name, Description: description, Properties: properties}
}

// ToolFromSchema converts a schema into a tool
func ToolFromSchema(s Schema) Tool {
	return Tool{
		Name:        s.Name,
		Description: s.Description,
		Properties:  s.Properties,
		Strict:      s.Strict,
	}
}

// Parameters renders the tool's argument schema
func (t Tool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": propertiesMap(t.Properties),
		"required":   requiredNames(t.Properties),
	}
}

// ToMap renders the tool in function-calling shape
func (t Tool) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"name":        t.Name,
		"description": t.Description,
		"parameters":  t.Parameters(),
		"strict":      t.Strict,
	}
}

// Schema describes a structured output document
type Schema struct {
	Name                 string     `json:"name" validate:"required"`
	Description          string     `json:"description"`
	Properties           []Property `json:"properties,omitempty" validate:"dive"`
	Strict               bool       `json:"strict"`
	AdditionalProperties bool       `json:"additional_properties"`
}

// NewSchema creates a strict schema that rejects additional properties
func NewSchema(name, description string, properties ...Property) Schema {
	return Schema{Name: name, Description: description, Properties: properties, Strict: true}
}

// SchemaFromTool converts a tool into a schema
func SchemaFromTool(t Tool) Schema {
	return Schema{
		Name:        t.Name,
		Description: t.Description,
		Properties:  t.Properties,
		Strict:      t.Strict,
	}
}

// ToMap renders the schema in json_schema response-format shape
func (s Schema) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"name":        s.Name,
		"description": s.Description,
		"strict":      s.Strict,
		"schema": map[string]interface{}{
			"type":                 "object",
			"properties":           propertiesMap(s.Properties),
			"required":             requiredNames(s.Properties),
			"additionalProperties": s.AdditionalProperties,
		},
	}
}

func propertiesMap(props []Property) *OrderedMap {
	m := NewOrderedMap()
	for _, p := range props {
		m.Set(p.Name, p.ToMap())
	}
	return m
}

func requiredNames(props []Property) []string {
	required := []string{}
	for _, p := range props {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return required
}

// OrderedMap is a string-keyed map that marshals in insertion order.
// JSON Schema property order is significant to the models that consume it.
type OrderedMap struct {
	keys   []string
	values map[string]interface{}
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]interface{})}
}

func (m *OrderedMap) Set(key string, value interface{}) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *OrderedMap) Get(key string) (interface{}, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *OrderedMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// MarshalJSON writes the entries in insertion order
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
