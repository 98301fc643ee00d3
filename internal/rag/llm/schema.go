package llm

import (
	"slices"

	"google.golang.org/genai"
)

type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
)

// Schema is the provider neutral subset of JSON Schema used for structured output.
// Required doubles as property order.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	AnyOf       []*Schema
	Enum        []string
}

func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

func Array(items *Schema, description string) *Schema {
	return &Schema{Type: TypeArray, Items: items, Description: description}
}

func String(description string) *Schema {
	return &Schema{Type: TypeString, Description: description}
}

func Integer(description string) *Schema {
	return &Schema{Type: TypeInteger, Description: description}
}

func Number(description string) *Schema {
	return &Schema{Type: TypeNumber, Description: description}
}

func Enum(description string, values ...string) *Schema {
	return &Schema{Type: TypeString, Description: description, Enum: values}
}

func AnyOf(description string, options ...*Schema) *Schema {
	return &Schema{Description: description, AnyOf: options}
}

// JSONSchema renders the schema for strict structured output: every object
// closes additionalProperties and lists all of its properties as required.
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.AnyOf) > 0 {
		opts := make([]any, 0, len(s.AnyOf))
		for _, o := range s.AnyOf {
			opts = append(opts, o.JSONSchema())
		}
		out["anyOf"] = opts
		return out
	}
	out["type"] = string(s.Type)
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	switch s.Type {
	case TypeObject:
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		out["properties"] = props
		out["required"] = s.propertyOrder()
		out["additionalProperties"] = false
	case TypeArray:
		out["items"] = s.Items.JSONSchema()
	}
	return out
}

// GenAI converts the schema to the Gemini response schema.
func (s *Schema) GenAI() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{Description: s.Description}
	if len(s.AnyOf) > 0 {
		for _, o := range s.AnyOf {
			out.AnyOf = append(out.AnyOf, o.GenAI())
		}
		return out
	}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = p.GenAI()
		}
		out.Required = s.propertyOrder()
		out.PropertyOrdering = s.propertyOrder()
	case TypeArray:
		out.Type = genai.TypeArray
		out.Items = s.Items.GenAI()
	case TypeString:
		out.Type = genai.TypeString
		out.Enum = s.Enum
	case TypeInteger:
		out.Type = genai.TypeInteger
	case TypeNumber:
		out.Type = genai.TypeNumber
	}
	return out
}

// propertyOrder is Required followed by any property it leaves out, so strict mode sees all of them.
func (s *Schema) propertyOrder() []string {
	order := make([]string, 0, len(s.Properties))
	seen := make(map[string]bool, len(s.Properties))
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	rest := make([]string, 0)
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(order, rest...)
}
