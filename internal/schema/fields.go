package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FieldKind identifies one of the closed set of tag field variants.
type FieldKind string

const (
	KindText        FieldKind = "text"
	KindNumber      FieldKind = "number"
	KindBoolean     FieldKind = "boolean"
	KindSelect      FieldKind = "select"
	KindMultiSelect FieldKind = "multiselect"
	KindScale       FieldKind = "scale"
)

// Field is one tag form field: a kind plus its kind-specific configuration.
type Field struct {
	Name     string      `json:"name"`
	Kind     FieldKind   `json:"kind"`
	Required bool        `json:"required"`
	Config   FieldConfig `json:"config"`
}

// FieldConfig carries the union of per-kind settings; each kind reads only
// the settings it understands.
type FieldConfig struct {
	Options   []string `json:"options,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
}

// fragmentFunc produces the JSON-schema property fragment for one field.
type fragmentFunc func(cfg FieldConfig) (map[string]any, error)

var fragmentFuncs = map[FieldKind]fragmentFunc{
	KindText:        textFragment,
	KindNumber:      numberFragment,
	KindBoolean:     booleanFragment,
	KindSelect:      selectFragment,
	KindMultiSelect: multiSelectFragment,
	KindScale:       scaleFragment,
}

// DataSchema generates a JSON Schema document that validates submitted tag
// payloads for the given field definitions.
func DataSchema(fields []Field) (json.RawMessage, error) {
	properties := make(map[string]any, len(fields))
	var required []string

	for _, field := range fields {
		if field.Name == "" {
			return nil, fmt.Errorf("field of kind %q has no name", field.Kind)
		}
		if _, dup := properties[field.Name]; dup {
			return nil, fmt.Errorf("duplicate field name %q", field.Name)
		}
		fragment, ok := fragmentFuncs[field.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown field kind %q", field.Kind)
		}
		property, err := fragment(field.Config)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		properties[field.Name] = property
		if field.Required {
			required = append(required, field.Name)
		}
	}
	sort.Strings(required)

	doc := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal data schema: %w", err)
	}
	return out, nil
}

func textFragment(cfg FieldConfig) (map[string]any, error) {
	fragment := map[string]any{"type": "string"}
	if cfg.MaxLength != nil {
		if *cfg.MaxLength < 1 {
			return nil, fmt.Errorf("maxLength must be positive, got %d", *cfg.MaxLength)
		}
		fragment["maxLength"] = *cfg.MaxLength
	}
	return fragment, nil
}

func numberFragment(cfg FieldConfig) (map[string]any, error) {
	fragment := map[string]any{"type": "number"}
	if cfg.Min != nil {
		fragment["minimum"] = *cfg.Min
	}
	if cfg.Max != nil {
		fragment["maximum"] = *cfg.Max
	}
	if cfg.Min != nil && cfg.Max != nil && *cfg.Min > *cfg.Max {
		return nil, fmt.Errorf("min %v exceeds max %v", *cfg.Min, *cfg.Max)
	}
	return fragment, nil
}

func booleanFragment(FieldConfig) (map[string]any, error) {
	return map[string]any{"type": "boolean"}, nil
}

func selectFragment(cfg FieldConfig) (map[string]any, error) {
	if len(cfg.Options) == 0 {
		return nil, fmt.Errorf("select field requires options")
	}
	return map[string]any{"type": "string", "enum": cfg.Options}, nil
}

func multiSelectFragment(cfg FieldConfig) (map[string]any, error) {
	if len(cfg.Options) == 0 {
		return nil, fmt.Errorf("multiselect field requires options")
	}
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string", "enum": cfg.Options},
		"uniqueItems": true,
	}, nil
}

func scaleFragment(cfg FieldConfig) (map[string]any, error) {
	if cfg.Min == nil || cfg.Max == nil {
		return nil, fmt.Errorf("scale field requires min and max")
	}
	if *cfg.Min >= *cfg.Max {
		return nil, fmt.Errorf("scale min %v must be below max %v", *cfg.Min, *cfg.Max)
	}
	return map[string]any{
		"type":    "integer",
		"minimum": *cfg.Min,
		"maximum": *cfg.Max,
	}, nil
}
