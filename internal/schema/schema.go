package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defs/*.schema.yaml
var defs embed.FS

// Property describes a single schema field. An empty Type is treated as string.
type Property struct {
	Type        string `yaml:"type" json:"type,omitempty"`
	Format      string `yaml:"format" json:"format,omitempty"`
	Default     any    `yaml:"default" json:"default,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Schema is the immutable field map for one document kind.
type Schema struct {
	Name       string              `yaml:"name" json:"name"`
	Properties map[string]Property `yaml:"properties" json:"properties"`
}

// Registry holds one schema per document kind, loaded once at startup.
type Registry struct {
	schemas map[string]*Schema
}

// Load parses every embedded *.schema.yaml definition into a registry.
func Load() (*Registry, error) {
	r := &Registry{schemas: map[string]*Schema{}}
	err := fs.WalkDir(defs, "defs", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := defs.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var s Schema
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if s.Name == "" {
			return fmt.Errorf("schema %s has no name", path)
		}
		r.schemas[s.Name] = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the schema for a kind, or nil when unknown.
func (r *Registry) Get(kind string) *Schema {
	return r.schemas[kind]
}

// Kinds lists the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FieldNames returns the declared field names, sorted.
func (s *Schema) FieldNames() []string {
	out := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TextFields returns the string-typed fields, used to build the full-text index.
func (s *Schema) TextFields() []string {
	out := []string{}
	for _, name := range s.FieldNames() {
		if s.Properties[name].IsString() {
			out = append(out, name)
		}
	}
	return out
}

// DefaultValue returns the declared default, or "" for string-typed fields
// with no default, or nil otherwise.
func (p Property) DefaultValue() any {
	if p.Default != nil {
		return p.Default
	}
	if p.IsString() {
		return ""
	}
	return nil
}

// IsString reports whether the field holds text. Untyped fields count as string.
func (p Property) IsString() bool {
	return p.Type == "" || p.Type == "string"
}

// Violation names the field and constraint a record failed to satisfy.
type Violation struct {
	Field      string
	Constraint string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("schema violation: field %q %s", v.Field, v.Constraint)
}

// Validate checks every present field of the record against its declared
// type and format. Fields not declared in the schema are ignored, matching
// the permissive shape of the stored documents (lastmodified and friends).
func (s *Schema) Validate(fields map[string]any) error {
	for _, name := range s.FieldNames() {
		prop := s.Properties[name]
		value, ok := fields[name]
		if !ok {
			return &Violation{Field: name, Constraint: "is missing"}
		}
		if err := checkType(name, prop, value); err != nil {
			return err
		}
	}
	return nil
}

func checkType(name string, prop Property, value any) error {
	switch {
	case prop.IsString():
		str, ok := value.(string)
		if !ok {
			return &Violation{Field: name, Constraint: fmt.Sprintf("must be a string, got %T", value)}
		}
		return checkFormat(name, prop.Format, str)
	case prop.Type == "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return nil
		}
		return &Violation{Field: name, Constraint: fmt.Sprintf("must be a number, got %T", value)}
	case prop.Type == "boolean":
		if _, ok := value.(bool); !ok {
			return &Violation{Field: name, Constraint: fmt.Sprintf("must be a boolean, got %T", value)}
		}
	case prop.Type == "array":
		switch value.(type) {
		case []any, []string, []map[string]any:
			return nil
		}
		return &Violation{Field: name, Constraint: fmt.Sprintf("must be an array, got %T", value)}
	case prop.Type == "object":
		if _, ok := value.(map[string]any); !ok {
			return &Violation{Field: name, Constraint: fmt.Sprintf("must be an object, got %T", value)}
		}
	default:
		return &Violation{Field: name, Constraint: fmt.Sprintf("has unsupported schema type %q", prop.Type)}
	}
	return nil
}

func checkFormat(name, format, value string) error {
	switch format {
	case "", "uri":
		// uri format is advisory; empty values are allowed for defaulted fields
		return nil
	case "date-time":
		if value == "" {
			return nil
		}
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return &Violation{Field: name, Constraint: "must be an RFC3339 timestamp"}
		}
		return nil
	default:
		if strings.TrimSpace(format) != "" {
			// unknown formats are not enforced
			return nil
		}
		return nil
	}
}
