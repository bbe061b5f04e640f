package document

import (
	"fmt"

	"github.com/layersite/layersite/internal/schema"
)

// FieldLastModified is server-assigned on every save and carried outside the
// declared schema fields.
const FieldLastModified = "lastmodified"

// FieldOwner is the ordered set of principal logins allowed to mutate a document.
const FieldOwner = "owner"

// Kind binds a schema to its persistence parameters.
type Kind struct {
	Name        string
	Collection  string
	PK          string
	DefaultSort string
	Schema      *schema.Schema
}

// Document is a kind-tagged record. Fields always carries every schema-declared
// field (defaulted when absent) so validation runs against a complete record,
// never a partial payload.
type Document struct {
	Kind   *Kind
	Fields map[string]any
}

// New returns a document with every schema field set to its declared default.
func New(k *Kind) Document {
	fields := make(map[string]any, len(k.Schema.Properties))
	for _, name := range k.Schema.FieldNames() {
		fields[name] = k.Schema.Properties[name].DefaultValue()
	}
	return Document{Kind: k, Fields: fields}
}

// Skeleton is what a load-miss yields: defaults plus the primary key. It is
// indistinguishable from a stored-but-empty record without an existence flag;
// callers use IsSkeleton for the emptiness check.
func Skeleton(k *Kind, id string) Document {
	d := New(k)
	if k.PK != "" {
		d.Fields[k.PK] = id
	}
	return d
}

// FromStored overlays a stored record on top of the schema defaults so older
// records missing newly declared fields still come back complete.
func FromStored(k *Kind, stored map[string]any) Document {
	d := New(k)
	for key, value := range stored {
		d.Fields[key] = value
	}
	return d
}

// Merge returns a new document with the partial payload applied over the
// existing fields. Previously-set fields survive unless explicitly overwritten.
func (d Document) Merge(partial map[string]any) Document {
	out := Document{Kind: d.Kind, Fields: make(map[string]any, len(d.Fields))}
	for key, value := range d.Fields {
		out.Fields[key] = value
	}
	for key, value := range partial {
		out.Fields[key] = value
	}
	return out
}

// ID returns the primary key value, or "" for kinds without one.
func (d Document) ID() string {
	if d.Kind.PK == "" {
		return ""
	}
	id, _ := d.Fields[d.Kind.PK].(string)
	return id
}

// SetID assigns the primary key field.
func (d Document) SetID(id string) {
	if d.Kind.PK != "" {
		d.Fields[d.Kind.PK] = id
	}
}

// Owners returns the owner list, tolerating the []any shape bson decoding produces.
func (d Document) Owners() []string {
	switch v := d.Fields[FieldOwner].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// SetOwners assigns the owner list.
func (d Document) SetOwners(owners []string) {
	d.Fields[FieldOwner] = owners
}

// Set assigns a field and validates the resulting record, rolling the
// assignment back on violation.
func (d Document) Set(key string, value any) error {
	prev, had := d.Fields[key]
	d.Fields[key] = value
	if err := d.Validate(); err != nil {
		if had {
			d.Fields[key] = prev
		} else {
			delete(d.Fields, key)
		}
		return err
	}
	return nil
}

// Validate checks the complete record against the kind's schema.
func (d Document) Validate() error {
	return d.Kind.Schema.Validate(d.Fields)
}

// IsSkeleton reports whether every field besides the primary key is empty,
// the "not found" signal from Store.LoadOne.
func (d Document) IsSkeleton() bool {
	for key, value := range d.Fields {
		if key == d.Kind.PK || key == FieldLastModified {
			continue
		}
		if !emptyValue(value) {
			return false
		}
	}
	return true
}

func emptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case []map[string]any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case int:
		return t == 0
	case int32:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case bool:
		return !t
	}
	return false
}

// TextFields exposes the schema's string-typed fields for index construction.
func (k *Kind) TextFields() []string {
	return k.Schema.TextFields()
}

func (d Document) String() string {
	return fmt.Sprintf("%s(%s)", d.Kind.Name, d.ID())
}
