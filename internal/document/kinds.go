package document

import (
	"fmt"

	"github.com/layersite/layersite/internal/schema"
)

// KindSet is the fixed set of document kinds the service manages.
type KindSet struct {
	Layers  *Kind
	Repos   *Kind
	Metrics *Kind
}

// NewKindSet wires the registered schemas to their persistence parameters.
// Metrics have no primary key and no sort: the collection is append-only.
func NewKindSet(reg *schema.Registry) (*KindSet, error) {
	layers := reg.Get("layer")
	repos := reg.Get("repo")
	metrics := reg.Get("metric")
	if layers == nil || repos == nil || metrics == nil {
		return nil, fmt.Errorf("schema registry is missing a builtin kind (have %v)", reg.Kinds())
	}
	return &KindSet{
		Layers:  &Kind{Name: "layer", Collection: "layers", PK: "id", DefaultSort: "name", Schema: layers},
		Repos:   &Kind{Name: "repo", Collection: "repos", PK: "id", DefaultSort: "id", Schema: repos},
		Metrics: &Kind{Name: "metric", Collection: "metrics", Schema: metrics},
	}, nil
}

// ByName returns the kind for a schema name, or nil.
func (ks *KindSet) ByName(name string) *Kind {
	switch name {
	case "layer":
		return ks.Layers
	case "repo":
		return ks.Repos
	case "metric":
		return ks.Metrics
	}
	return nil
}
