// Package store is the persistence abstraction the REST layer and the
// ingestion scheduler write through. A load miss never raises: LoadOne
// returns a skeleton carrying only defaults plus the primary key, and
// callers check Document.IsSkeleton.
package store

import (
	"context"

	"github.com/layersite/layersite/internal/document"
	"go.mongodb.org/mongo-driver/bson"
)

// Store scopes find/load/upsert/delete/ensure-index per collection via the
// document kind.
type Store interface {
	// Find returns the matching documents ordered by sort (ascending).
	// Internal bookkeeping fields are excluded except lastmodified and owner.
	Find(ctx context.Context, kind *document.Kind, filter bson.M, sort string) ([]document.Document, error)
	// LoadOne returns the stored document or an id-only skeleton on miss.
	LoadOne(ctx context.Context, kind *document.Kind, id string) (document.Document, error)
	// Upsert writes the full document, assigning lastmodified. Kinds without
	// a primary key are append-only inserts.
	Upsert(ctx context.Context, kind *document.Kind, doc document.Document) error
	// Delete removes the document; deleting a missing id is a no-op.
	Delete(ctx context.Context, kind *document.Kind, id string) error
	// EnsureTextIndex creates the full-text index over the given fields.
	// Idempotent, safe to call repeatedly at startup.
	EnsureTextIndex(ctx context.Context, kind *document.Kind, fields []string, name string) error
}
