package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layersite/layersite/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store over one mongo database, one collection per kind.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) col(kind *document.Kind) *mongo.Collection {
	return s.db.Collection(kind.Collection)
}

func (s *MongoStore) Find(ctx context.Context, kind *document.Kind, filter bson.M, sort string) ([]document.Document, error) {
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.Find().SetProjection(bson.M{"_id": 0})
	if sort != "" {
		opts = opts.SetSort(bson.D{{Key: sort, Value: 1}})
	}
	cur, err := s.col(kind).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind.Collection, err)
	}
	defer cur.Close(ctx)
	out := []document.Document{}
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind.Collection, err)
		}
		out = append(out, document.FromStored(kind, normalize(raw)))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor %s: %w", kind.Collection, err)
	}
	return out, nil
}

func (s *MongoStore) LoadOne(ctx context.Context, kind *document.Kind, id string) (document.Document, error) {
	var raw bson.M
	err := s.col(kind).FindOne(ctx, bson.M{kind.PK: id},
		options.FindOne().SetProjection(bson.M{"_id": 0})).Decode(&raw)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return document.Skeleton(kind, id), nil
		}
		return document.Document{}, fmt.Errorf("load %s/%s: %w", kind.Collection, id, err)
	}
	return document.FromStored(kind, normalize(raw)), nil
}

func (s *MongoStore) Upsert(ctx context.Context, kind *document.Kind, doc document.Document) error {
	doc.Fields[document.FieldLastModified] = time.Now().UTC()
	if kind.PK == "" {
		if _, err := s.col(kind).InsertOne(ctx, bson.M(doc.Fields)); err != nil {
			return fmt.Errorf("insert %s: %w", kind.Collection, err)
		}
		return nil
	}
	filter := bson.M{kind.PK: doc.ID()}
	update := bson.M{"$set": bson.M(doc.Fields)}
	if _, err := s.col(kind).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", kind.Collection, doc.ID(), err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, kind *document.Kind, id string) error {
	if _, err := s.col(kind).DeleteOne(ctx, bson.M{kind.PK: id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", kind.Collection, id, err)
	}
	return nil
}

func (s *MongoStore) EnsureTextIndex(ctx context.Context, kind *document.Kind, fields []string, name string) error {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: "text"})
	}
	model := mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
	if _, err := s.col(kind).Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("ensure index %s on %s: %w", name, kind.Collection, err)
	}
	return nil
}

// normalize flattens the driver's primitive types into plain Go values so
// documents round-trip through JSON the same way regardless of backend.
func normalize(raw bson.M) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalize(t)
	case map[string]any:
		return normalize(bson.M(t))
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC()
	}
	return v
}
