package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/layersite/layersite/internal/document"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryStore is an in-memory Store used by unit tests and local development.
// It evaluates the small predicate subset the query translator emits
// ($eq, $regex, $text) so handler tests run without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]map[string]any
	textFields  map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: map[string][]map[string]any{},
		textFields:  map[string][]string{},
	}
}

func (s *MemoryStore) Find(ctx context.Context, kind *document.Kind, filter bson.M, sort string) ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []document.Document{}
	for _, rec := range s.collections[kind.Collection] {
		ok, err := s.matches(kind, rec, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, document.FromStored(kind, copyRecord(rec)))
		}
	}
	if sort != "" {
		sortDocs(out, sort)
	}
	return out, nil
}

func (s *MemoryStore) LoadOne(ctx context.Context, kind *document.Kind, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.collections[kind.Collection] {
		if rec[kind.PK] == id {
			return document.FromStored(kind, copyRecord(rec)), nil
		}
	}
	return document.Skeleton(kind, id), nil
}

func (s *MemoryStore) Upsert(ctx context.Context, kind *document.Kind, doc document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.Fields[document.FieldLastModified] = time.Now().UTC()
	rec := copyRecord(doc.Fields)
	if kind.PK != "" {
		for i, existing := range s.collections[kind.Collection] {
			if existing[kind.PK] == doc.ID() {
				s.collections[kind.Collection][i] = rec
				return nil
			}
		}
	}
	s.collections[kind.Collection] = append(s.collections[kind.Collection], rec)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, kind *document.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collections[kind.Collection]
	for i, rec := range col {
		if rec[kind.PK] == id {
			s.collections[kind.Collection] = append(col[:i:i], col[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) EnsureTextIndex(ctx context.Context, kind *document.Kind, fields []string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textFields[kind.Collection] = append([]string(nil), fields...)
	return nil
}

func (s *MemoryStore) matches(kind *document.Kind, rec map[string]any, filter bson.M) (bool, error) {
	for key, cond := range filter {
		if key == "$text" {
			spec, _ := cond.(bson.M)
			search, _ := spec["$search"].(string)
			if !s.textMatch(kind, rec, search) {
				return false, nil
			}
			continue
		}
		spec, ok := cond.(bson.M)
		if !ok {
			if !valueEqual(rec[key], cond) {
				return false, nil
			}
			continue
		}
		if eq, has := spec["$eq"]; has {
			if !valueEqual(rec[key], eq) {
				return false, nil
			}
			continue
		}
		if pattern, has := spec["$regex"]; has {
			p, _ := pattern.(string)
			v := fmt.Sprint(rec[key])
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return false, fmt.Errorf("bad pattern %q: %w", p, err)
			}
			if !re.MatchString(v) {
				return false, nil
			}
			continue
		}
		return false, fmt.Errorf("unsupported predicate for %q: %v", key, spec)
	}
	return true, nil
}

// textMatch approximates mongo's $text: any search term appearing in any
// indexed field, case-insensitively.
func (s *MemoryStore) textMatch(kind *document.Kind, rec map[string]any, search string) bool {
	fields := s.textFields[kind.Collection]
	if len(fields) == 0 {
		fields = kind.TextFields()
	}
	for _, term := range strings.Fields(strings.ToLower(search)) {
		for _, f := range fields {
			v, _ := rec[f].(string)
			if strings.Contains(strings.ToLower(v), term) {
				return true
			}
		}
	}
	return false
}

func valueEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

func sortDocs(docs []document.Document, key string) {
	sort.SliceStable(docs, func(i, j int) bool {
		return fmt.Sprint(docs[i].Fields[key]) < fmt.Sprint(docs[j].Fields[key])
	})
}

func copyRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyRecord(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = copyRecord(e)
		}
		return out
	}
	return v
}
