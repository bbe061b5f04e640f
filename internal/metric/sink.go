// Package metric appends one action-log record per mutation. Appends are
// best-effort: a sink failure is logged and never fails the request.
package metric

import (
	"context"
	"time"

	"github.com/layersite/layersite/internal/document"
	"github.com/layersite/layersite/internal/store"
	"github.com/layersite/layersite/pkg/logger"
)

// Record is one append-only action log entry. No primary key, no update,
// no delete; retention is an external concern.
type Record struct {
	Action     string
	Kind       string
	Item       string
	Username   string
	RemoteAddr string
}

// Sink accepts records without blocking or failing the caller.
type Sink interface {
	Append(rec Record)
}

// StoreSink persists records through the document store.
type StoreSink struct {
	store   store.Store
	kind    *document.Kind
	timeout time.Duration
}

func NewStoreSink(s store.Store, kind *document.Kind) *StoreSink {
	return &StoreSink{store: s, kind: kind, timeout: 5 * time.Second}
}

// Append writes the record asynchronously; failures are logged and swallowed.
func (s *StoreSink) Append(rec Record) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		doc := document.New(s.kind)
		doc.Fields["timestamp"] = time.Now().UTC().Format(time.RFC3339)
		doc.Fields["action"] = rec.Action
		doc.Fields["kind"] = rec.Kind
		doc.Fields["item"] = rec.Item
		doc.Fields["username"] = rec.Username
		doc.Fields["remote_address"] = rec.RemoteAddr
		if err := doc.Validate(); err != nil {
			logger.Warnf("metric: dropping invalid record: %v", err)
			return
		}
		if err := s.store.Upsert(ctx, s.kind, doc); err != nil {
			logger.Warnf("metric: append failed: %v", err)
		}
	}()
}

// NopSink discards every record.
type NopSink struct{}

func (NopSink) Append(Record) {}
