package metric

import (
	"context"
	"testing"
	"time"

	"github.com/layersite/layersite/internal/document"
	"github.com/layersite/layersite/internal/schema"
	"github.com/layersite/layersite/internal/store"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStoreSink_AppendsRecord(t *testing.T) {
	reg, err := schema.Load()
	require.NoError(t, err)
	ks, err := document.NewKindSet(reg)
	require.NoError(t, err)
	s := store.NewMemoryStore()
	sink := NewStoreSink(s, ks.Metrics)

	sink.Append(Record{
		Action:     "update",
		Kind:       "layer",
		Item:       "l1",
		Username:   "alice",
		RemoteAddr: "10.0.0.1",
	})

	require.Eventually(t, func() bool {
		docs, err := s.Find(context.Background(), ks.Metrics, bson.M{}, "")
		return err == nil && len(docs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	docs, err := s.Find(context.Background(), ks.Metrics, bson.M{}, "")
	require.NoError(t, err)
	require.Equal(t, "update", docs[0].Fields["action"])
	require.Equal(t, "alice", docs[0].Fields["username"])
	ts, _ := docs[0].Fields["timestamp"].(string)
	_, err = time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
}

func TestNopSink(t *testing.T) {
	// must not panic or block
	NopSink{}.Append(Record{Action: "delete"})
}
