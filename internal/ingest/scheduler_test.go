package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/layersite/layersite/internal/document"
	"github.com/layersite/layersite/internal/schema"
	"github.com/layersite/layersite/internal/store"
	"github.com/stretchr/testify/require"
)

func testKinds(t *testing.T) *document.KindSet {
	t.Helper()
	reg, err := schema.Load()
	require.NoError(t, err)
	ks, err := document.NewKindSet(reg)
	require.NoError(t, err)
	return ks
}

// fakeGitHub serves the contents API surface the provider touches.
func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/repos/org/one/readme", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"content":  base64.StdEncoding.EncodeToString([]byte("# Layer One\n")),
			"encoding": "base64",
		})
	})
	mux.HandleFunc("/repos/org/one/contents", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Entry{
			{Name: "b.schema", Type: "file", Path: "b.schema", URL: srv.URL + "/raw/b.schema"},
			{Name: "a.rules", Type: "file", Path: "a.rules", URL: srv.URL + "/raw/a.rules"},
			{Name: "notes.txt", Type: "file", Path: "notes.txt", URL: srv.URL + "/raw/notes.txt"},
			{Name: "sub", Type: "dir", Path: "sub", URL: srv.URL + "/raw/sub"},
		})
	})
	mux.HandleFunc("/raw/a.rules", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"content": "threshold: 5\n", "encoding": "none",
		})
	})
	mux.HandleFunc("/raw/b.schema", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"content":  base64.StdEncoding.EncodeToString([]byte("fields:\n  - name\n")),
			"encoding": "base64",
		})
	})
	mux.HandleFunc("/raw/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		t.Error("notes.txt must not be fetched")
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func seedLayer(t *testing.T, s store.Store, ks *document.KindSet, id, repoURL string) {
	t.Helper()
	d := document.New(ks.Layers)
	d.Fields["id"] = id
	d.Fields["name"] = id
	d.Fields["repo"] = repoURL
	require.NoError(t, s.Upsert(context.Background(), ks.Layers, d))
}

func TestIngest_MaterializesRepoDocument(t *testing.T) {
	srv := fakeGitHub(t)
	ks := testKinds(t)
	s := store.NewMemoryStore()
	seedLayer(t, s, ks, "l1", "https://github.com/org/one")

	sched := NewScheduler(s, ks, NewGitHubProvider(srv.URL, 0), Options{})
	require.NoError(t, sched.Ingest(context.Background(), "l1", ""))

	repo, err := s.LoadOne(context.Background(), ks.Repos, "l1")
	require.NoError(t, err)
	require.False(t, repo.IsSkeleton())
	require.Equal(t, "# Layer One\n", repo.Fields["readme"])

	rules, ok := repo.Fields["rules"].([]any)
	require.True(t, ok)
	require.Len(t, rules, 1)
	rule := rules[0].(map[string]any)
	require.Equal(t, "a.rules", rule["path"])
	require.Equal(t, map[string]any{"threshold": 5}, rule["content"])

	schemas, ok := repo.Fields["schema"].([]any)
	require.True(t, ok)
	require.Len(t, schemas, 1)
	require.Equal(t, "b.schema", schemas[0].(map[string]any)["path"])
}

func TestIngest_Idempotent(t *testing.T) {
	srv := fakeGitHub(t)
	ks := testKinds(t)
	s := store.NewMemoryStore()
	seedLayer(t, s, ks, "l1", "https://github.com/org/one")

	sched := NewScheduler(s, ks, NewGitHubProvider(srv.URL, 0), Options{})
	require.NoError(t, sched.Ingest(context.Background(), "l1", ""))
	first, err := s.LoadOne(context.Background(), ks.Repos, "l1")
	require.NoError(t, err)

	require.NoError(t, sched.Ingest(context.Background(), "l1", ""))
	second, err := s.LoadOne(context.Background(), ks.Repos, "l1")
	require.NoError(t, err)

	delete(first.Fields, document.FieldLastModified)
	delete(second.Fields, document.FieldLastModified)
	require.Equal(t, first.Fields, second.Fields)
}

func TestIngest_UnknownLayer(t *testing.T) {
	ks := testKinds(t)
	s := store.NewMemoryStore()
	sched := NewScheduler(s, ks, NewGitHubProvider("http://127.0.0.1:0", 0), Options{})
	require.Error(t, sched.Ingest(context.Background(), "ghost", ""))
}

func TestIngest_LayerWithoutRepoURL(t *testing.T) {
	ks := testKinds(t)
	s := store.NewMemoryStore()
	seedLayer(t, s, ks, "l1", "")
	sched := NewScheduler(s, ks, NewGitHubProvider("http://127.0.0.1:0", 0), Options{})
	require.Error(t, sched.Ingest(context.Background(), "l1", ""))
}

func TestTrigger_DeduplicatesInFlight(t *testing.T) {
	ks := testKinds(t)
	s := store.NewMemoryStore()
	// no workers running: accepted jobs stay queued and in flight
	sched := NewScheduler(s, ks, NewGitHubProvider("http://127.0.0.1:0", 0), Options{})

	require.True(t, sched.Trigger("l1", ""))
	require.False(t, sched.Trigger("l1", ""))
	require.True(t, sched.Trigger("l2", ""))
	require.False(t, sched.Trigger("", ""))
}

func TestRun_DrainsOnCancel(t *testing.T) {
	srv := fakeGitHub(t)
	ks := testKinds(t)
	s := store.NewMemoryStore()
	seedLayer(t, s, ks, "l1", "https://github.com/org/one")

	sched := NewScheduler(s, ks, NewGitHubProvider(srv.URL, 0), Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	sched.Run(ctx)
	cancel()
	sched.Wait()

	// the initial sweep ran before shutdown completed
	repo, err := s.LoadOne(context.Background(), ks.Repos, "l1")
	require.NoError(t, err)
	require.False(t, repo.IsSkeleton())
}
