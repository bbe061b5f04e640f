package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepoPath(t *testing.T) {
	p, err := repoPath("https://github.com/org/name")
	require.NoError(t, err)
	require.Equal(t, "/org/name", p)

	p, err = repoPath("https://github.com/org/name/")
	require.NoError(t, err)
	require.Equal(t, "/org/name", p)

	_, err = repoPath("https://github.com")
	require.Error(t, err)
}

func TestDecodeContent(t *testing.T) {
	raw, err := decodeContent("cGxhaW4=", "base64")
	require.NoError(t, err)
	require.Equal(t, []byte("plain"), raw)

	// the contents API wraps base64 at 60 columns
	raw, err = decodeContent("cGxh\naW4=\n", "base64")
	require.NoError(t, err)
	require.Equal(t, []byte("plain"), raw)

	raw, err = decodeContent("as-is", "none")
	require.NoError(t, err)
	require.Equal(t, []byte("as-is"), raw)

	_, err = decodeContent("x", "rot13")
	require.Error(t, err)
}

func TestProvider_SendsAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"content": "hi", "encoding": "none"})
	}))
	defer srv.Close()

	g := NewGitHubProvider(srv.URL, 0)
	readme, err := g.Readme(context.Background(), "https://github.com/org/one", "tok123")
	require.NoError(t, err)
	require.Equal(t, "hi", readme)
	require.Equal(t, "token tok123", gotAuth)
}

func TestProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewGitHubProvider(srv.URL, 0)
	_, err := g.Readme(context.Background(), "https://github.com/org/one", "")
	require.Error(t, err)
}
