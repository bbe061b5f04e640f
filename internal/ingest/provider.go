package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Entry is one top-level directory entry of a tracked repository.
type Entry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ContentProvider fetches repository content. Implementations decode the
// transport encoding; callers receive plain bytes/text.
type ContentProvider interface {
	Readme(ctx context.Context, repoURL, token string) (string, error)
	ListDirectory(ctx context.Context, repoURL, token string) ([]Entry, error)
	FetchContent(ctx context.Context, contentURL, token string) ([]byte, error)
}

// GitHubProvider implements ContentProvider over the GitHub contents API.
type GitHubProvider struct {
	apiBase string
	client  *http.Client
}

func NewGitHubProvider(apiBase string, timeout time.Duration) *GitHubProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GitHubProvider{
		apiBase: strings.TrimRight(apiBase, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// repoPath extracts the "/org/name" path from a repository URL.
func repoPath(repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("bad repo url %q: %w", repoURL, err)
	}
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return "", fmt.Errorf("repo url %q has no path", repoURL)
	}
	return p, nil
}

func (g *GitHubProvider) Readme(ctx context.Context, repoURL, token string) (string, error) {
	p, err := repoPath(repoURL)
	if err != nil {
		return "", err
	}
	var body struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := g.getJSON(ctx, g.apiBase+"/repos"+p+"/readme", token, &body); err != nil {
		return "", err
	}
	raw, err := decodeContent(body.Content, body.Encoding)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (g *GitHubProvider) ListDirectory(ctx context.Context, repoURL, token string) ([]Entry, error) {
	p, err := repoPath(repoURL)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := g.getJSON(ctx, g.apiBase+"/repos"+p+"/contents", token, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (g *GitHubProvider) FetchContent(ctx context.Context, contentURL, token string) ([]byte, error) {
	var body struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := g.getJSON(ctx, contentURL, token, &body); err != nil {
		return nil, err
	}
	return decodeContent(body.Content, body.Encoding)
}

func (g *GitHubProvider) getJSON(ctx context.Context, rawURL, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// decodeContent undoes the transport encoding the contents API applies.
func decodeContent(content, encoding string) ([]byte, error) {
	switch encoding {
	case "", "none":
		return []byte(content), nil
	case "base64":
		cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(content)
		raw, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
