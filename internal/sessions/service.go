package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Service wraps repository operations with token generation and expiry checks.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service { return &Service{repo: r} }

// Create stores a new session for login and returns the opaque token.
// repoToken is the delegated repository credential, may be empty.
func (s *Service) Create(ctx context.Context, login, repoToken string, ttl time.Duration) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	now := time.Now().UTC()
	sess := &Session{
		Token:     token,
		Login:     login,
		RepoToken: repoToken,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the session for a token, or nil when unknown or expired.
func (s *Service) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	return s.repo.Get(ctx, token)
}

// Delete removes a session; deleting an unknown token is a no-op.
func (s *Service) Delete(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, token)
}
