package jwt

import (
	"context"
	"time"

	"github.com/Tiisu/SourceWiki-sub001/internal/cache"
	tokens "github.com/Tiisu/SourceWiki-sub001/internal/security/token"
)

// Session is the credential pair returned to the browser/client.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Sessions issues sessions: a signed access token plus an opaque refresh
// token. Only the refresh token's hash is stored, keyed in the cache so a
// redis backend shares sessions across instances.
type Sessions struct {
	Issuer     *Issuer
	Cache      cache.Cache
	RefreshTTL time.Duration
}

func NewSessions(issuer *Issuer, c cache.Cache, refreshTTL time.Duration) *Sessions {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Sessions{Issuer: issuer, Cache: c, RefreshTTL: refreshTTL}
}

func refreshKey(hash string) string { return "session:refresh:" + hash }

// IssueSession creates a session for the local account.
func (s *Sessions) IssueSession(_ context.Context, userID string, extra map[string]any) (*Session, error) {
	access, exp, err := s.Issuer.IssueAccess(userID, extra)
	if err != nil {
		return nil, err
	}

	refresh, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(refreshKey(tokens.SHA256Base64URL(refresh)), []byte(userID), s.RefreshTTL)

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
	}, nil
}

// Refresh rotates a refresh token: the old one is invalidated and a new
// session is issued for the account it belonged to.
func (s *Sessions) Refresh(ctx context.Context, refreshToken string) (*Session, bool, error) {
	key := refreshKey(tokens.SHA256Base64URL(refreshToken))
	userID, ok := s.Cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	s.Cache.Delete(key)

	sess, err := s.IssueSession(ctx, string(userID), nil)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Revoke drops a refresh token.
func (s *Sessions) Revoke(_ context.Context, refreshToken string) {
	s.Cache.Delete(refreshKey(tokens.SHA256Base64URL(refreshToken)))
}
