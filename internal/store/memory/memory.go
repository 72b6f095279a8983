// Package memory is an in-process Repository used in development and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tiisu/SourceWiki-sub001/internal/store/core"
)

type Repo struct {
	mu    sync.RWMutex
	users map[string]*core.User // by ID
}

func New() *Repo {
	return &Repo{users: map[string]*core.User{}}
}

func (r *Repo) Ping(context.Context) error { return nil }

func (r *Repo) GetUserByID(_ context.Context, id string) (*core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Repo) FindUserByWikiRemoteID(_ context.Context, remoteID string) (*core.User, error) {
	if remoteID == "" {
		return nil, core.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.WikiRemoteID == remoteID {
			return cloneUser(u), nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *Repo) FindUserByWikiAccessToken(_ context.Context, accessToken string) (*core.User, error) {
	if accessToken == "" {
		return nil, core.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.WikiAccessToken == accessToken {
			return cloneUser(u), nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *Repo) FindUserByUsername(_ context.Context, username string) (*core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return cloneUser(u), nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *Repo) CreateUser(_ context.Context, u *core.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return core.ErrConflict
		}
		if u.WikiRemoteID != "" && existing.WikiRemoteID == u.WikiRemoteID {
			return core.ErrConflict
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *Repo) UpdateWikiIdentity(_ context.Context, userID string, ident core.WikiIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	for id, other := range r.users {
		if id != userID && ident.RemoteID != "" && other.WikiRemoteID == ident.RemoteID {
			return core.ErrConflict
		}
	}

	u.WikiRemoteID = ident.RemoteID
	u.WikiUsername = ident.Username
	u.WikiAccessToken = ident.AccessToken
	u.WikiAccessSecret = ident.AccessSecret
	u.WikiEditCount = ident.EditCount
	u.WikiGroups = append([]string(nil), ident.Groups...)
	u.WikiRights = append([]string(nil), ident.Rights...)
	u.WikiSynthetic = ident.Synthetic
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneUser(u *core.User) *core.User {
	cp := *u
	cp.WikiGroups = append([]string(nil), u.WikiGroups...)
	cp.WikiRights = append([]string(nil), u.WikiRights...)
	return &cp
}
