package tokenstore

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Tiisu/SourceWiki-sub001/internal/metrics"
)

// Memory is the in-process backend, a go-cache with the sweep under our
// control instead of the library janitor so it can be driven and observed
// explicitly.
type Memory struct {
	mu  sync.Mutex
	c   *gocache.Cache
	ttl time.Duration
}

// NewMemory creates a memory store with the given TTL (DefaultTTL if zero).
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	// Janitor interval 0: expired entries are removed by Sweep, and
	// go-cache already hides them from Get once past their deadline.
	return &Memory{c: gocache.New(ttl, 0), ttl: ttl}
}

func (m *Memory) Put(_ context.Context, tokenID string, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.c.SetDefault(tokenID, e)
	metrics.TokenStorePending(m.c.ItemCount())
	m.mu.Unlock()
	return nil
}

// TakeOnce reads and deletes under one lock, so two concurrent callbacks
// for the same token can never both succeed.
func (m *Memory) TakeOnce(_ context.Context, tokenID string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.c.Get(tokenID)
	if !ok {
		return Entry{}, false, nil
	}
	m.c.Delete(tokenID)
	metrics.TokenStorePending(m.c.ItemCount())

	e, ok := v.(Entry)
	if !ok {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (m *Memory) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.c.ItemCount()
	m.c.DeleteExpired()
	removed := before - m.c.ItemCount()
	metrics.TokenStoreSwept(removed)
	metrics.TokenStorePending(m.c.ItemCount())
	return removed, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.c.Flush()
	m.mu.Unlock()
	return nil
}
