// Package tokenstore holds in-flight OAuth request tokens between the
// initiate and callback steps of the handshake.
//
// Entries are ephemeral: consumed at most once via TakeOnce, or evicted by a
// TTL sweep. The memory backend is process-local (a restart invalidates all
// in-flight handshakes, by contract); the redis backend lets multiple
// instances share pending handshakes.
package tokenstore

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds how long a handshake may stay pending.
const DefaultTTL = 10 * time.Minute

// Entry is a pending handshake keyed by the provider's token identifier.
// It is created when a request token is obtained and deleted on first
// consumption or expiry, whichever comes first.
type Entry struct {
	TokenSecret string `json:"token_secret"`
	// State is the anti-forgery value handed to the caller at initiate
	// time and compared on callback.
	State string `json:"state"`
	// LinkAccountID, when set, marks this handshake as a link-account
	// flow targeting an existing local account.
	LinkAccountID string    `json:"link_account_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("tokenstore: store closed")

// Store serializes Put/TakeOnce/Sweep per key; TakeOnce is the only
// consumption path, so a token can never be replayed.
type Store interface {
	// Put registers a pending handshake under the token identifier.
	Put(ctx context.Context, tokenID string, e Entry) error

	// TakeOnce atomically reads and deletes the entry. The second call
	// for the same identifier reports ok=false, even under concurrency.
	TakeOnce(ctx context.Context, tokenID string) (e Entry, ok bool, err error)

	// Sweep removes entries older than the TTL and returns how many.
	Sweep(ctx context.Context) (int, error)

	Close() error
}
