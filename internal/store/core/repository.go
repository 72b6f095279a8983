package core

import "context"

// Repository is the local account store consulted by the wiki login flow.
// Implementations must enforce uniqueness of WikiRemoteID; that constraint
// is what keeps concurrent callbacks from creating duplicate linked
// accounts.
type Repository interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, id string) (*User, error)

	// Lookups used by the callback disposition, in the order the flow
	// tries them.
	FindUserByWikiRemoteID(ctx context.Context, remoteID string) (*User, error)
	FindUserByWikiAccessToken(ctx context.Context, accessToken string) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)

	// CreateUser persists a new account. ErrConflict when the username or
	// wiki remote id is already taken.
	CreateUser(ctx context.Context, u *User) error

	// UpdateWikiIdentity refreshes the stored identity attributes and
	// access pair of an existing account.
	UpdateWikiIdentity(ctx context.Context, userID string, ident WikiIdentity) error
}
