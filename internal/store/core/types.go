package core

import "time"

// User is a local account. Accounts created through wiki login start with an
// unusable placeholder password; the Wiki* fields mirror the last resolved
// remote identity.
type User struct {
	ID, Username, Email string
	PasswordHash        string
	Status              string

	WikiRemoteID     string
	WikiUsername     string
	WikiAccessToken  string
	WikiAccessSecret string
	WikiEditCount    int
	WikiGroups       []string
	WikiRights       []string
	// WikiSynthetic marks an identity that was never confirmed by the
	// provider (derived from the access token).
	WikiSynthetic bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WikiIdentity is the slice of User updated when a callback resolves a
// fresh remote identity.
type WikiIdentity struct {
	RemoteID     string
	Username     string
	AccessToken  string
	AccessSecret string
	EditCount    int
	Groups       []string
	Rights       []string
	Synthetic    bool
}

// RefreshToken is a stored (hashed) session refresh credential.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}
