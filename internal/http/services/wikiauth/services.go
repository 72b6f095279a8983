// Package wikiauth implements the wiki login flow behind the HTTP edge:
// initiating the OAuth handshake and turning the provider callback into a
// login, registration, or account-link disposition.
package wikiauth

import (
	"context"
	"errors"

	"github.com/Tiisu/SourceWiki-sub001/internal/jwt"
	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/mediawiki"
	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/tokenstore"
	"github.com/Tiisu/SourceWiki-sub001/internal/store/core"
)

// Provider is the slice of the mediawiki client the services use.
// *mediawiki.Client satisfies it; tests substitute a fake.
type Provider interface {
	RequestToken(ctx context.Context) (*mediawiki.Credentials, string, error)
	ExchangeAccessToken(ctx context.Context, requestToken *mediawiki.Credentials, verifier string) (*mediawiki.Credentials, error)
	ResolveIdentity(ctx context.Context, access *mediawiki.Credentials) (*mediawiki.Identity, error)
}

// SessionIssuer produces local session credentials for an account.
// *jwt.Sessions satisfies it.
type SessionIssuer interface {
	IssueSession(ctx context.Context, userID string, extra map[string]any) (*jwt.Session, error)
}

// InitiateService starts a handshake.
type InitiateService interface {
	// Initiate obtains a request token, stores the pending handshake and
	// returns the URL the user must visit plus the anti-forgery state.
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
}

// CallbackService finishes a handshake.
type CallbackService interface {
	// Callback runs the disposition state machine. Every user-recoverable
	// failure is reported inside the Disposition; the error return is
	// reserved for operator-level faults (missing configuration, session
	// signing failure).
	Callback(ctx context.Context, req CallbackRequest) (*Disposition, error)
}

// InitiateRequest carries the optional link-account intent: when
// LinkAccountID is set the eventual callback attaches the wiki identity to
// that local account instead of logging in.
type InitiateRequest struct {
	LinkAccountID string
}

// InitiateResult is handed back to the routing layer.
type InitiateResult struct {
	AuthorizationURL string
	State            string
}

// CallbackRequest mirrors the provider's callback query parameters.
type CallbackRequest struct {
	Token    string
	Verifier string
	// State is compared against the stored anti-forgery value when the
	// caller echoes it back.
	State string
	// Denied is set when the user refused authorization at the wiki.
	Denied bool
	// ProblemCode is an OAuth-level problem reported by the provider.
	ProblemCode string
}

// Services bundles the wikiauth services for wiring.
type Services struct {
	Initiate InitiateService
	Callback CallbackService
}

// Deps are the collaborators both services share.
type Deps struct {
	Provider Provider
	Store    tokenstore.Store
	Repo     core.Repository
	Sessions SessionIssuer
}

// New wires the wikiauth services.
func New(d Deps) Services {
	return Services{
		Initiate: &initiateService{deps: d},
		Callback: &callbackService{deps: d},
	}
}

// Errors surfaced to the controller for non-disposition failures.
var (
	ErrInitiateFailed = errors.New("wikiauth: could not start handshake")
)
