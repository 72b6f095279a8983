package wikiauth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	svc "github.com/Tiisu/SourceWiki-sub001/internal/http/services/wikiauth"
	"github.com/Tiisu/SourceWiki-sub001/internal/jwt"
	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/mediawiki"
	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/tokenstore"
	"github.com/Tiisu/SourceWiki-sub001/internal/store/core"
	memstore "github.com/Tiisu/SourceWiki-sub001/internal/store/memory"
)

// fakeProvider scripts the three provider operations and counts calls.
type fakeProvider struct {
	requestToken  *mediawiki.Credentials
	authorizeURL  string
	requestErr    error
	access        *mediawiki.Credentials
	exchangeErr   error
	identity      *mediawiki.Identity
	resolveErr    error
	exchangeCalls int
}

func (f *fakeProvider) RequestToken(context.Context) (*mediawiki.Credentials, string, error) {
	if f.requestErr != nil {
		return nil, "", f.requestErr
	}
	return f.requestToken, f.authorizeURL, nil
}

func (f *fakeProvider) ExchangeAccessToken(_ context.Context, _ *mediawiki.Credentials, _ string) (*mediawiki.Credentials, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.access, nil
}

func (f *fakeProvider) ResolveIdentity(context.Context, *mediawiki.Credentials) (*mediawiki.Identity, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.identity, nil
}

type fakeSessions struct {
	issued int
	err    error
}

func (f *fakeSessions) IssueSession(_ context.Context, userID string, _ map[string]any) (*jwt.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.issued++
	return &jwt.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

type fixture struct {
	provider *fakeProvider
	store    tokenstore.Store
	repo     *memstore.Repo
	sessions *fakeSessions
	services svc.Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: &fakeProvider{
			requestToken: &mediawiki.Credentials{Key: "reqtok", Secret: "reqsec"},
			authorizeURL: "https://wiki.example.org/w/index.php?title=Special%3AOAuth%2Fauthorize&oauth_consumer_key=ck&oauth_token=reqtok",
			access:       &mediawiki.Credentials{Key: "acctok", Secret: "accsec"},
			identity: &mediawiki.Identity{
				RemoteID:  "42",
				Username:  "Alice",
				EditCount: 10,
				Groups:    []string{"user"},
			},
		},
		store:    tokenstore.NewMemory(time.Minute),
		repo:     memstore.New(),
		sessions: &fakeSessions{},
	}
	t.Cleanup(func() { f.store.Close() })
	f.services = svc.New(svc.Deps{
		Provider: f.provider,
		Store:    f.store,
		Repo:     f.repo,
		Sessions: f.sessions,
	})
	return f
}

// initiate runs the first leg and hands back the state for the callback.
func (f *fixture) initiate(t *testing.T, linkAccountID string) *svc.InitiateResult {
	t.Helper()
	res, err := f.services.Initiate.Initiate(context.Background(), svc.InitiateRequest{LinkAccountID: linkAccountID})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	return res
}

func TestInitiateStoresHandshake(t *testing.T) {
	f := newFixture(t)

	res := f.initiate(t, "")
	if res.AuthorizationURL != f.provider.authorizeURL {
		t.Fatalf("authorization URL = %q", res.AuthorizationURL)
	}
	if res.State == "" {
		t.Fatal("state must not be empty")
	}

	e, ok, err := f.store.TakeOnce(context.Background(), "reqtok")
	if err != nil || !ok {
		t.Fatalf("pending entry not stored: ok=%v err=%v", ok, err)
	}
	if e.TokenSecret != "reqsec" || e.State != res.State {
		t.Fatalf("entry = %+v", e)
	}
}

func TestInitiateProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.requestErr = errors.New("boom")

	_, err := f.services.Initiate.Initiate(context.Background(), svc.InitiateRequest{})
	if !errors.Is(err, svc.ErrInitiateFailed) {
		t.Fatalf("expected ErrInitiateFailed, got %v", err)
	}
}

func TestInitiateConfigurationErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.provider.requestErr = mediawiki.ErrConfiguration

	_, err := f.services.Initiate.Initiate(context.Background(), svc.InitiateRequest{})
	if !mediawiki.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCallbackDeniedShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.initiate(t, "")

	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{Denied: true})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.Outcome != svc.OutcomeError || d.ErrorCode != svc.CodeAccessDenied {
		t.Fatalf("disposition = %+v", d)
	}
	if f.provider.exchangeCalls != 0 {
		t.Fatal("denied callback must not hit the provider")
	}
}

func TestCallbackProblemCode(t *testing.T) {
	f := newFixture(t)

	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{ProblemCode: "token_rejected"})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.ErrorCode != svc.CodeProviderError || d.ErrorDetail != "token_rejected" {
		t.Fatalf("disposition = %+v", d)
	}
}

func TestCallbackMissingParameters(t *testing.T) {
	f := newFixture(t)

	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{Token: "reqtok"})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.ErrorCode != svc.CodeMissingParams {
		t.Fatalf("disposition = %+v", d)
	}
}

func TestCallbackUnknownToken(t *testing.T) {
	f := newFixture(t)

	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{Token: "stranger", Verifier: "v"})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.ErrorCode != svc.CodeInvalidToken {
		t.Fatalf("disposition = %+v", d)
	}
}

func TestCallbackStateMismatchConsumesToken(t *testing.T) {
	f := newFixture(t)
	res := f.initiate(t, "")

	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: "forged",
	})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.ErrorCode != svc.CodeStateMismatch {
		t.Fatalf("disposition = %+v", d)
	}
	if f.provider.exchangeCalls != 0 {
		t.Fatal("mismatched state must not reach the exchange")
	}

	// The entry was consumed: a retry with the honest state now fails too.
	d, err = f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: res.State,
	})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.ErrorCode != svc.CodeInvalidToken {
		t.Fatalf("replay after mismatch = %+v", d)
	}
}

func TestCallbackExchangeFailure(t *testing.T) {
	f := newFixture(t)
	res := f.initiate(t, "")
	f.provider.exchangeErr = errors.New("mwoauth-invalid-token")

	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: res.State,
	})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.ErrorCode != svc.CodeExchangeFailed {
		t.Fatalf("disposition = %+v", d)
	}
}

func TestCallbackRegistersNewUser(t *testing.T) {
	f := newFixture(t)
	res := f.initiate(t, "")

	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: res.State,
	})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.Outcome != svc.OutcomeRegistered {
		t.Fatalf("disposition = %+v", d)
	}
	if d.Session == nil {
		t.Fatal("registration must issue a session")
	}
	if d.RemoteUsername != "Alice" || d.Synthetic {
		t.Fatalf("disposition = %+v", d)
	}

	u, err := f.repo.FindUserByWikiRemoteID(context.Background(), "42")
	if err != nil {
		t.Fatalf("created user not findable: %v", err)
	}
	if u.Username != "Alice" || u.WikiAccessToken != "acctok" || u.WikiAccessSecret != "accsec" {
		t.Fatalf("user = %+v", u)
	}
	if u.PasswordHash == "" {
		t.Fatal("registered account needs a placeholder password hash")
	}
}

func TestCallbackLogsInExistingUser(t *testing.T) {
	f := newFixture(t)

	// First round registers.
	res := f.initiate(t, "")
	if d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: res.State,
	}); err != nil || d.Outcome != svc.OutcomeRegistered {
		t.Fatalf("first round: d=%+v err=%v", d, err)
	}

	// Second round with a fresh handshake logs in.
	res = f.initiate(t, "")
	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: res.State,
	})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.Outcome != svc.OutcomeLoggedIn || d.Session == nil {
		t.Fatalf("disposition = %+v", d)
	}
	if f.sessions.issued != 2 {
		t.Fatalf("sessions issued = %d", f.sessions.issued)
	}
}

func TestCallbackFindsUserBySyntheticAccessToken(t *testing.T) {
	f := newFixture(t)
	f.provider.identity = &mediawiki.Identity{
		RemoteID:  "wikiuser_acctok",
		Username:  "wikiuser_acctok",
		Synthetic: true,
	}

	// Seed an account that was registered under the synthetic identity.
	seeded := &core.User{
		Username:        "wikiuser_acctok",
		PasswordHash:    "x",
		WikiRemoteID:    "wikiuser_acctok",
		WikiAccessToken: "acctok",
		WikiSynthetic:   true,
	}
	if err := f.repo.CreateUser(context.Background(), seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res := f.initiate(t, "")
	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: res.State,
	})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.Outcome != svc.OutcomeLoggedIn || d.UserID != seeded.ID {
		t.Fatalf("disposition = %+v", d)
	}
}

func TestCallbackLinkFlow(t *testing.T) {
	f := newFixture(t)

	target := &core.User{Username: "local", PasswordHash: "x"}
	if err := f.repo.CreateUser(context.Background(), target); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res := f.initiate(t, target.ID)
	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: res.State,
	})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.Outcome != svc.OutcomeLinked || d.UserID != target.ID {
		t.Fatalf("disposition = %+v", d)
	}
	if d.Session != nil {
		t.Fatal("link flow keeps the caller's session")
	}

	u, err := f.repo.GetUserByID(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if u.WikiRemoteID != "42" || u.WikiUsername != "Alice" {
		t.Fatalf("identity not linked: %+v", u)
	}
}

func TestCallbackLinkAlreadyLinkedElsewhere(t *testing.T) {
	f := newFixture(t)

	holder := &core.User{Username: "holder", PasswordHash: "x", WikiRemoteID: "42"}
	if err := f.repo.CreateUser(context.Background(), holder); err != nil {
		t.Fatalf("seed holder: %v", err)
	}
	target := &core.User{Username: "target", PasswordHash: "x"}
	if err := f.repo.CreateUser(context.Background(), target); err != nil {
		t.Fatalf("seed target: %v", err)
	}

	res := f.initiate(t, target.ID)
	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: res.State,
	})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.ErrorCode != svc.CodeAlreadyLinked {
		t.Fatalf("disposition = %+v", d)
	}
}

func TestCallbackLinkTargetMissing(t *testing.T) {
	f := newFixture(t)

	res := f.initiate(t, "no-such-user")
	d, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: res.State,
	})
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if d.ErrorCode != svc.CodeUserNotFound {
		t.Fatalf("disposition = %+v", d)
	}
}

func TestCallbackSessionFailureIsOperatorError(t *testing.T) {
	f := newFixture(t)
	f.sessions.err = errors.New("signer broken")

	res := f.initiate(t, "")
	_, err := f.services.Callback.Callback(context.Background(), svc.CallbackRequest{
		Token: "reqtok", Verifier: "v", State: res.State,
	})
	if err == nil {
		t.Fatal("session failure must surface as an error, not a disposition")
	}
}
