package wikiauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Tiisu/SourceWiki-sub001/internal/metrics"
	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/mediawiki"
	"github.com/Tiisu/SourceWiki-sub001/internal/observability/logger"
	"github.com/Tiisu/SourceWiki-sub001/internal/security/password"
	"github.com/Tiisu/SourceWiki-sub001/internal/store/core"
)

type callbackService struct {
	deps Deps
}

// Callback walks the disposition state machine: validate parameters,
// consume the stored request token exactly once, exchange for the access
// pair, resolve identity, then branch into link or login/register.
func (s *callbackService) Callback(ctx context.Context, req CallbackRequest) (*Disposition, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("wikiauth.callback"))

	d, err := s.callback(ctx, log, req)
	if d != nil {
		if d.Outcome == OutcomeError {
			metrics.CallbackOutcome("error:" + string(d.ErrorCode))
		} else {
			metrics.CallbackOutcome(string(d.Outcome))
		}
	}
	return d, err
}

func (s *callbackService) callback(ctx context.Context, log *zap.Logger, req CallbackRequest) (*Disposition, error) {
	// Provider-signaled denial or problem: terminal before any lookup.
	if req.Denied {
		log.Info("user denied authorization")
		return errorDisposition(CodeAccessDenied, "the user denied authorization"), nil
	}
	if req.ProblemCode != "" {
		log.Warn("provider reported oauth problem", logger.String("problem", req.ProblemCode))
		return errorDisposition(CodeProviderError, req.ProblemCode), nil
	}

	if req.Token == "" || req.Verifier == "" {
		return errorDisposition(CodeMissingParams, "oauth_token and oauth_verifier are required"), nil
	}

	entry, ok, err := s.deps.Store.TakeOnce(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("wikiauth: token store: %w", err)
	}
	if !ok {
		log.Warn("unknown or expired request token", logger.TokenID(req.Token))
		return errorDisposition(CodeInvalidToken, "unknown or expired request token"), nil
	}

	// The entry is consumed at this point regardless of what follows: a
	// mismatched state must not leave the token claimable by a retry.
	if req.State != "" && subtle.ConstantTimeCompare([]byte(req.State), []byte(entry.State)) != 1 {
		log.Warn("anti-forgery state mismatch", logger.TokenID(req.Token))
		return errorDisposition(CodeStateMismatch, "anti-forgery state does not match"), nil
	}

	access, err := s.deps.Provider.ExchangeAccessToken(ctx, &mediawiki.Credentials{Key: req.Token, Secret: entry.TokenSecret}, req.Verifier)
	if err != nil {
		if mediawiki.IsConfigurationError(err) {
			return nil, err
		}
		log.Error("access token exchange failed", logger.TokenID(req.Token), logger.Err(err))
		return errorDisposition(CodeExchangeFailed, "access token exchange failed"), nil
	}

	ident, err := s.deps.Provider.ResolveIdentity(ctx, access)
	if err != nil {
		// Only configuration errors escape the resolver.
		return nil, err
	}
	log.Info("remote identity resolved",
		logger.RemoteUser(ident.Username),
		logger.Bool("synthetic", ident.Synthetic),
	)

	if entry.LinkAccountID != "" {
		return s.link(ctx, log, entry.LinkAccountID, access, ident)
	}
	return s.loginOrRegister(ctx, log, access, ident)
}

// link attaches the resolved identity to the requesting local account,
// unless another account already holds this remote identity.
func (s *callbackService) link(ctx context.Context, log *zap.Logger, accountID string, access *mediawiki.Credentials, ident *mediawiki.Identity) (*Disposition, error) {
	if holder, err := s.deps.Repo.FindUserByWikiRemoteID(ctx, ident.RemoteID); err == nil {
		if holder.ID != accountID {
			log.Warn("remote identity already linked elsewhere",
				logger.RemoteUser(ident.Username),
				logger.UserID(holder.ID),
			)
			return errorDisposition(CodeAlreadyLinked, "this wiki account is already linked to another user"), nil
		}
		// Already linked to the target: refreshing below is harmless.
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("wikiauth: remote id lookup: %w", err)
	}

	target, err := s.deps.Repo.GetUserByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return errorDisposition(CodeUserNotFound, "link target account does not exist"), nil
		}
		return nil, fmt.Errorf("wikiauth: link target lookup: %w", err)
	}

	if err := s.deps.Repo.UpdateWikiIdentity(ctx, target.ID, wikiIdentity(access, ident)); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return errorDisposition(CodeAlreadyLinked, "this wiki account is already linked to another user"), nil
		}
		return nil, fmt.Errorf("wikiauth: linking identity: %w", err)
	}

	log.Info("wiki identity linked", logger.UserID(target.ID), logger.RemoteUser(ident.Username))
	return &Disposition{
		Outcome:        OutcomeLinked,
		UserID:         target.ID,
		RemoteUsername: ident.Username,
		Synthetic:      ident.Synthetic,
	}, nil
}

// loginOrRegister finds the local account behind the resolved identity or
// creates one. Lookup order: remote id, then the access token itself (an
// account created under an earlier synthetic identity), then username.
func (s *callbackService) loginOrRegister(ctx context.Context, log *zap.Logger, access *mediawiki.Credentials, ident *mediawiki.Identity) (*Disposition, error) {
	user, err := s.findExisting(ctx, access, ident)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user, err = s.register(ctx, log, access, ident)
		if err != nil {
			return nil, err
		}
		if user == nil {
			// Creation raced another callback; the winner's account is
			// now findable by remote id.
			user, err = s.deps.Repo.FindUserByWikiRemoteID(ctx, ident.RemoteID)
			if err != nil {
				return nil, fmt.Errorf("wikiauth: post-conflict lookup: %w", err)
			}
		} else {
			sess, err := s.deps.Sessions.IssueSession(ctx, user.ID, sessionClaims(ident))
			if err != nil {
				return nil, fmt.Errorf("wikiauth: issuing session: %w", err)
			}
			log.Info("account registered", logger.UserID(user.ID), logger.RemoteUser(ident.Username))
			return &Disposition{
				Outcome:        OutcomeRegistered,
				UserID:         user.ID,
				RemoteUsername: ident.Username,
				Synthetic:      ident.Synthetic,
				Session:        sess,
			}, nil
		}
	}

	if err := s.deps.Repo.UpdateWikiIdentity(ctx, user.ID, wikiIdentity(access, ident)); err != nil && !errors.Is(err, core.ErrConflict) {
		return nil, fmt.Errorf("wikiauth: refreshing identity: %w", err)
	}

	sess, err := s.deps.Sessions.IssueSession(ctx, user.ID, sessionClaims(ident))
	if err != nil {
		return nil, fmt.Errorf("wikiauth: issuing session: %w", err)
	}
	log.Info("user logged in", logger.UserID(user.ID), logger.RemoteUser(ident.Username))
	return &Disposition{
		Outcome:        OutcomeLoggedIn,
		UserID:         user.ID,
		RemoteUsername: ident.Username,
		Synthetic:      ident.Synthetic,
		Session:        sess,
	}, nil
}

func (s *callbackService) findExisting(ctx context.Context, access *mediawiki.Credentials, ident *mediawiki.Identity) (*core.User, error) {
	lookups := []func() (*core.User, error){
		func() (*core.User, error) { return s.deps.Repo.FindUserByWikiRemoteID(ctx, ident.RemoteID) },
		func() (*core.User, error) { return s.deps.Repo.FindUserByWikiAccessToken(ctx, access.Key) },
		func() (*core.User, error) { return s.deps.Repo.FindUserByUsername(ctx, ident.Username) },
	}
	for _, find := range lookups {
		u, err := find()
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("wikiauth: account lookup: %w", err)
		}
	}
	return nil, nil
}

// register creates the account with an unusable placeholder password.
// Returns (nil, nil) on a uniqueness conflict so the caller can re-resolve.
func (s *callbackService) register(ctx context.Context, log *zap.Logger, access *mediawiki.Credentials, ident *mediawiki.Identity) (*core.User, error) {
	placeholder, err := password.GeneratePlaceholder()
	if err != nil {
		return nil, err
	}

	u := &core.User{
		Username:         ident.Username,
		PasswordHash:     placeholder,
		Status:           "active",
		WikiRemoteID:     ident.RemoteID,
		WikiUsername:     ident.Username,
		WikiAccessToken:  access.Key,
		WikiAccessSecret: access.Secret,
		WikiEditCount:    ident.EditCount,
		WikiGroups:       ident.Groups,
		WikiRights:       ident.Rights,
		WikiSynthetic:    ident.Synthetic,
	}
	if err := s.deps.Repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, core.ErrConflict) {
			log.Warn("registration raced a concurrent callback", logger.RemoteUser(ident.Username))
			return nil, nil
		}
		return nil, fmt.Errorf("wikiauth: creating account: %w", err)
	}
	return u, nil
}

func wikiIdentity(access *mediawiki.Credentials, ident *mediawiki.Identity) core.WikiIdentity {
	return core.WikiIdentity{
		RemoteID:     ident.RemoteID,
		Username:     ident.Username,
		AccessToken:  access.Key,
		AccessSecret: access.Secret,
		EditCount:    ident.EditCount,
		Groups:       ident.Groups,
		Rights:       ident.Rights,
		Synthetic:    ident.Synthetic,
	}
}

func sessionClaims(ident *mediawiki.Identity) map[string]any {
	return map[string]any{
		"wiki_username":  ident.Username,
		"wiki_synthetic": ident.Synthetic,
	}
}
