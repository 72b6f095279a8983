package wikiauth

import (
	"context"
	"fmt"

	"github.com/Tiisu/SourceWiki-sub001/internal/metrics"
	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/mediawiki"
	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/tokenstore"
	"github.com/Tiisu/SourceWiki-sub001/internal/observability/logger"
	tokens "github.com/Tiisu/SourceWiki-sub001/internal/security/token"
)

type initiateService struct {
	deps Deps
}

func (s *initiateService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("wikiauth.initiate"))

	token, authorizeURL, err := s.deps.Provider.RequestToken(ctx)
	if err != nil {
		if mediawiki.IsConfigurationError(err) {
			return nil, err
		}
		log.Error("request token failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrInitiateFailed, err)
	}

	state, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return nil, err
	}

	// The entry must be stored before the authorize URL leaves this
	// function; otherwise the callback could race an absent entry.
	err = s.deps.Store.Put(ctx, token.Key, tokenstore.Entry{
		TokenSecret:   token.Secret,
		State:         state,
		LinkAccountID: req.LinkAccountID,
	})
	if err != nil {
		log.Error("storing pending handshake failed", logger.TokenID(token.Key), logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrInitiateFailed, err)
	}

	metrics.HandshakeStarted()
	log.Info("handshake started",
		logger.TokenID(token.Key),
		logger.Bool("link_flow", req.LinkAccountID != ""),
	)

	return &InitiateResult{AuthorizationURL: authorizeURL, State: state}, nil
}
