// Package wikiauth exposes the wiki login flow over HTTP: starting the
// handshake, starting a link flow for an authenticated account, and the
// provider callback.
package wikiauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	dto "github.com/Tiisu/SourceWiki-sub001/internal/http/dto/wikiauth"
	httperrors "github.com/Tiisu/SourceWiki-sub001/internal/http/errors"
	svc "github.com/Tiisu/SourceWiki-sub001/internal/http/services/wikiauth"
	"github.com/Tiisu/SourceWiki-sub001/internal/jwt"
	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/mediawiki"
	"github.com/Tiisu/SourceWiki-sub001/internal/observability/logger"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Controller handles the wiki login endpoints.
type Controller struct {
	services svc.Services
	issuer   *jwt.Issuer

	// Optional frontend URLs. When set, the callback answers with a
	// browser redirect instead of JSON.
	successRedirect string
	errorRedirect   string
}

// NewController creates the wiki login controller.
func NewController(services svc.Services, issuer *jwt.Issuer, successRedirect, errorRedirect string) *Controller {
	return &Controller{
		services:        services,
		issuer:          issuer,
		successRedirect: successRedirect,
		errorRedirect:   errorRedirect,
	}
}

// Login handles GET /auth/wiki/login: starts a handshake and hands back the
// provider authorization URL. With ?redirect=true the browser is sent there
// directly.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	c.initiate(w, r, "")
}

// Link handles GET /auth/wiki/link: like Login, but the eventual callback
// attaches the wiki identity to the caller's account instead of logging in.
// Requires a bearer access token.
func (c *Controller) Link(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("bearer access token required"))
		return
	}
	accountID, err := c.issuer.ParseSubject(token)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrTokenInvalid)
		return
	}
	c.initiate(w, r, accountID)
}

func (c *Controller) initiate(w http.ResponseWriter, r *http.Request, linkAccountID string) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("wikiauth.initiate"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	result, err := c.services.Initiate.Initiate(ctx, svc.InitiateRequest{LinkAccountID: linkAccountID})
	if err != nil {
		log.Debug("initiate failed", logger.Err(err))
		switch {
		case mediawiki.IsConfigurationError(err):
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("identity provider is not configured"))
		case errors.Is(err, svc.ErrInitiateFailed):
			httperrors.WriteError(w, httperrors.ErrUpstreamProvider)
		default:
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	if r.URL.Query().Get("redirect") == "true" {
		http.Redirect(w, r, result.AuthorizationURL, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, dto.InitiateResponse{
		AuthorizationURL: result.AuthorizationURL,
		State:            result.State,
	})
}

// Callback handles GET /auth/wiki/callback, the return leg of the handshake.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("wikiauth.Callback"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := svc.CallbackRequest{
		Token:       q.Get("oauth_token"),
		Verifier:    q.Get("oauth_verifier"),
		State:       q.Get("state"),
		Denied:      q.Get("error") == "access_denied" || q.Get("denied") != "",
		ProblemCode: q.Get("oauth_problem"),
	}

	d, err := c.services.Callback.Callback(ctx, req)
	if err != nil {
		log.Error("callback failed", logger.Err(err))
		if mediawiki.IsConfigurationError(err) {
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("identity provider is not configured"))
			return
		}
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	if d.Outcome == svc.OutcomeError {
		c.writeCallbackError(w, r, d)
		return
	}
	c.writeCallbackSuccess(w, r, d)
}

func (c *Controller) writeCallbackError(w http.ResponseWriter, r *http.Request, d *svc.Disposition) {
	if c.errorRedirect != "" {
		u, err := url.Parse(c.errorRedirect)
		if err == nil {
			qs := u.Query()
			qs.Set("error", string(d.ErrorCode))
			u.RawQuery = qs.Encode()
			http.Redirect(w, r, u.String(), http.StatusFound)
			return
		}
	}

	writeJSON(w, statusForCode(d.ErrorCode), dto.CallbackResponse{
		Outcome:     string(svc.OutcomeError),
		ErrorCode:   string(d.ErrorCode),
		ErrorDetail: d.ErrorDetail,
	})
}

func (c *Controller) writeCallbackSuccess(w http.ResponseWriter, r *http.Request, d *svc.Disposition) {
	if c.successRedirect != "" {
		// Tokens travel in HttpOnly cookies on the redirect path, never in
		// the URL.
		if d.Session != nil {
			setSessionCookies(w, r, d.Session)
		}
		u, err := url.Parse(c.successRedirect)
		if err == nil {
			qs := u.Query()
			qs.Set("outcome", string(d.Outcome))
			u.RawQuery = qs.Encode()
			http.Redirect(w, r, u.String(), http.StatusFound)
			return
		}
	}

	resp := dto.CallbackResponse{
		Outcome:      string(d.Outcome),
		UserID:       d.UserID,
		WikiUsername: d.RemoteUsername,
		Synthetic:    d.Synthetic,
	}
	if d.Session != nil {
		resp.Session = &dto.SessionPayload{
			AccessToken:  d.Session.AccessToken,
			TokenType:    "Bearer",
			RefreshToken: d.Session.RefreshToken,
			ExpiresAt:    d.Session.ExpiresAt,
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

// ─── Helpers ───

func statusForCode(code svc.ErrorCode) int {
	switch code {
	case svc.CodeAccessDenied:
		return http.StatusForbidden
	case svc.CodeMissingParams, svc.CodeInvalidToken, svc.CodeStateMismatch:
		return http.StatusBadRequest
	case svc.CodeProviderError, svc.CodeExchangeFailed:
		return http.StatusBadGateway
	case svc.CodeAlreadyLinked:
		return http.StatusConflict
	case svc.CodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func setSessionCookies(w http.ResponseWriter, r *http.Request, s *jwt.Session) {
	secure := r.TLS != nil
	http.SetCookie(w, &http.Cookie{
		Name:     "sw_access",
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "sw_refresh",
		Value:    s.RefreshToken,
		Path:     "/auth/session",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
