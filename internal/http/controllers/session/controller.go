// Package session exposes refresh-token rotation and logout.
package session

import (
	"encoding/json"
	"net/http"

	dto "github.com/Tiisu/SourceWiki-sub001/internal/http/dto/session"
	httperrors "github.com/Tiisu/SourceWiki-sub001/internal/http/errors"
	"github.com/Tiisu/SourceWiki-sub001/internal/jwt"
	"github.com/Tiisu/SourceWiki-sub001/internal/observability/logger"
)

const (
	maxBodySize     = 64 * 1024
	contentTypeJSON = "application/json; charset=utf-8"
)

// Controller handles session maintenance endpoints.
type Controller struct {
	sessions *jwt.Sessions
}

func NewController(sessions *jwt.Sessions) *Controller {
	return &Controller{sessions: sessions}
}

// Refresh handles POST /auth/session/refresh. The presented refresh token
// is invalidated and a fresh pair is issued.
func (c *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("session.Refresh"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	var req dto.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.RefreshToken == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("refresh_token is required"))
		return
	}

	sess, ok, err := c.sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		log.Error("refresh failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenInvalid.WithDetail("unknown or expired refresh token"))
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.RefreshResponse{
		AccessToken:  sess.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
	})
}

// Logout handles POST /auth/session/logout: drops the refresh token so it
// can no longer be rotated. Idempotent.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	var req dto.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.RefreshToken != "" {
		c.sessions.Revoke(r.Context(), req.RefreshToken)
	}

	w.WriteHeader(http.StatusNoContent)
}
