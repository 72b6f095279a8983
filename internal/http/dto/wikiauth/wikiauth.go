// Package wikiauth holds the wire types for the wiki login endpoints.
package wikiauth

import "time"

// InitiateResponse is the output of GET /auth/wiki/login and /auth/wiki/link.
type InitiateResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// SessionPayload is the credential pair handed to the client.
type SessionPayload struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CallbackResponse reports the disposition of GET /auth/wiki/callback.
type CallbackResponse struct {
	Outcome      string          `json:"outcome"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorDetail  string          `json:"error_detail,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	WikiUsername string          `json:"wiki_username,omitempty"`
	Synthetic    bool            `json:"synthetic,omitempty"`
	Session      *SessionPayload `json:"session,omitempty"`
}
