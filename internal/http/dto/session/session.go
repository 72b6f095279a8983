// Package session holds the wire types for session maintenance endpoints.
package session

import "time"

// RefreshRequest is the input for POST /auth/session/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse carries the rotated credential pair.
type RefreshResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LogoutRequest is the input for POST /auth/session/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}
