// Package jwt issues the local session credentials handed out after a
// successful wiki login: an EdDSA-signed access token plus an opaque
// refresh token whose hash is kept server-side.
package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer signs access tokens with a single Ed25519 key.
type Issuer struct {
	Iss       string
	AccessTTL time.Duration

	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewIssuer builds an Issuer from a base64 Ed25519 seed. An empty seed
// generates an ephemeral key, which invalidates sessions on restart; fine
// for development, configure a seed in production.
func NewIssuer(iss, seedB64 string, accessTTL time.Duration) (*Issuer, error) {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}

	var priv ed25519.PrivateKey
	if seedB64 == "" {
		_, generated, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		priv = generated
	} else {
		seed, err := base64.StdEncoding.DecodeString(seedB64)
		if err != nil {
			return nil, fmt.Errorf("jwt: decoding ed25519 seed: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("jwt: ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}

	pub := priv.Public().(ed25519.PublicKey)
	kid := base64.RawURLEncoding.EncodeToString(pub[:8])

	return &Issuer{
		Iss:       iss,
		AccessTTL: accessTTL,
		kid:       kid,
		priv:      priv,
		pub:       pub,
	}, nil
}

// IssueAccess signs an access token for the given subject with optional
// extra claims.
func (i *Issuer) IssueAccess(sub string, extra map[string]any) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.kid
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Keyfunc verifies tokens signed by this issuer.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		return i.pub, nil
	}
}

// ParseSubject validates a token and returns its subject.
func (i *Issuer) ParseSubject(tokenString string) (string, error) {
	tk, err := jwtv5.Parse(tokenString, i.Keyfunc(), jwtv5.WithValidMethods([]string{"EdDSA"}))
	if err != nil || !tk.Valid {
		return "", fmt.Errorf("jwt: invalid token")
	}
	claims, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		return "", fmt.Errorf("jwt: invalid claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("jwt: missing subject")
	}
	return sub, nil
}
