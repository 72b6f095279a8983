package mediawiki

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// Identity is the resolved remote identity. Synthetic marks a fallback
// identity derived locally from the access token rather than confirmed by
// the provider; the account layer treats it as lower trust.
type Identity struct {
	RemoteID  string
	Username  string
	EditCount int
	Groups    []string
	Rights    []string
	Synthetic bool
}

// syntheticPrefixLen is how much of the access token seeds the fallback
// username, enough to be unique without leaking the whole token.
const syntheticPrefixLen = 16

// ResolveIdentity resolves the remote identity behind a verified access
// pair. Strategies are tried in order until one yields a non-anonymous
// username:
//
//  1. minimal userinfo query (name + id)
//  2. on a permission-denied class failure, a name-only retry
//  3. if name and id were obtained, one enrichment query for
//     groups/editcount/rights, keeping the minimal result if it fails
//
// Provider failures never surface: anything short of missing consumer
// credentials degrades to a synthetic identity so login can still complete.
func (c *Client) ResolveIdentity(ctx context.Context, access *Credentials) (*Identity, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}
	if access == nil || access.Key == "" {
		return syntheticIdentity(""), nil
	}

	ui, err := c.userInfo(ctx, access, "")
	if err != nil && isPermissionDenied(err) {
		ui, err = c.userInfo(ctx, access, "name")
	}
	if err != nil || ui == nil || ui.anonymous() {
		return syntheticIdentity(access.Key), nil
	}

	ident := &Identity{
		RemoteID: strconv.FormatInt(ui.ID, 10),
		Username: ui.Name,
	}
	if ui.ID == 0 {
		// Name-only result: fall back to the name as the stable id.
		ident.RemoteID = ui.Name
	}

	// Enrichment is best effort; the minimal identity stands on failure.
	if enriched, eerr := c.userInfo(ctx, access, "groups|rights|editcount"); eerr == nil && enriched != nil && !enriched.anonymous() {
		ident.EditCount = enriched.EditCount
		ident.Groups = enriched.Groups
		ident.Rights = enriched.Rights
	}
	return ident, nil
}

type userInfoResult struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Anon      any      `json:"anon"`
	EditCount int      `json:"editcount"`
	Groups    []string `json:"groups"`
	Rights    []string `json:"rights"`
}

// anonymous reports whether the provider answered with a logged-out
// identity (IP name with the anon marker, or no name at all).
func (u *userInfoResult) anonymous() bool {
	return u.Name == "" || u.Anon != nil
}

// userInfo performs one authenticated meta=userinfo query. uiprop selects
// the extra properties; empty requests just name and id.
func (c *Client) userInfo(ctx context.Context, access *Credentials, uiprop string) (*userInfoResult, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "userinfo")
	params.Set("format", "json")
	if uiprop != "" {
		params.Set("uiprop", uiprop)
	}

	var res struct {
		Query struct {
			UserInfo userInfoResult `json:"userinfo"`
		} `json:"query"`
	}
	if err := c.do(ctx, http.MethodGet, c.apiURL(), "userinfo", params, access, &res); err != nil {
		return nil, err
	}
	return &res.Query.UserInfo, nil
}

// syntheticIdentity derives the terminal fallback identity from the access
// token. Deterministic: the same token always yields the same identity, so
// a user whose wiki hides their profile keeps one stable local account.
func syntheticIdentity(accessKey string) *Identity {
	seed := accessKey
	if len(seed) > syntheticPrefixLen {
		seed = seed[:syntheticPrefixLen]
	}
	name := "wikiuser_" + seed
	return &Identity{
		RemoteID:  name,
		Username:  name,
		Synthetic: true,
	}
}

// IsConfigurationError reports whether err is the non-degradable
// missing-credentials case.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
