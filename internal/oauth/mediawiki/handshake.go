package mediawiki

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// oobCallback is the out-of-band sentinel required when the consumer has no
// dynamically registered callback; MediaWiki redirects to the callback URL
// registered with the consumer instead.
const oobCallback = "oob"

// RequestToken is the first handshake step: it obtains a request credential
// pair and the URL the user must visit to authorize it.
func (c *Client) RequestToken(ctx context.Context) (*Credentials, string, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, "", err
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("oauth_callback", oobCallback)

	var res struct {
		Key    string `json:"key"`
		Secret string `json:"secret"`
	}
	endpoint := c.indexURL("Special:OAuth/initiate")
	if err := c.do(ctx, http.MethodGet, endpoint, "initiate", params, nil, &res); err != nil {
		return nil, "", err
	}
	if res.Key == "" || res.Secret == "" {
		return nil, "", &ProtocolError{Hint: "initiate response missing key/secret"}
	}

	token := &Credentials{Key: res.Key, Secret: res.Secret}
	return token, c.AuthorizeURL(res.Key), nil
}

// AuthorizeURL is the provider's authorization endpoint for the given
// request token. Pure, no network call.
func (c *Client) AuthorizeURL(tokenKey string) string {
	return c.indexURL("Special:OAuth/authorize") +
		"&oauth_consumer_key=" + url.QueryEscape(c.signer.ConsumerKey) +
		"&oauth_token=" + url.QueryEscape(tokenKey)
}

// ExchangeAccessToken is the third handshake step: it trades the request
// pair plus the user-supplied verifier for the long-lived access pair.
func (c *Client) ExchangeAccessToken(ctx context.Context, requestToken *Credentials, verifier string) (*Credentials, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}
	if requestToken == nil || requestToken.Key == "" {
		return nil, fmt.Errorf("mediawiki: request token required")
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("oauth_verifier", verifier)

	var res struct {
		Key    string `json:"key"`
		Secret string `json:"secret"`
	}
	endpoint := c.indexURL("Special:OAuth/token")
	if err := c.do(ctx, http.MethodGet, endpoint, "token", params, requestToken, &res); err != nil {
		return nil, err
	}
	if res.Key == "" || res.Secret == "" {
		return nil, &ProtocolError{Hint: "token response missing key/secret"}
	}
	return &Credentials{Key: res.Key, Secret: res.Secret}, nil
}
