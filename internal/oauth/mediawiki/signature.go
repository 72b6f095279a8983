package mediawiki

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	tokens "github.com/Tiisu/SourceWiki-sub001/internal/security/token"
)

// Credentials is an OAuth 1.0a key/secret pair. Two instances exist per
// handshake: the short-lived request pair and the long-lived access pair.
type Credentials struct {
	Key    string
	Secret string
}

// Signer computes RFC 5849 HMAC-SHA1 signatures and assembles the
// Authorization header. Now and Nonce are injectable for tests.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	Now            func() time.Time
	Nonce          func() (string, error)
}

// NewSigner creates a Signer with real clock and random nonces.
func NewSigner(consumerKey, consumerSecret string) *Signer {
	return &Signer{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		Now:            time.Now,
		Nonce:          func() (string, error) { return tokens.GenerateOpaqueToken(16) },
	}
}

// Authorization builds the full value for the "Authorization" header.
//
//   - method is the HTTP method ("GET", "POST").
//   - rawURL is the full request URL; its query string is folded into the
//     signed parameter set and the URL itself is normalized.
//   - params are the non-OAuth request parameters (query for GET, body for
//     POST). They are signed but not emitted in the header.
//   - token is optional: nil before the request-token step.
//
// A fresh nonce and timestamp are generated on every call, so a retry must
// call Authorization again rather than resend the previous header.
func (s *Signer) Authorization(method, rawURL string, params url.Values, token *Credentials) (string, error) {
	if s.ConsumerKey == "" || s.ConsumerSecret == "" {
		return "", ErrConfiguration
	}
	nonce, err := s.Nonce()
	if err != nil {
		return "", err
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        fmt.Sprintf("%d", s.Now().Unix()),
		"oauth_version":          "1.0",
	}
	if token != nil && token.Key != "" {
		oauthParams["oauth_token"] = token.Key
	}

	var tokenSecret string
	if token != nil {
		tokenSecret = token.Secret
	}
	sig, err := s.sign(method, rawURL, params, oauthParams, tokenSecret)
	if err != nil {
		return "", err
	}
	oauthParams["oauth_signature"] = sig

	return formatHeader(oauthParams), nil
}

// sign computes the base-string signature for the merged parameter set.
func (s *Signer) sign(method, rawURL string, params url.Values, oauthParams map[string]string, tokenSecret string) (string, error) {
	normURL, query, err := normalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	base := strings.ToUpper(method) +
		"&" + percentEncode(normURL) +
		"&" + percentEncode(normalizeParams(oauthParams, query, params))

	key := signingKey(s.ConsumerSecret, tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// signingKey is percentEncode(consumerSecret) & percentEncode(tokenSecret),
// with the token secret empty before the request-token step.
func signingKey(consumerSecret, tokenSecret string) string {
	return percentEncode(consumerSecret) + "&" + percentEncode(tokenSecret)
}

// percentEncode implements the RFC 5849 variant of percent-encoding:
// everything except unreserved characters is encoded, uppercase hex.
// Stricter than url.QueryEscape, which leaves ! ' ( ) * alone.
func percentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// normalizeURL lowercases scheme and host, drops default ports, and strips
// the query and fragment. The parsed query is returned separately so it can
// be folded into the signed parameter set.
func normalizeURL(rawURL string) (string, url.Values, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", nil, fmt.Errorf("mediawiki: invalid URL %q", rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", nil, err
	}
	return scheme + "://" + host + path, query, nil
}

type paramPair struct {
	k string
	v string
}

// normalizeParams merges the oauth protocol parameters, the URL query and
// the request parameters into one bag, percent-encodes each key and value,
// sorts by encoded key then encoded value, and joins as k=v with "&".
// oauth_signature itself is never part of the bag.
func normalizeParams(oauthParams map[string]string, sets ...url.Values) string {
	n := len(oauthParams)
	for _, set := range sets {
		n += len(set)
	}
	pairs := make([]paramPair, 0, n)

	for k, v := range oauthParams {
		if k == "oauth_signature" {
			continue
		}
		pairs = append(pairs, paramPair{k: percentEncode(k), v: percentEncode(v)})
	}
	for _, set := range sets {
		for k, vs := range set {
			for _, v := range vs {
				pairs = append(pairs, paramPair{k: percentEncode(k), v: percentEncode(v)})
			}
		}
	}

	// Ties on the encoded key are broken by encoded value, which keeps
	// multi-valued parameters stable.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k == pairs[j].k {
			return pairs[i].v < pairs[j].v
		}
		return pairs[i].k < pairs[j].k
	})

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.k+"="+p.v)
	}
	return strings.Join(parts, "&")
}

// formatHeader renders `OAuth name="value", ...` with every oauth_*
// parameter percent-encoded and sorted by name.
func formatHeader(oauthParams map[string]string) string {
	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, percentEncode(k)+"=\""+percentEncode(oauthParams[k])+"\"")
	}
	return "OAuth " + strings.Join(parts, ", ")
}
