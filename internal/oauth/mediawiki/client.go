// Package mediawiki implements the OAuth 1.0a consumer side for
// MediaWiki-family wikis: request signing, the three-step handshake, and the
// authenticated identity lookups used to resolve the remote username.
//
// Unlike the OAuth 2.0 providers most sites expose, MediaWiki validates the
// HMAC-SHA1 signature over a canonical base string, so the signing path must
// be byte-exact (see signature.go).
package mediawiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Tiisu/SourceWiki-sub001/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Config configures the consumer client.
type Config struct {
	// BaseURL is the wiki's script path, e.g. "https://wiki.example.org/w".
	// index.php and api.php are resolved under it.
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
}

// Client executes signed requests against one wiki.
type Client struct {
	baseURL string
	signer  *Signer
	http    *http.Client
}

// New creates a client for the configured wiki.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		signer:  NewSigner(cfg.ConsumerKey, cfg.ConsumerSecret),
		http:    &http.Client{Timeout: timeout},
	}
}

// checkConfigured reports ErrConfiguration when consumer credentials are
// absent. Every public operation calls it first.
func (c *Client) checkConfigured() error {
	if c.signer.ConsumerKey == "" || c.signer.ConsumerSecret == "" {
		return ErrConfiguration
	}
	return nil
}

func (c *Client) indexURL(title string) string {
	return c.baseURL + "/index.php?title=" + url.QueryEscape(title)
}

func (c *Client) apiURL() string {
	return c.baseURL + "/api.php"
}

// do executes one signed request and decodes the JSON response into out.
// params go to the query string on GET and to the form body on POST; either
// way they are part of the signed parameter set. The response is classified:
// markup bodies become ProtocolError, {error,...} payloads become
// RejectedError, transport failures wrap ErrProviderUnavailable.
func (c *Client) do(ctx context.Context, method, rawURL, endpoint string, params url.Values, token *Credentials, out any) error {
	start := time.Now()
	err := c.doOnce(ctx, method, rawURL, params, token, out)
	metrics.ObserveProviderCall(endpoint, callResult(err), time.Since(start))
	return err
}

func (c *Client) doOnce(ctx context.Context, method, rawURL string, params url.Values, token *Credentials, out any) error {
	authz, err := c.signer.Authorization(method, rawURL, params, token)
	if err != nil {
		return err
	}

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		full := rawURL
		if enc := params.Encode(); enc != "" {
			sep := "?"
			if strings.Contains(rawURL, "?") {
				sep = "&"
			}
			full = rawURL + sep + enc
		}
		req, err = http.NewRequestWithContext(ctx, method, full, nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", authz)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SourceWiki/1.0 (OAuth consumer)")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrProviderUnavailable, err)
	}

	if !looksLikeJSON(resp.Header.Get("Content-Type"), body) {
		return &ProtocolError{Hint: extractErrorHint(body), StatusCode: resp.StatusCode}
	}

	// Token endpoints answer {error, message}; the action API nests the
	// same shape under "error". Check both before decoding the payload.
	var probe struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if jsonErr := json.Unmarshal(body, &probe); jsonErr != nil {
		return &ProtocolError{Hint: extractErrorHint(body), StatusCode: resp.StatusCode}
	}
	if len(probe.Error) > 0 {
		return rejectedFromPayload(probe.Error, probe.Message)
	}

	if out != nil {
		if jsonErr := json.Unmarshal(body, out); jsonErr != nil {
			return &ProtocolError{Hint: extractErrorHint(body), StatusCode: resp.StatusCode}
		}
	}
	return nil
}

// rejectedFromPayload handles both error shapes the provider uses:
// a bare string ({"error":"mwoauth-...","message":"..."}) and the action
// API object ({"error":{"code":"...","info":"..."}}).
func rejectedFromPayload(raw json.RawMessage, message string) error {
	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		return &RejectedError{Code: code, Message: message}
	}
	var obj struct {
		Code string `json:"code"`
		Info string `json:"info"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Code != "" {
		return &RejectedError{Code: obj.Code, Message: obj.Info}
	}
	return &RejectedError{Code: strings.TrimSpace(string(raw)), Message: message}
}

func looksLikeJSON(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "application/json" || strings.HasSuffix(mt, "+json") {
			return true
		}
		if mt == "text/html" || mt == "application/xhtml+xml" {
			return false
		}
	}
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

var (
	titleRe     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	tagStripRe  = regexp.MustCompile(`<[^>]+>`)
	oauthCodeRe = regexp.MustCompile(`mwoauth-[a-z-]+|E\d{3}`)
)

// extractErrorHint pulls the most informative token out of a markup error
// page: a known error code if one appears, otherwise the page title,
// otherwise a short prefix of the stripped text.
func extractErrorHint(body []byte) string {
	s := string(body)
	if m := oauthCodeRe.FindString(s); m != "" {
		return m
	}
	if m := titleRe.FindStringSubmatch(s); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	text := strings.TrimSpace(tagStripRe.ReplaceAllString(s, " "))
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 120 {
		text = text[:120]
	}
	return text
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProviderRejected):
		return "rejected"
	case errors.Is(err, ErrProviderProtocol):
		return "protocol"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
