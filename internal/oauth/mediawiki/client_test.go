package mediawiki_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Tiisu/SourceWiki-sub001/internal/oauth/mediawiki"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*mediawiki.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := mediawiki.New(mediawiki.Config{
		BaseURL:        srv.URL + "/w",
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
	})
	return c, srv
}

func TestRequestTokenSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("title") != "Special:OAuth/initiate" {
			t.Errorf("unexpected title %q", r.URL.Query().Get("title"))
		}
		if r.URL.Query().Get("oauth_callback") != "oob" {
			t.Errorf("oauth_callback = %q, want oob", r.URL.Query().Get("oauth_callback"))
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			t.Errorf("missing OAuth authorization header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"key":"tok123","secret":"sec123"}`))
	})

	tok, authorizeURL, err := c.RequestToken(context.Background())
	if err != nil {
		t.Fatalf("RequestToken: %v", err)
	}
	if tok.Key != "tok123" || tok.Secret != "sec123" {
		t.Fatalf("token = %+v", tok)
	}
	if !strings.HasSuffix(authorizeURL, "oauth_token=tok123") {
		t.Fatalf("authorize URL must end with the token: %q", authorizeURL)
	}
	if !strings.Contains(authorizeURL, "Special%3AOAuth%2Fauthorize") {
		t.Fatalf("authorize URL missing special page: %q", authorizeURL)
	}
	if !strings.Contains(authorizeURL, "oauth_consumer_key=ck") {
		t.Fatalf("authorize URL missing consumer key: %q", authorizeURL)
	}
}

func TestExchangeAccessToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("oauth_verifier") != "ver42" {
			t.Errorf("verifier = %q", r.URL.Query().Get("oauth_verifier"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"key":"ak","secret":"as"}`))
	})

	access, err := c.ExchangeAccessToken(context.Background(), &mediawiki.Credentials{Key: "tok", Secret: "sec"}, "ver42")
	if err != nil {
		t.Fatalf("ExchangeAccessToken: %v", err)
	}
	if access.Key != "ak" || access.Secret != "as" {
		t.Fatalf("access = %+v", access)
	}
}

func TestHTMLBodyBecomesProtocolError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<html><head><title>MediaWiki error</title></head><body>Error E001: bad consumer</body></html>`))
	})

	_, _, err := c.RequestToken(context.Background())
	if !errors.Is(err, mediawiki.ErrProviderProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	var perr *mediawiki.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtocolError, got %T", err)
	}
	if perr.Hint != "E001" {
		t.Fatalf("hint = %q, want the error code", perr.Hint)
	}
}

func TestRejectedErrorStringShape(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"mwoauth-invalid-token","message":"the token is unknown"}`))
	})

	_, _, err := c.RequestToken(context.Background())
	if !errors.Is(err, mediawiki.ErrProviderRejected) {
		t.Fatalf("expected rejected error, got %v", err)
	}
	var rerr *mediawiki.RejectedError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RejectedError, got %T", err)
	}
	if rerr.Code != "mwoauth-invalid-token" || rerr.Message != "the token is unknown" {
		t.Fatalf("rejected = %+v", rerr)
	}
}

func TestRejectedErrorObjectShape(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":{"code":"readapidenied","info":"you need read rights"}}`))
	})

	_, _, err := c.RequestToken(context.Background())
	var rerr *mediawiki.RejectedError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RejectedError, got %v", err)
	}
	if rerr.Code != "readapidenied" || rerr.Message != "you need read rights" {
		t.Fatalf("rejected = %+v", rerr)
	}
}

func TestUnreachableProviderIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := mediawiki.New(mediawiki.Config{BaseURL: url + "/w", ConsumerKey: "ck", ConsumerSecret: "cs"})
	_, _, err := c.RequestToken(context.Background())
	if !errors.Is(err, mediawiki.ErrProviderUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestMissingConsumerConfiguration(t *testing.T) {
	c := mediawiki.New(mediawiki.Config{BaseURL: "https://wiki.example.org/w"})
	if _, _, err := c.RequestToken(context.Background()); !mediawiki.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := c.ExchangeAccessToken(context.Background(), &mediawiki.Credentials{Key: "k"}, "v"); !mediawiki.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestInitiateResponseMissingFields(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"key":"only-key"}`))
	})
	_, _, err := c.RequestToken(context.Background())
	if !errors.Is(err, mediawiki.ErrProviderProtocol) {
		t.Fatalf("expected protocol error for missing secret, got %v", err)
	}
}
