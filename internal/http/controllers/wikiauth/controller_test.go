package wikiauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ctrl "github.com/Tiisu/SourceWiki-sub001/internal/http/controllers/wikiauth"
	dto "github.com/Tiisu/SourceWiki-sub001/internal/http/dto/wikiauth"
	svc "github.com/Tiisu/SourceWiki-sub001/internal/http/services/wikiauth"
	"github.com/Tiisu/SourceWiki-sub001/internal/jwt"
)

type fakeInitiate struct {
	result      *svc.InitiateResult
	err         error
	gotLinkID   string
	invocations int
}

func (f *fakeInitiate) Initiate(_ context.Context, req svc.InitiateRequest) (*svc.InitiateResult, error) {
	f.invocations++
	f.gotLinkID = req.LinkAccountID
	return f.result, f.err
}

type fakeCallback struct {
	disposition *svc.Disposition
	err         error
	gotReq      svc.CallbackRequest
}

func (f *fakeCallback) Callback(_ context.Context, req svc.CallbackRequest) (*svc.Disposition, error) {
	f.gotReq = req
	return f.disposition, f.err
}

func newController(t *testing.T, in *fakeInitiate, cb *fakeCallback, successRedirect, errorRedirect string) (*ctrl.Controller, *jwt.Issuer) {
	t.Helper()
	issuer, err := jwt.NewIssuer("test", "", time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	services := svc.Services{Initiate: in, Callback: cb}
	return ctrl.NewController(services, issuer, successRedirect, errorRedirect), issuer
}

func TestLoginReturnsAuthorizationURL(t *testing.T) {
	in := &fakeInitiate{result: &svc.InitiateResult{AuthorizationURL: "https://wiki/authorize?oauth_token=t", State: "st"}}
	c, _ := newController(t, in, &fakeCallback{}, "", "")

	rec := httptest.NewRecorder()
	c.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/wiki/login", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp dto.InitiateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AuthorizationURL != in.result.AuthorizationURL || resp.State != "st" {
		t.Fatalf("resp = %+v", resp)
	}
	if in.gotLinkID != "" {
		t.Fatalf("login must not carry a link account, got %q", in.gotLinkID)
	}
}

func TestLoginRedirectMode(t *testing.T) {
	in := &fakeInitiate{result: &svc.InitiateResult{AuthorizationURL: "https://wiki/authorize?oauth_token=t", State: "st"}}
	c, _ := newController(t, in, &fakeCallback{}, "", "")

	rec := httptest.NewRecorder()
	c.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/wiki/login?redirect=true", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != in.result.AuthorizationURL {
		t.Fatalf("location = %q", loc)
	}
}

func TestLinkRequiresBearer(t *testing.T) {
	in := &fakeInitiate{result: &svc.InitiateResult{AuthorizationURL: "u", State: "s"}}
	c, issuer := newController(t, in, &fakeCallback{}, "", "")

	rec := httptest.NewRecorder()
	c.Link(rec, httptest.NewRequest(http.MethodGet, "/auth/wiki/link", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/auth/wiki/link", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	c.Link(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", rec.Code)
	}

	token, _, err := issuer.IssueAccess("user-1", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/auth/wiki/link", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	c.Link(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d body=%s", rec.Code, rec.Body.String())
	}
	if in.gotLinkID != "user-1" {
		t.Fatalf("link account = %q", in.gotLinkID)
	}
}

func TestCallbackParsesQuery(t *testing.T) {
	cb := &fakeCallback{disposition: &svc.Disposition{
		Outcome:        svc.OutcomeLoggedIn,
		UserID:         "user-1",
		RemoteUsername: "Alice",
		Session:        &jwt.Session{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	c, _ := newController(t, &fakeInitiate{}, cb, "", "")

	rec := httptest.NewRecorder()
	c.Callback(rec, httptest.NewRequest(http.MethodGet,
		"/auth/wiki/callback?oauth_token=tok&oauth_verifier=ver&state=st", nil))

	if cb.gotReq.Token != "tok" || cb.gotReq.Verifier != "ver" || cb.gotReq.State != "st" || cb.gotReq.Denied {
		t.Fatalf("request = %+v", cb.gotReq)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp dto.CallbackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Outcome != "logged_in" || resp.Session == nil || resp.Session.AccessToken != "at" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestCallbackDeniedQuery(t *testing.T) {
	cb := &fakeCallback{disposition: &svc.Disposition{Outcome: svc.OutcomeError, ErrorCode: svc.CodeAccessDenied}}
	c, _ := newController(t, &fakeInitiate{}, cb, "", "")

	rec := httptest.NewRecorder()
	c.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/wiki/callback?error=access_denied", nil))

	if !cb.gotReq.Denied {
		t.Fatal("error=access_denied must map to Denied")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCallbackErrorStatusMapping(t *testing.T) {
	cases := []struct {
		code svc.ErrorCode
		want int
	}{
		{svc.CodeMissingParams, http.StatusBadRequest},
		{svc.CodeInvalidToken, http.StatusBadRequest},
		{svc.CodeStateMismatch, http.StatusBadRequest},
		{svc.CodeExchangeFailed, http.StatusBadGateway},
		{svc.CodeProviderError, http.StatusBadGateway},
		{svc.CodeAlreadyLinked, http.StatusConflict},
		{svc.CodeUserNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		cb := &fakeCallback{disposition: &svc.Disposition{Outcome: svc.OutcomeError, ErrorCode: tc.code}}
		c, _ := newController(t, &fakeInitiate{}, cb, "", "")

		rec := httptest.NewRecorder()
		c.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/wiki/callback?oauth_token=t&oauth_verifier=v", nil))
		if rec.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.code, rec.Code, tc.want)
		}

		var resp dto.CallbackResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode: %v", tc.code, err)
		}
		if resp.ErrorCode != string(tc.code) {
			t.Fatalf("%s: error code in body = %q", tc.code, resp.ErrorCode)
		}
	}
}

func TestCallbackErrorRedirect(t *testing.T) {
	cb := &fakeCallback{disposition: &svc.Disposition{Outcome: svc.OutcomeError, ErrorCode: svc.CodeStateMismatch}}
	c, _ := newController(t, &fakeInitiate{}, cb, "", "https://app.example.org/login")

	rec := httptest.NewRecorder()
	c.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/wiki/callback?oauth_token=t&oauth_verifier=v", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://app.example.org/login?error=state_mismatch" {
		t.Fatalf("location = %q", loc)
	}
}

func TestCallbackSuccessRedirectSetsCookies(t *testing.T) {
	cb := &fakeCallback{disposition: &svc.Disposition{
		Outcome: svc.OutcomeRegistered,
		UserID:  "user-1",
		Session: &jwt.Session{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	c, _ := newController(t, &fakeInitiate{}, cb, "https://app.example.org/welcome", "")

	rec := httptest.NewRecorder()
	c.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/wiki/callback?oauth_token=t&oauth_verifier=v", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://app.example.org/welcome?outcome=registered" {
		t.Fatalf("location = %q", loc)
	}

	names := map[string]bool{}
	for _, ck := range rec.Result().Cookies() {
		names[ck.Name] = true
		if !ck.HttpOnly {
			t.Fatalf("cookie %s must be HttpOnly", ck.Name)
		}
	}
	if !names["sw_access"] || !names["sw_refresh"] {
		t.Fatalf("session cookies missing: %v", names)
	}
}

func TestLoginMethodNotAllowed(t *testing.T) {
	c, _ := newController(t, &fakeInitiate{}, &fakeCallback{}, "", "")

	rec := httptest.NewRecorder()
	c.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/wiki/login", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}
