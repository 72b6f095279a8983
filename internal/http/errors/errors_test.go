package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteErrorAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrNotFound.WithDetail("no such user"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "NOT_FOUND" || body["detail"] != "no such user" {
		t.Fatalf("body = %v", body)
	}
}

func TestWriteErrorGenericBecomesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("database exploded"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	// The cause must never leak to the client.
	if got := rec.Body.String(); len(got) > 0 && (json.Valid([]byte(got)) == false) {
		t.Fatalf("body not json: %q", got)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["code"] != "INTERNAL_SERVER_ERROR" {
		t.Fatalf("body = %v", body)
	}
	if body["detail"] != "" {
		t.Fatalf("cause leaked: %v", body)
	}
}

func TestWithDetailCopies(t *testing.T) {
	e := ErrBadRequest.WithDetail("x")
	if ErrBadRequest.Detail != "" {
		t.Fatal("base error mutated")
	}
	if e.Detail != "x" || e.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("copy = %+v", e)
	}
}

func TestFromErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := FromError(cause)
	if !errors.Is(e, cause) {
		t.Fatal("wrapped cause must unwrap")
	}
}
