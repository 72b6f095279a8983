package wikiauth

import "github.com/Tiisu/SourceWiki-sub001/internal/jwt"

// Outcome is the closed set of callback results. Modeling the decision as a
// tag rather than optional fields keeps every branch testable.
type Outcome string

const (
	OutcomeLoggedIn   Outcome = "logged_in"
	OutcomeRegistered Outcome = "registered"
	OutcomeLinked     Outcome = "linked"
	OutcomeError      Outcome = "error"
)

// ErrorCode is the machine-readable reason carried by an error disposition.
type ErrorCode string

const (
	CodeAccessDenied   ErrorCode = "access_denied"
	CodeProviderError  ErrorCode = "provider_error"
	CodeMissingParams  ErrorCode = "missing_parameters"
	CodeInvalidToken   ErrorCode = "invalid_or_expired_token"
	CodeStateMismatch  ErrorCode = "state_mismatch"
	CodeExchangeFailed ErrorCode = "exchange_failed"
	CodeAlreadyLinked  ErrorCode = "account_already_linked"
	CodeUserNotFound   ErrorCode = "user_not_found"
)

// Disposition is the terminal state of one callback.
type Disposition struct {
	Outcome Outcome

	// Error classification, set only when Outcome == OutcomeError.
	ErrorCode   ErrorCode
	ErrorDetail string

	// Populated on success outcomes.
	UserID         string
	RemoteUsername string
	Synthetic      bool

	// Session is set for LoggedIn and Registered; Linked keeps the
	// caller's existing session.
	Session *jwt.Session
}

func errorDisposition(code ErrorCode, detail string) *Disposition {
	return &Disposition{Outcome: OutcomeError, ErrorCode: code, ErrorDetail: detail}
}
