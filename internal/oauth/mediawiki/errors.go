package mediawiki

import (
	"errors"
	"fmt"
)

// Error taxonomy for provider interactions. Callers branch with errors.Is;
// the concrete types carry provider detail for logs and user messages.
var (
	// ErrConfiguration means the consumer key/secret are absent. Fatal at
	// startup, never retryable.
	ErrConfiguration = errors.New("mediawiki: consumer credentials not configured")

	// ErrProviderRejected means the provider returned a structured
	// {error, message} payload.
	ErrProviderRejected = errors.New("mediawiki: provider rejected request")

	// ErrProviderProtocol means the provider answered with markup or an
	// otherwise unparseable body instead of JSON.
	ErrProviderProtocol = errors.New("mediawiki: provider returned malformed response")

	// ErrProviderUnavailable means the outbound call itself failed
	// (transport error or timeout).
	ErrProviderUnavailable = errors.New("mediawiki: provider unavailable")
)

// RejectedError is a structured error payload from the provider.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mediawiki: provider rejected request: %s (%s)", e.Code, e.Message)
	}
	return fmt.Sprintf("mediawiki: provider rejected request: %s", e.Code)
}

func (e *RejectedError) Unwrap() error { return ErrProviderRejected }

// ProtocolError wraps an unparseable provider response. Hint is the most
// informative token extracted from the body, best effort.
type ProtocolError struct {
	Hint       string
	StatusCode int
}

func (e *ProtocolError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("mediawiki: provider returned malformed response (status %d): %s", e.StatusCode, e.Hint)
	}
	return fmt.Sprintf("mediawiki: provider returned malformed response (status %d)", e.StatusCode)
}

func (e *ProtocolError) Unwrap() error { return ErrProviderProtocol }

// permission-denied-class codes from the action API. The identity resolver
// downgrades to a name-only query when it sees one of these.
func isPermissionDenied(err error) bool {
	var rej *RejectedError
	if !errors.As(err, &rej) {
		return false
	}
	switch rej.Code {
	case "permissiondenied", "readapidenied", "mwoauth-invalid-authorization-permissions":
		return true
	}
	return false
}
