package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a gateway failure. Every error surfaced by a Gateway or by
// the chat service resolves to exactly one kind; the HTTP layer maps kinds to
// status codes.
type Kind string

const (
	// KindInvalidRequest marks caller errors: an empty message or a payload
	// the upstream API rejected as malformed.
	KindInvalidRequest Kind = "INVALID_REQUEST"
	// KindAuthentication marks a missing or rejected upstream credential.
	KindAuthentication Kind = "AUTHENTICATION_FAILURE"
	// KindRateLimited marks quota or throughput exhaustion upstream.
	KindRateLimited Kind = "RATE_LIMITED"
	// KindUpstreamUnavailable marks connectivity problems, timeouts,
	// cancellation while waiting, and 5xx-class upstream responses.
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	// KindUnknown covers everything that fits no other kind.
	KindUnknown Kind = "UNKNOWN_FAILURE"
)

// Error is a classified gateway failure: a kind, a human-readable detail, and
// the underlying cause when one exists.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// InvalidRequest builds a caller-error classification.
func InvalidRequest(msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg}
}

// AuthenticationFailure builds a credential-failure classification.
func AuthenticationFailure(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

// RateLimited builds a quota-exhaustion classification.
func RateLimited(msg string, cause error) *Error {
	return &Error{Kind: KindRateLimited, Message: msg, Cause: cause}
}

// UpstreamUnavailable builds a connectivity/5xx classification.
func UpstreamUnavailable(msg string, cause error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: msg, Cause: cause}
}

// UnknownFailure classifies everything else.
func UnknownFailure(msg string, cause error) *Error {
	return &Error{Kind: KindUnknown, Message: msg, Cause: cause}
}

// KindOf extracts the classification from err, descending through wrapped
// errors. Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	var gatewayErr *Error
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// classifyStatus maps an upstream HTTP status code to a classification.
// 403 counts as an authentication failure: chat APIs use it for revoked or
// under-scoped keys.
func classifyStatus(status int, msg string, cause error) *Error {
	switch {
	case status == 401 || status == 403:
		return &Error{Kind: KindAuthentication, Message: msg, Cause: cause}
	case status == 429:
		return &Error{Kind: KindRateLimited, Message: msg, Cause: cause}
	case status >= 500:
		return &Error{Kind: KindUpstreamUnavailable, Message: msg, Cause: cause}
	case status == 400 || status == 404 || status == 422:
		return &Error{Kind: KindInvalidRequest, Message: msg, Cause: cause}
	default:
		return &Error{Kind: KindUnknown, Message: msg, Cause: cause}
	}
}

// isNetworkError reports whether err looks like a transport-level failure.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"dial tcp",
		"i/o timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// isCancellation reports whether err stems from the caller's context being
// cancelled or timing out while the upstream call was in flight.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
