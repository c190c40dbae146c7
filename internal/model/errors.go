package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure classes a request can end in.
type ErrorKind string

const (
	KindNone ErrorKind = ""

	// Parse.
	KindParse ErrorKind = "parse_error"

	// Safety.
	KindBreakerOpen   ErrorKind = "breaker_open"
	KindQuotaExceeded ErrorKind = "quota_exceeded"

	// Upstream.
	KindNotFound          ErrorKind = "not_found"
	KindRateLimited       ErrorKind = "rate_limited"
	KindAccessDenied      ErrorKind = "access_denied"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindNetwork           ErrorKind = "network_error"

	// Payment.
	KindMissingCredential   ErrorKind = "missing_credential"
	KindInvalidCredential   ErrorKind = "invalid_credential"
	KindVerifierUnreachable ErrorKind = "verifier_unreachable"

	// Settlement.
	KindSettlementFailed ErrorKind = "settlement_failed"

	KindUnknownDomain ErrorKind = "unknown_domain"
	KindInternal      ErrorKind = "internal"
)

// IsUpstream reports whether the kind was produced by a source adapter.
func (k ErrorKind) IsUpstream() bool {
	switch k {
	case KindNotFound, KindRateLimited, KindAccessDenied, KindMalformedResponse, KindNetwork:
		return true
	}
	return false
}

// IsSafety reports whether the kind is a safety governor rejection.
func (k ErrorKind) IsSafety() bool {
	return k == KindBreakerOpen || k == KindQuotaExceeded
}

// IsPayment reports whether the kind is a payment verification rejection.
func (k ErrorKind) IsPayment() bool {
	switch k {
	case KindMissingCredential, KindInvalidCredential, KindVerifierUnreachable:
		return true
	}
	return false
}

// Error is a failure tagged with its ErrorKind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf creates an Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError tags err with kind.
func WrapError(kind ErrorKind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the ErrorKind of the first *Error in err's chain,
// KindInternal for any other non-nil error and KindNone for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable message of the first *Error in err's chain.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
