package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a backend failure.
type Kind string

const (
	KindNetwork            Kind = "network_failure"
	KindUnauthorized       Kind = "unauthorized"
	KindValidationConflict Kind = "validation_conflict"
	KindPaymentRequired    Kind = "payment_required"
	KindNotFound           Kind = "not_found"
	KindUnknown            Kind = "unknown"
)

var (
	ErrNetwork            = errors.New("api: network failure")
	ErrUnauthorized       = errors.New("api: unauthorized")
	ErrValidationConflict = errors.New("api: validation conflict")
	ErrPaymentRequired    = errors.New("api: payment required")
	ErrNotFound           = errors.New("api: not found")
)

var kindSentinels = map[Kind]error{
	KindNetwork:            ErrNetwork,
	KindUnauthorized:       ErrUnauthorized,
	KindValidationConflict: ErrValidationConflict,
	KindPaymentRequired:    ErrPaymentRequired,
	KindNotFound:           ErrNotFound,
}

// Error is a failed backend call. Message carries the backend's error or
// msg string verbatim.
type Error struct {
	StatusCode int
	Kind       Kind
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("api: %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: %s: %s", e.Kind, e.Message)
}

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf reports the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// MessageOf returns the backend message carried by err, or err's text.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// classify maps an HTTP status and backend message onto a Kind.
func classify(code int, message string) Kind {
	if isPaymentMessage(message) {
		return KindPaymentRequired
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusNotFound, http.StatusGone:
		return KindNotFound
	case http.StatusPaymentRequired:
		return KindPaymentRequired
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return KindValidationConflict
	default:
		return KindUnknown
	}
}

// IsStripeConnectMessage reports whether message is the backend's
// "connect Stripe first" family of errors.
func IsStripeConnectMessage(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "stripe") &&
		(strings.Contains(m, "connect") || strings.Contains(m, "onboard"))
}

func isPaymentMessage(message string) bool {
	m := strings.ToLower(message)
	return IsStripeConnectMessage(message) || strings.Contains(m, "payment method")
}
