package provider

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrNotConfigured means credentials for the transport are missing.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrValidation means the request was rejected locally before any network call.
	ErrValidation = errors.New("provider request invalid")
	// ErrTransport means the request did not complete (network, timeout, open breaker).
	ErrTransport = errors.New("provider transport failure")
	// ErrRejected means the provider answered with an error or an unreadable response.
	ErrRejected = errors.New("provider rejected request")
)

// Error is the failure value returned by every Sender method.
type Error struct {
	Kind       error
	StatusCode int
	Message    string
	// Hint is an advisory suffix derived from keywords in Message.
	Hint string
	// Raw holds up to 500 characters of the provider response.
	Raw string
}

func (e *Error) Error() string {
	if e.Hint == "" {
		return e.Message
	}
	return e.Message + " - " + e.Hint
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Temporary reports whether the failure was caused by the provider being
// unreachable or unhealthy rather than by the request itself.
func (e *Error) Temporary() bool {
	return errors.Is(e.Kind, ErrTransport) || e.StatusCode >= http.StatusInternalServerError
}

// IsTemporary reports whether err is a temporary provider failure.
func IsTemporary(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Temporary()
	}
	return false
}

func configurationError(msg string) *Error {
	return &Error{Kind: ErrNotConfigured, Message: msg}
}

func validationError(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func transportError(msg string) *Error {
	return &Error{Kind: ErrTransport, Message: msg}
}

type hintRule struct {
	keywords []string
	hint     string
}

var badRequestHints = []hintRule{
	{keywords: []string{"balance"}, hint: "Check your account balance in the dashboard"},
	{keywords: []string{"phone", "recipient"}, hint: "Phone number must be in Ghana format (233XXXXXXXXX, 12 digits)"},
	{keywords: []string{"sender"}, hint: "Check if sender_id is approved in your dashboard"},
	{keywords: []string{"key", "auth"}, hint: "Verify your API keys are correct"},
}

const genericBadRequestHint = "Check phone number format (must be Ghana: 233XXXXXXXXX), sender_id approval, account balance, or API keys"

// badRequestHint picks the first rule whose keyword occurs in msg.
func badRequestHint(msg string) string {
	lower := strings.ToLower(msg)
	for _, rule := range badRequestHints {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.hint
			}
		}
	}
	return genericBadRequestHint
}
