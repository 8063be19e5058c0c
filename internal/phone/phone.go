// Package phone converts phone numbers between the canonical storage format
// (E.164) and the local format the SMS provider accepts.
package phone

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ghanaCode = "233"
	togoCode  = "228"

	ghanaSubscriberDigits = 9
	togoSubscriberDigits  = 8

	providerNumberLength = 12
)

var ErrInvalidProviderNumber = errors.New("invalid provider phone number")

// NormalizeForStorage turns raw digits and a free-text country hint into an
// E.164 number. Unknown countries fall back to the Ghana rule so that the
// same input always yields the same stored number.
func NormalizeForStorage(raw, countryHint string) string {
	digits := onlyDigits(raw)
	country := strings.ToLower(strings.TrimSpace(countryHint))

	switch {
	case strings.Contains(country, "ghana"):
		return "+" + ghanaCode + lastN(digits, ghanaSubscriberDigits)
	case strings.Contains(country, "togo"):
		return "+" + togoCode + lastN(digits, togoSubscriberDigits)
	case strings.HasPrefix(digits, ghanaCode), strings.HasPrefix(digits, togoCode):
		return "+" + digits
	default:
		return "+" + ghanaCode + lastN(digits, ghanaSubscriberDigits)
	}
}

// NormalizeForProvider converts a stored or local number to the provider
// format (233XXXXXXXXX). ok is false when the number could not be mapped and
// was returned as-is; the provider is left to reject it.
func NormalizeForProvider(number string) (formatted string, ok bool) {
	n := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(number)
	n = strings.TrimPrefix(n, "+")

	switch {
	case strings.HasPrefix(n, ghanaCode):
		return n, true
	case strings.HasPrefix(n, "0"):
		return ghanaCode + n[1:], true
	case len(n) == ghanaSubscriberDigits && isDigits(n):
		return ghanaCode + n, true
	default:
		return n, false
	}
}

// ValidateForProvider checks that number is exactly 12 digits starting with 233.
func ValidateForProvider(number string) error {
	if len(number) != providerNumberLength || !isDigits(number) || !strings.HasPrefix(number, ghanaCode) {
		return fmt.Errorf("%w: provider requires Ghana format (233XXXXXXXXX, 12 digits), got %q", ErrInvalidProviderNumber, number)
	}
	return nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
