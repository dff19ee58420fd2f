package phone

import (
	"errors"
	"strings"
)

// DefaultCountryCode is prepended to national numbers; all three dialer
// vendors expect E.164.
const DefaultCountryCode = "62"

var ErrInvalidNumber = errors.New("phone number has no usable digits")

// Format canonicalizes a raw phone number into international form
// ("+62812..."). Accepted inputs: local numbers starting with "0",
// numbers already carrying the country code with or without "+", and any of
// those with spaces, dashes or dots mixed in.
func Format(raw string) (string, error) {
	digits := strings.Builder{}
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	number := digits.String()
	if len(number) < 8 {
		return "", ErrInvalidNumber
	}

	switch {
	case strings.HasPrefix(number, "0"):
		number = DefaultCountryCode + number[1:]
	case strings.HasPrefix(number, DefaultCountryCode):
		// already international
	default:
		number = DefaultCountryCode + number
	}

	return "+" + number, nil
}
