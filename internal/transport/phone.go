package transport

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPhone marks a number that cannot be normalized to E.164. It is a
// client-correctable failure, not an infrastructure one.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts a US phone number to E.164. Ten digits get a +1
// prefix, eleven digits starting with 1 get a +, and an already-prefixed
// number passes through after a digit check. Anything else is rejected —
// the SMS provider hard-fails on malformed destinations and that failure
// would be terminal for the record.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidPhone)
	}

	if strings.HasPrefix(cleaned, "+") {
		digits := cleaned[1:]
		if !allDigits(digits) || len(digits) < 11 {
			return "", fmt.Errorf("%w: %q is not E.164", ErrInvalidPhone, raw)
		}
		return cleaned, nil
	}

	if !allDigits(cleaned) {
		return "", fmt.Errorf("%w: %q contains non-digits", ErrInvalidPhone, raw)
	}

	switch {
	case len(cleaned) == 10:
		return "+1" + cleaned, nil
	case len(cleaned) == 11 && cleaned[0] == '1':
		return "+" + cleaned, nil
	default:
		return "", fmt.Errorf("%w: cannot normalize %q", ErrInvalidPhone, raw)
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
