// internal/app/system/normalize/normalize.go

// Package normalize canonicalizes small string inputs before they reach
// validation or queries.
package normalize

import "strings"

// Role lowercases and trims a role string.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status lowercases and trims a status string.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims surrounding whitespace from a query parameter.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// Phone canonicalizes a phone number to digits with an optional leading
// plus: spaces, dashes and parentheses are dropped.
func Phone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
