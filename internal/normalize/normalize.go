// Package normalize holds the canonical forms used for storage and comparison.
package normalize

import (
	"fmt"
	"strings"
	"time"
)

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Message roles as stored and as sent to the completion gateway.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// legacyRoleBot is written by older clients for assistant replies.
	legacyRoleBot = "bot"
)

// Role maps a stored role tag onto one of the two canonical roles. The
// legacy "bot" tag becomes "assistant"; anything that is not an assistant
// tag is treated as the user.
func Role(r string) string {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case RoleAssistant, legacyRoleBot:
		return RoleAssistant
	default:
		return RoleUser
	}
}

// Currency upper-cases and trims an ISO 4217 code.
func Currency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

// Date parses a calendar date given as YYYY-MM-DD or RFC 3339 and returns
// it in UTC.
func Date(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}

// Day truncates t to midnight UTC of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
