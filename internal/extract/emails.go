// Package extract mines scraped page text for emails, contacts, job postings
// and cross-domain links. Every function here is pure.
package extract

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// Substrings that mark boilerplate or placeholder addresses
var emailDenylist = []string{
	"example.com",
	"placeholder",
	"your-email",
	"test@",
	"noreply@",
	"no-reply@",
}

const minEmailLength = 6

// Emails returns the distinct email addresses in text in order of first
// appearance, dropping denylisted placeholders and very short matches.
func Emails(text string) []string {
	seen := make(map[string]bool)
	emails := []string{}

	for _, match := range emailPattern.FindAllString(text, -1) {
		if len(match) < minEmailLength || isPlaceholderEmail(match) {
			continue
		}
		if seen[match] {
			continue
		}
		seen[match] = true
		emails = append(emails, match)
	}

	return emails
}

func isPlaceholderEmail(email string) bool {
	for _, marker := range emailDenylist {
		if strings.Contains(email, marker) {
			return true
		}
	}
	return false
}

// containsAny reports whether s contains any of the given substrings
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
