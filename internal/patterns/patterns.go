// Package patterns holds the regex extractors for emails and phone numbers.
//
// Both extractors are total: they never fail, return matches in order of
// appearance and keep duplicates. They are safe for concurrent use.
package patterns

import (
	"regexp"
	"strings"
)

var (
	reEmail = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// Groups: country code, area code (parentheses kept), exchange, subscriber.
	rePhone = regexp.MustCompile(`\+?(\d{1,3})?[-.\s]?(\(?\d{3}\)?)[-.\s]?(\d{3})[-.\s]?(\d{4})`)
)

// Emails returns every substring of text shaped like local-part@domain.tld.
func Emails(text string) []string {
	out := reEmail.FindAllString(text, -1)
	if out == nil {
		return []string{}
	}
	return out
}

// PhoneNumbers returns one entry per phone-shaped find, built by joining the
// four captured groups. Separators between groups are dropped; a missing
// country code contributes nothing.
func PhoneNumbers(text string) []string {
	matches := rePhone.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.Join(m[1:], ""))
	}
	return out
}
