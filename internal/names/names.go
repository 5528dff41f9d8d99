// Package names finds person names by combining three independent signals:
// recognizer person spans, capitalized word shapes and honorific titles.
// Names found by several signals, or repeatedly, rank first.
package names

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperifyio/contactx/internal/recognizer"
)

// Applied in order; each contributes all of its non-overlapping matches.
var shapePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`),        // Firstname Lastname
	regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z]\. [A-Z][a-z]+\b`), // Firstname M. Lastname
	regexp.MustCompile(`\b[A-Z][a-z]+ van [A-Z][a-z]+\b`),     // Firstname van Lastname
	regexp.MustCompile(`\b[A-Z][a-z]+ [a-z]+ [A-Z][a-z]+\b`),  // Firstname lowercase Lastname
}

var titles = map[string]struct{}{
	"Mr": {}, "Mrs": {}, "Ms": {}, "Miss": {}, "Dr": {}, "Prof": {}, "Sir": {}, "Lady": {}, "Lord": {},
}

var corporateSuffixes = map[string]struct{}{
	"inc": {}, "ltd": {}, "llc": {}, "corp": {}, "corporation": {},
}

// ShapeNames returns capitalized word sequences shaped like names.
func ShapeNames(text string) []string {
	out := []string{}
	for _, re := range shapePatterns {
		out = append(out, re.FindAllString(text, -1)...)
	}
	return out
}

// TitleNames returns, for each honorific token, the token after it joined
// with every directly following proper-noun token. A period token split off
// the title ("Dr" ".") is skipped.
func TitleNames(tokens []recognizer.Token) []string {
	out := []string{}
	for i, tok := range tokens {
		if !isTitle(tok.Text) {
			continue
		}
		start := i + 1
		if start < len(tokens) && tokens[start].Text == "." {
			start++
		}
		if start >= len(tokens) {
			continue
		}
		end := start + 1
		for end < len(tokens) && tokens[end].ProperNoun {
			end++
		}
		parts := make([]string, 0, end-start)
		for _, t := range tokens[start:end] {
			parts = append(parts, t.Text)
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

func isTitle(s string) bool {
	_, ok := titles[strings.TrimSuffix(s, ".")]
	return ok
}

// Candidate is a distinct name with the number of times it was produced
// across all sources.
type Candidate struct {
	Name  string
	Count int
}

// Rank concatenates the sources, counts each distinct string, drops names
// that fail Valid and sorts by descending count, then descending length.
// Remaining ties keep first-appearance order.
func Rank(sources ...[]string) []Candidate {
	counts := make(map[string]int)
	var order []string
	for _, src := range sources {
		for _, n := range src {
			if counts[n] == 0 {
				order = append(order, n)
			}
			counts[n]++
		}
	}
	out := make([]Candidate, 0, len(order))
	for _, n := range order {
		if Valid(n) {
			out = append(out, Candidate{Name: n, Count: counts[n]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return utf8.RuneCountInString(out[i].Name) > utf8.RuneCountInString(out[j].Name)
	})
	return out
}

// Merge is Rank without the counts: the ranked list of distinct names from
// recognizer spans, shape matches and title matches.
func Merge(recognized, shapes, titled []string) []string {
	ranked := Rank(recognized, shapes, titled)
	out := make([]string, len(ranked))
	for i, c := range ranked {
		out[i] = c.Name
	}
	return out
}

// Valid reports whether name has at least two whitespace-separated tokens,
// no digit and no corporate-suffix token.
func Valid(name string) bool {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return false
	}
	if strings.IndexFunc(name, isDigitLike) >= 0 {
		return false
	}
	for _, f := range fields {
		if _, ok := corporateSuffixes[strings.ToLower(f)]; ok {
			return false
		}
	}
	return true
}

// isDigitLike also rejects superscript and circled digits (category No),
// not only decimal digits.
func isDigitLike(r rune) bool {
	return unicode.IsDigit(r) || unicode.Is(unicode.No, r)
}
