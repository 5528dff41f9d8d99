// Package recognizer adapts named-entity recognition models to the
// extraction pipeline.
//
// A Recognizer runs one parse per document and reports entity spans together
// with proper-noun token tags. Implementations are built once at startup and
// shared read-only; Recognize must not mutate the receiver.
package recognizer

import "context"

// Label classifies an entity span.
type Label string

const (
	Organization Label = "organization"
	Person       Label = "person"
	Other        Label = "other"
)

// Entity is a contiguous text region tagged with a label.
type Entity struct {
	Text  string `json:"text"`
	Label Label  `json:"label"`
}

// Token is one word of the parse. ProperNoun is set for tokens the model
// tags as proper nouns.
type Token struct {
	Text       string `json:"text"`
	Tag        string `json:"tag,omitempty"`
	ProperNoun bool   `json:"proper_noun"`
}

// Analysis is the single parse of a document.
type Analysis struct {
	Entities []Entity
	Tokens   []Token
}

// Recognizer is the pluggable NER capability.
type Recognizer interface {
	Recognize(ctx context.Context, text string) (Analysis, error)
	Name() string
}

// Organizations returns organization spans in document order.
func Organizations(a Analysis) []string {
	return spans(a, Organization)
}

// Persons returns person spans in document order.
func Persons(a Analysis) []string {
	return spans(a, Person)
}

func spans(a Analysis, l Label) []string {
	out := make([]string, 0, len(a.Entities))
	for _, e := range a.Entities {
		if e.Label == l {
			out = append(out, e.Text)
		}
	}
	return out
}
