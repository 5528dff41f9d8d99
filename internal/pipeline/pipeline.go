// Package pipeline runs the extractors over one document and collects the
// four candidate lists.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contactx/internal/names"
	"github.com/hyperifyio/contactx/internal/patterns"
	"github.com/hyperifyio/contactx/internal/recognizer"
)

// Result holds the candidate lists for one document. Lists are never nil.
type Result struct {
	Emails       []string `json:"emails"`
	PhoneNumbers []string `json:"phone_numbers"`
	Companies    []string `json:"companies"`
	Persons      []string `json:"persons"`
}

// Pipeline is safe for concurrent use when its recognizer is.
type Pipeline struct {
	rec recognizer.Recognizer
}

// New returns a pipeline over the given recognizer.
func New(rec recognizer.Recognizer) *Pipeline {
	return &Pipeline{rec: rec}
}

// Extract parses text once with the recognizer and runs every extractor.
// Empty text yields four empty lists without calling the recognizer.
func (p *Pipeline) Extract(ctx context.Context, text string) (Result, error) {
	res := Result{
		Emails:       patterns.Emails(text),
		PhoneNumbers: patterns.PhoneNumbers(text),
		Companies:    []string{},
		Persons:      []string{},
	}
	if text == "" {
		return res, nil
	}

	start := time.Now()
	a, err := p.rec.Recognize(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("recognize: %w", err)
	}
	res.Companies = recognizer.Organizations(a)
	res.Persons = names.Merge(recognizer.Persons(a), names.ShapeNames(text), names.TitleNames(a.Tokens))

	log.Debug().
		Str("recognizer", p.rec.Name()).
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Int("emails", len(res.Emails)).
		Int("phones", len(res.PhoneNumbers)).
		Int("companies", len(res.Companies)).
		Int("persons", len(res.Persons)).
		Msg("extracted")
	return res, nil
}
