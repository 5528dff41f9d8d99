package recognizer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/rs/zerolog/log"
)

// embeddedModel names the English model compiled into prose.
const embeddedModel = "en-v2.0.0"

// Prose wraps the pretrained averaged-perceptron tagger and entity model of
// prose. The model is loaded once by NewProse and only read afterwards.
type Prose struct {
	model *prose.Model
}

// NewProse builds the recognizer. When modelDir is non-empty the model is
// loaded from disk, otherwise the embedded English model is used; a missing
// directory is a startup error.
func NewProse(modelDir string) (*Prose, error) {
	dir := strings.TrimSpace(modelDir)
	if dir == "" {
		return &Prose{model: prose.ModelFromData(embeddedModel)}, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("prose model: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prose model: %s is not a directory", dir)
	}
	log.Info().Str("dir", dir).Msg("loaded prose model")
	return &Prose{model: prose.ModelFromDisk(dir)}, nil
}

func (p *Prose) Name() string { return "prose" }

// Recognize tokenizes, tags and extracts entities in one pass.
func (p *Prose) Recognize(_ context.Context, text string) (Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return Analysis{}, nil
	}
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false), prose.UsingModel(p.model))
	if err != nil {
		return Analysis{}, fmt.Errorf("prose parse: %w", err)
	}

	var a Analysis
	for _, ent := range doc.Entities() {
		a.Entities = append(a.Entities, Entity{Text: ent.Text, Label: proseLabel(ent.Label)})
	}
	for _, tok := range doc.Tokens() {
		a.Tokens = append(a.Tokens, Token{Text: tok.Text, Tag: tok.Tag, ProperNoun: isProperNounTag(tok.Tag)})
	}
	return a, nil
}

// proseLabel maps model labels. The embedded model tags companies as
// ORGANIZATION, or FACILITY when they carry a suffix like "Corp"; ORG is
// the short form LLM answers use. Places (GPE) are not organizations.
func proseLabel(l string) Label {
	switch strings.ToUpper(l) {
	case "ORGANIZATION", "ORG", "FACILITY":
		return Organization
	case "PERSON":
		return Person
	default:
		return Other
	}
}

// isProperNounTag reports Penn Treebank proper-noun tags.
func isProperNounTag(tag string) bool {
	return tag == "NNP" || tag == "NNPS"
}
