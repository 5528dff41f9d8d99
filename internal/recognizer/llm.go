package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/contactx/internal/budget"
	"github.com/hyperifyio/contactx/internal/cache"
	"github.com/hyperifyio/contactx/internal/llm"
)

// LLM asks an OpenAI-compatible chat model for organization and person
// spans. Token tags always come from Base, which also supplies the entities
// when any model call or its JSON fails. Text longer than the model window
// is sent in chunks and the answers are concatenated in order.
type LLM struct {
	Client llm.Client
	Model  string
	Base   Recognizer
	Cache  *cache.LLMCache
	// SystemPrompt, when non-empty, overrides the default system message.
	SystemPrompt string
	// ContextTokens overrides the context window guessed from Model.
	ContextTokens int
}

func (l *LLM) Name() string { return "llm" }

type llmResponse struct {
	Entities []struct {
		Text  string `json:"text"`
		Label string `json:"label"`
	} `json:"entities"`
}

// Recognize runs the base parse first, then replaces its entities with the
// model's answer when one is available.
func (l *LLM) Recognize(ctx context.Context, text string) (Analysis, error) {
	if l.Base == nil {
		return Analysis{}, errors.New("llm recognizer: base recognizer not configured")
	}
	base, err := l.Base.Recognize(ctx, text)
	if err != nil {
		return Analysis{}, err
	}
	if strings.TrimSpace(text) == "" || l.Client == nil || strings.TrimSpace(l.Model) == "" {
		return base, nil
	}

	sys := buildSystemMessage()
	if strings.TrimSpace(l.SystemPrompt) != "" {
		sys = l.SystemPrompt
	}
	chunks := budget.Split(text, budget.ChunkTokens(l.Model, l.ContextTokens, sys))
	var ents []Entity
	for i, chunk := range chunks {
		got, err := l.recognizeChunk(ctx, sys, chunk)
		if err != nil {
			log.Warn().Err(err).Str("model", l.Model).Int("chunk", i).Int("chunks", len(chunks)).Msg("llm recognizer failed; using base entities")
			return base, nil
		}
		ents = append(ents, got...)
	}
	base.Entities = ents
	return base, nil
}

func (l *LLM) recognizeChunk(ctx context.Context, sys, chunk string) ([]Entity, error) {
	key := cache.KeyFrom(l.Model, sys+"\n\n"+chunk)
	if l.Cache != nil {
		if raw, ok, _ := l.Cache.Get(ctx, key); ok {
			if ents, err := parseEntities(string(raw)); err == nil {
				log.Debug().Str("key", key[:12]).Msg("llm entity cache hit")
				return ents, nil
			}
		}
	}
	ents, raw, err := l.complete(ctx, sys, chunk)
	if err != nil {
		return nil, err
	}
	if l.Cache != nil {
		_ = l.Cache.Save(ctx, key, []byte(raw))
	}
	return ents, nil
}

func (l *LLM) complete(ctx context.Context, sys, text string) ([]Entity, string, error) {
	req := openai.ChatCompletionRequest{
		Model: l.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sys},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.0,
		N:           1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	resp, err := l.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, "", errors.New("chat completion: no choices")
	}
	raw := cleanJSON(resp.Choices[0].Message.Content)
	ents, err := parseEntities(raw)
	if err != nil {
		return nil, "", err
	}
	return ents, raw, nil
}

func buildSystemMessage() string {
	return "You are a named-entity recognizer. Respond with strict JSON only: " +
		"{\"entities\":[{\"text\":string,\"label\":\"ORG|PERSON\"}]}. " +
		"List every organization and person mention in document order, copying the text exactly as written. " +
		"Repeat a mention each time it occurs. Do not add explanations."
}

func parseEntities(raw string) ([]Entity, error) {
	var parsed llmResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse llm json: %w", err)
	}
	out := make([]Entity, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		t := strings.TrimSpace(e.Text)
		if t == "" {
			continue
		}
		out = append(out, Entity{Text: t, Label: proseLabel(e.Label)})
	}
	return out, nil
}

// cleanJSON strips markdown fences some models add despite JSON mode.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
