// Package budget estimates token counts and splits long documents into
// chunks that fit a chat model's context window.
package budget

import (
	"math"
	"strings"
	"unicode/utf8"
)

// minChunkTokens keeps tiny or misconfigured windows usable.
const minChunkTokens = 256

// EstimateTokensFromChars converts a byte count into an estimated token
// count at ~4 bytes per token, rounded up.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of s.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// ModelContextTokens returns an estimated context window for modelName.
// Unknown models get 8192.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	switch {
	case strings.HasSuffix(name, "1m"):
		return 1_000_000
	case strings.HasSuffix(name, "200k"):
		return 200_000
	case strings.HasSuffix(name, "128k"):
		return 128_000
	case strings.HasSuffix(name, "32k"):
		return 32_768
	case strings.Contains(name, "-mini"):
		return 128_000
	}
	return 8192
}

// HeadroomTokens is the larger of 5% of the context or 512 tokens, reserved
// for tokenizer drift and message framing.
func HeadroomTokens(contextTokens int) int {
	dyn := int(math.Ceil(float64(contextTokens) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// ChunkTokens returns how many tokens of document text one request may carry
// after the system prompt and headroom. Half of what remains is left for the
// answer, which repeats every mention. contextTokens <= 0 means the window
// of modelName.
func ChunkTokens(modelName string, contextTokens int, systemPrompt string) int {
	if contextTokens <= 0 {
		contextTokens = ModelContextTokens(modelName)
	}
	avail := contextTokens - HeadroomTokens(contextTokens) - EstimateTokens(systemPrompt)
	avail /= 2
	if avail < minChunkTokens {
		return minChunkTokens
	}
	return avail
}

// Split cuts text into chunks of at most maxTokens estimated tokens. Cuts
// prefer blank lines, then line breaks, then spaces; a run with none of
// them is cut at a rune boundary. Joining the chunks yields text.
func Split(text string, maxTokens int) []string {
	if text == "" {
		return nil
	}
	limit := maxTokens * 4
	if maxTokens <= 0 || len(text) <= limit {
		return []string{text}
	}
	var out []string
	for len(text) > limit {
		cut := cutPoint(text, limit)
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// cutPoint returns an index in (0, limit] to end the next chunk at.
func cutPoint(text string, limit int) int {
	window := text[:limit]
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i > 0 {
			return i + len(sep)
		}
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return cut
}

// knownModelMax holds rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4o":             128_000,
	"gpt-4o-mini":        128_000,
	"gpt-4-turbo":        128_000,
	"gpt-4.1":            1_000_000,
	"gpt-3.5-turbo":      16_384,
	"llama-3":            8_192,
	"llama-3.1":          128_000,
	"llama3.2":           128_000,
	"mistral":            32_768,
	"qwen2.5":            32_768,
	"openai/gpt-oss-20b": 4_096,
	"gpt-oss-20b":        4_096,
}
