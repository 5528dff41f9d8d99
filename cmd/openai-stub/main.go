// Command openai-stub serves a deterministic OpenAI-compatible API for
// exercising -recognizer llm without a real model.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

var (
	orgPattern    = regexp.MustCompile(`\b(?:[A-Z][A-Za-z&]+ )+(?:Inc|Ltd|LLC|Corp|Corporation|Company)\b\.?`)
	personPattern = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	if err := http.ListenAndServe(addr, newMux(model)); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}

func newMux(model string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if len(req.Messages) < 2 || !strings.Contains(req.Messages[0].Content, "named-entity recognizer") {
			http.Error(w, "unexpected system", http.StatusBadRequest)
			return
		}
		b, _ := json.Marshal(map[string]any{"entities": findEntities(req.Messages[len(req.Messages)-1].Content)})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": string(b)}},
			},
		})
	})
	return mux
}

// findEntities tags corporate-suffixed spans as ORG and the remaining
// two-word capitalized spans as PERSON, in document order.
func findEntities(text string) []entity {
	out := []entity{}
	orgs := orgPattern.FindAllStringIndex(text, -1)
	inOrg := func(start, end int) bool {
		for _, o := range orgs {
			if start < o[1] && end > o[0] {
				return true
			}
		}
		return false
	}
	persons := personPattern.FindAllStringIndex(text, -1)
	i, j := 0, 0
	for i < len(orgs) || j < len(persons) {
		if j >= len(persons) || (i < len(orgs) && orgs[i][0] <= persons[j][0]) {
			out = append(out, entity{Text: text[orgs[i][0]:orgs[i][1]], Label: "ORG"})
			i++
			continue
		}
		if p := persons[j]; !inOrg(p[0], p[1]) {
			out = append(out, entity{Text: text[p[0]:p[1]], Label: "PERSON"})
		}
		j++
	}
	return out
}
