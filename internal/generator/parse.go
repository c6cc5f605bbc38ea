package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conorfennell/curio/internal/domain"
)

// ParseFacts decodes a model response into raw facts. The response may be
// wrapped in a markdown code fence and may be either a bare array or an
// object holding the array under "facts". Entries without a title are
// dropped, malformed quizzes are removed and a missing topic defaults to
// topic.
func ParseFacts(raw, topic string) ([]domain.RawFact, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	var facts []domain.RawFact
	if err := json.Unmarshal([]byte(cleaned), &facts); err != nil {
		var wrapped struct {
			Facts []domain.RawFact `json:"facts"`
		}
		if werr := json.Unmarshal([]byte(cleaned), &wrapped); werr != nil || wrapped.Facts == nil {
			return nil, fmt.Errorf("failed to parse facts: %w", err)
		}
		facts = wrapped.Facts
	}

	out := make([]domain.RawFact, 0, len(facts))
	for _, f := range facts {
		f.Title = strings.TrimSpace(f.Title)
		f.Blurb = strings.TrimSpace(f.Blurb)
		if f.Title == "" {
			continue
		}
		f.Topic = strings.ToLower(strings.TrimSpace(f.Topic))
		if f.Topic == "" {
			f.Topic = topic
		}
		if f.Quiz != nil && domain.Validate(*f.Quiz) != nil {
			f.Quiz = nil
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("response held no usable facts")
	}
	return out, nil
}

// stripCodeFence removes markdown code block wrappers (```json ... ```).
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
