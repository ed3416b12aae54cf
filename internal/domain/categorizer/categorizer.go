// Package categorizer suggests budget categories for merchants that the
// saved category mappings do not cover. Suggestions are advisory: callers
// decide whether to persist them, and ledger rows are never touched.
package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Model is the generative backend behind the suggester. It takes a prompt
// and returns the raw model text.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Cache interface for merchant to category lookups
type Cache interface {
	Get(merchant string) (string, bool)
	Set(merchant, category string)
}

// Suggester maps uncategorized merchants onto a fixed category list using
// a generative model.
type Suggester struct {
	model Model
	cache Cache
}

// NewSuggester creates a new suggester
func NewSuggester(model Model, cache Cache) *Suggester {
	return &Suggester{model: model, cache: cache}
}

// Suggest returns a category for each merchant it can confidently place.
// Merchants the model skips or answers with an unknown category are left
// out of the result rather than guessed.
func (s *Suggester) Suggest(ctx context.Context, merchants, categories []string) (map[string]string, error) {
	if len(merchants) == 0 || len(categories) == 0 {
		return map[string]string{}, nil
	}

	allowed := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		allowed[c] = struct{}{}
	}

	result := make(map[string]string)
	var missing []string
	for _, m := range merchants {
		if category, ok := s.cache.Get(m); ok {
			if _, valid := allowed[category]; valid {
				result[m] = category
				continue
			}
		}
		missing = append(missing, m)
	}
	if len(missing) == 0 {
		return result, nil
	}

	raw, err := s.model.Generate(ctx, buildPrompt(missing, categories))
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}

	var parsed map[string]string
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}

	asked := make(map[string]struct{}, len(missing))
	for _, m := range missing {
		asked[m] = struct{}{}
	}
	for merchant, category := range parsed {
		if _, ok := asked[merchant]; !ok {
			continue
		}
		if _, ok := allowed[category]; !ok {
			continue
		}
		result[merchant] = category
		s.cache.Set(merchant, category)
	}
	return result, nil
}

func buildPrompt(merchants, categories []string) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant. Assign each merchant below to exactly one of the given budget categories.\n\n")
	b.WriteString("Categories:\n")
	for _, c := range categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nMerchants:\n")
	for _, m := range merchants {
		b.WriteString("- " + m + "\n")
	}
	b.WriteString("\nOutput STRICT JSON only: a single object mapping each merchant name (exactly as given) to a category name from the list.\n")
	b.WriteString("Omit any merchant you cannot place confidently.\n")
	b.WriteString("Do NOT wrap the response in code fences. Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences if the model ignored the formatting
// instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
