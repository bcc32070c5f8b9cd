// Package notes turns markdown study notes into flashcards without a model.
package notes

import (
	"fmt"
	"regexp"
	"strings"

	"memory-palace/internal/domain"
)

var patterns = []*regexp.Regexp{
	// **Term**: definition
	regexp.MustCompile(`\*\*([^*]+)\*\*:\s*([^.\n]+)`),
	// Term: definition
	regexp.MustCompile(`(?m)^\s*([A-Z][a-zA-Z ]+):\s*([^.\n]+)`),
	// ## Heading followed by a paragraph
	regexp.MustCompile(`##+[ \t]*([^#\n]+)\n((?:[^#\n][^\n]*\n?)+)`),
}

const (
	minTermLen       = 3
	minDefinitionLen = 11
)

// Extract finds term/definition pairs in content and returns one card per
// distinct term. Cards carry no id; the question is "What is <term>?" and
// the term doubles as the topic.
func Extract(content string) []domain.Flashcard {
	var cards []domain.Flashcard
	seen := make(map[string]struct{})

	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			term := strings.TrimSpace(m[1])
			definition := collapseSpace(m[2])
			if len(term) < minTermLen || len(definition) < minDefinitionLen {
				continue
			}
			question := fmt.Sprintf("What is %s?", term)
			key := strings.ToLower(question)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			cards = append(cards, domain.Flashcard{
				Question: question,
				Answer:   definition,
				Topic:    term,
			})
		}
	}
	return cards
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
