// Package keyword judges answers offline by lexical overlap with the
// expected answer. It is used when no model is configured.
package keyword

import (
	"context"
	"fmt"
	"strings"

	"memory-palace/internal/domain"
)

// minWordLen is the length a word must exceed to count as significant.
const minWordLen = 3

type Evaluator struct{}

func New() *Evaluator { return &Evaluator{} }

// Evaluate marks the answer correct when at least half of the significant
// words of the expected answer occur in it. Answers without significant
// words fall back to containment in either direction.
func (e *Evaluator) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.Verdict{}, err
	}
	correct := Match(req.UserAnswer, req.ExpectedAnswer)
	v := domain.Verdict{Correct: correct, Feedback: "Great job!", Score: 100}
	if !correct {
		v.Score = 0
		v.Feedback = fmt.Sprintf("Not quite. The answer is: %s.", req.ExpectedAnswer)
		if req.Mnemonic != "" {
			v.Feedback += " Remember: " + req.Mnemonic
		}
	}
	return v, nil
}

// Match reports whether answer lexically covers expected.
func Match(answer, expected string) bool {
	user := strings.ToLower(strings.TrimSpace(answer))
	want := strings.ToLower(strings.TrimSpace(expected))
	if user == "" {
		return false
	}

	seen := make(map[string]struct{})
	var significant, matched int
	for _, w := range strings.Fields(want) {
		if len(w) <= minWordLen {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		significant++
		if strings.Contains(user, w) {
			matched++
		}
	}
	if significant > 0 {
		return matched*2 >= significant
	}
	return strings.Contains(want, user) || strings.Contains(user, want)
}
