package notes

import (
	"fmt"
	"math/rand"
	"strings"

	"memory-palace/internal/domain"
)

// maxDistractors is how many wrong options a local question gets at most.
const maxDistractors = 3

// BuildQuestions makes up to n multiple-choice questions from the concepts
// in content, using other concepts' definitions as distractors. Concepts
// whose definition has no distinct distractor are skipped. n <= 0 means all.
func BuildQuestions(content string, n int, rnd *rand.Rand) []domain.Question {
	concepts := Extract(content)
	rnd.Shuffle(len(concepts), func(i, j int) { concepts[i], concepts[j] = concepts[j], concepts[i] })

	var pool []string
	seen := make(map[string]struct{})
	for _, c := range concepts {
		key := strings.ToLower(c.Answer)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		pool = append(pool, c.Answer)
	}

	var out []domain.Question
	for _, c := range concepts {
		if n > 0 && len(out) == n {
			break
		}
		var distractors []string
		for _, d := range pool {
			if !strings.EqualFold(d, c.Answer) {
				distractors = append(distractors, d)
			}
		}
		if len(distractors) == 0 {
			continue
		}
		rnd.Shuffle(len(distractors), func(i, j int) { distractors[i], distractors[j] = distractors[j], distractors[i] })
		if len(distractors) > maxDistractors {
			distractors = distractors[:maxDistractors]
		}

		options := append([]string{c.Answer}, distractors...)
		rnd.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
		out = append(out, domain.Question{
			Prompt:      fmt.Sprintf("What best describes: %s?", c.Topic),
			Options:     options,
			AnswerIndex: domain.OptionIndex(options, c.Answer),
			Explanation: fmt.Sprintf("'%s' means: %s", c.Topic, c.Answer),
			Topic:       c.Topic,
		})
	}
	return out
}
