// Package choice judges multiple-choice answers by option index.
package choice

import (
	"context"
	"errors"
	"fmt"

	"memory-palace/internal/domain"
)

var errNoOptions = errors.New("question has no options")

type Evaluator struct{}

func New() *Evaluator { return &Evaluator{} }

// Evaluate resolves the answer to an option and compares it with the
// expected one. An answer naming no option is an ErrInvalidChoice and is
// not judged.
func (e *Evaluator) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.Verdict{}, err
	}
	if len(req.Options) == 0 {
		return domain.Verdict{}, errNoOptions
	}
	want := domain.OptionIndex(req.Options, req.ExpectedAnswer)
	if want < 0 {
		return domain.Verdict{}, fmt.Errorf("%w: expected answer %q", domain.ErrInvalidChoice, req.ExpectedAnswer)
	}
	got, err := domain.ParseChoice(req.Options, req.UserAnswer)
	if err != nil {
		return domain.Verdict{}, err
	}
	if got == want {
		return domain.Verdict{Correct: true, Feedback: "Correct!", Score: 100}, nil
	}
	return domain.Verdict{
		Feedback: fmt.Sprintf("Wrong. Correct answer: %s) %s", domain.ChoiceLabel(want), req.Options[want]),
	}, nil
}
