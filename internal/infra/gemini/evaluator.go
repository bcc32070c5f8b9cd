package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"memory-palace/internal/domain"
)

var evaluationPrompt = template.Must(template.New("evaluate").Parse(`Evaluate this student's answer and provide encouraging feedback.

Question: {{.Question}}
Student Answer: {{.UserAnswer}}
Correct Answer: {{.ExpectedAnswer}}
{{- if .Mnemonic}}
Memory Hook: {{.Mnemonic}}{{end}}

Judge the meaning, not the wording. If the answer is wrong, gently correct it
{{- if .Mnemonic}} and remind the student of the memory hook{{end}}.
If it is partially correct, explain what was missing and give partial credit in the score.
Reply with is_correct, feedback and a score from 0 to 100.`))

var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"is_correct": {Type: genai.TypeBoolean},
		"feedback":   {Type: genai.TypeString},
		"score":      {Type: genai.TypeInteger},
	},
	Required: []string{"is_correct", "feedback", "score"},
}

type verdictReply struct {
	IsCorrect *bool  `json:"is_correct" validate:"required"`
	Feedback  string `json:"feedback" validate:"required"`
	Score     *int   `json:"score" validate:"required,min=0,max=100"`
}

// Evaluator judges answers with a Gemini model.
type Evaluator struct {
	caller   *caller
	validate *validator.Validate
	logger   *zap.Logger
}

func NewEvaluator(gen ContentGenerator, cfg Config, logger *zap.Logger) *Evaluator {
	c := newCaller(gen, cfg, logger)
	return &Evaluator{caller: c, validate: validator.New(), logger: c.logger}
}

func (e *Evaluator) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Verdict, error) {
	var prompt bytes.Buffer
	if err := evaluationPrompt.Execute(&prompt, req); err != nil {
		return domain.Verdict{}, fmt.Errorf("render evaluation prompt: %w", err)
	}

	text, err := e.caller.generate(ctx, prompt.String(), verdictSchema, domain.ErrEvaluationFormat)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Verdict{}, fmt.Errorf("%w: %v", domain.ErrEvaluationTimeout, err)
		}
		return domain.Verdict{}, err
	}

	verdict, err := e.decode(text)
	if err != nil {
		e.logger.Warn("rejecting malformed evaluation", zap.String("reply", truncate(text, 200)), zap.Error(err))
		return domain.Verdict{}, err
	}
	return verdict, nil
}

func (e *Evaluator) decode(text string) (domain.Verdict, error) {
	var reply verdictReply
	if err := decodeStrict(text, &reply); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v", domain.ErrEvaluationFormat, err)
	}
	if err := e.validate.Struct(reply); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v", domain.ErrEvaluationFormat, err)
	}
	return domain.Verdict{
		Correct:  *reply.IsCorrect,
		Feedback: strings.TrimSpace(reply.Feedback),
		Score:    *reply.Score,
	}, nil
}

// decodeStrict accepts exactly one JSON value with no unknown fields.
func decodeStrict(text string, v any) error {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after reply")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
