package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"google.golang.org/genai"

	"memory-palace/internal/domain"
)

var questionPrompt = template.Must(template.New("mcq").Parse(`You are an expert multiple-choice question writer.
Read these study notes and write {{.Count}} questions. Each question has 4 short,
unambiguous options, the zero-based index of the correct option, a concise
explanation and a short topic label. Avoid repeating the question stem in the options.

Notes to analyze:
{{.Notes}}`))

var questionsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"mcqs": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"question":     {Type: genai.TypeString},
					"options":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"answer_index": {Type: genai.TypeInteger},
					"explanation":  {Type: genai.TypeString},
					"topic":        {Type: genai.TypeString},
				},
				Required: []string{"question", "options", "answer_index"},
			},
		},
	},
	Required: []string{"mcqs"},
}

type questionsReply struct {
	MCQs []questionReply `json:"mcqs" validate:"required,min=1,dive"`
}

type questionReply struct {
	Question    string   `json:"question" validate:"required"`
	Options     []string `json:"options" validate:"min=2,max=6,dive,required"`
	AnswerIndex *int     `json:"answer_index" validate:"required"`
	Explanation string   `json:"explanation"`
	Topic       string   `json:"topic"`
}

const defaultQuestionCount = 10

// GenerateQuestions asks for n multiple-choice questions about notes. The
// reply is rejected as a whole when any question is invalid. Questions come
// back without ids.
func (g *Generator) GenerateQuestions(ctx context.Context, notes string, n int) ([]domain.Question, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, errors.New("notes are empty")
	}
	if n <= 0 {
		n = defaultQuestionCount
	}
	var prompt bytes.Buffer
	err := questionPrompt.Execute(&prompt, struct {
		Notes string
		Count int
	}{notes, n})
	if err != nil {
		return nil, fmt.Errorf("render question prompt: %w", err)
	}

	text, err := g.caller.generate(ctx, prompt.String(), questionsSchema, ErrGeneration)
	if err != nil {
		return nil, err
	}

	var reply questionsReply
	if err := decodeStrict(text, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if err := g.validate.Struct(reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	questions := make([]domain.Question, 0, len(reply.MCQs))
	for i, r := range reply.MCQs {
		q := domain.Question{
			Prompt:      strings.TrimSpace(r.Question),
			AnswerIndex: *r.AnswerIndex,
			Explanation: strings.TrimSpace(r.Explanation),
			Topic:       strings.TrimSpace(r.Topic),
		}
		for _, o := range r.Options {
			q.Options = append(q.Options, strings.TrimSpace(o))
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrGeneration, i, err)
		}
		questions = append(questions, q)
	}
	if len(questions) > n {
		questions = questions[:n]
	}
	return questions, nil
}
