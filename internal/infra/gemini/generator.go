package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"memory-palace/internal/domain"
)

// ErrGeneration marks a generation reply that could not be used.
var ErrGeneration = errors.New("invalid flashcard generation response")

var generationPrompt = template.Must(template.New("generate").Parse(`Analyze these study notes and extract the key concepts as flashcards.
For each concept write a clear question, a concise answer, a short topic label,
and a memorable, slightly humorous mnemonic or analogy.
Aim for 5 to 10 flashcards depending on how long the notes are.

Notes to analyze:
{{.}}`))

var cardsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"flashcards": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"question": {Type: genai.TypeString},
					"answer":   {Type: genai.TypeString},
					"mnemonic": {Type: genai.TypeString},
					"topic":    {Type: genai.TypeString},
				},
				Required: []string{"question", "answer"},
			},
		},
	},
	Required: []string{"flashcards"},
}

type cardsReply struct {
	Flashcards []cardReply `json:"flashcards" validate:"required,min=1,dive"`
}

type cardReply struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
	Mnemonic string `json:"mnemonic"`
	Topic    string `json:"topic"`
}

// Generator turns study notes into flashcards with a Gemini model.
type Generator struct {
	caller   *caller
	validate *validator.Validate
}

func NewGenerator(gen ContentGenerator, cfg Config, logger *zap.Logger) *Generator {
	return &Generator{caller: newCaller(gen, cfg, logger), validate: validator.New()}
}

// Generate returns cards without ids; the caller assigns them on merge.
func (g *Generator) Generate(ctx context.Context, notes string) ([]domain.Flashcard, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, errors.New("notes are empty")
	}
	var prompt bytes.Buffer
	if err := generationPrompt.Execute(&prompt, notes); err != nil {
		return nil, fmt.Errorf("render generation prompt: %w", err)
	}

	text, err := g.caller.generate(ctx, prompt.String(), cardsSchema, ErrGeneration)
	if err != nil {
		return nil, err
	}

	var reply cardsReply
	if err := decodeStrict(text, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if err := g.validate.Struct(reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	cards := make([]domain.Flashcard, 0, len(reply.Flashcards))
	for _, c := range reply.Flashcards {
		cards = append(cards, domain.Flashcard{
			Question: strings.TrimSpace(c.Question),
			Answer:   strings.TrimSpace(c.Answer),
			Mnemonic: strings.TrimSpace(c.Mnemonic),
			Topic:    strings.TrimSpace(c.Topic),
		})
	}
	return cards, nil
}
