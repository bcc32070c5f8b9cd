package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode names the kind of quiz a session ran.
type Mode string

const (
	ModeFlashcard Mode = "flashcard"
	ModeChoice    Mode = "mcq"
)

// OrDefault treats an empty mode, as found in older records, as a flashcard quiz.
func (m Mode) OrDefault() Mode {
	if m == "" {
		return ModeFlashcard
	}
	return m
}

// Option is one labelled choice of a question.
type Option struct {
	Label   string `json:"label"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID          string   `json:"id" yaml:"id"`
	Prompt      string   `json:"question" yaml:"question" validate:"required"`
	Options     []string `json:"options" yaml:"options" validate:"min=2,max=6,dive,required"`
	AnswerIndex int      `json:"answer_index" yaml:"answer_index" validate:"gte=0"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Topic       string   `json:"topic,omitempty" yaml:"topic,omitempty"`
}

// Validate checks required fields, the answer index and that no option repeats.
func (q Question) Validate() error {
	if err := validatorInstance().Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	if q.AnswerIndex >= len(q.Options) {
		return fmt.Errorf("%w: answer_index %d out of range for %d options", ErrInvalidQuestion, q.AnswerIndex, len(q.Options))
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		key := normalizeOption(o)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: option %q repeated", ErrInvalidQuestion, o)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Choices returns the options labelled A, B, C...
func (q Question) Choices() []Option {
	out := make([]Option, len(q.Options))
	for i, text := range q.Options {
		out[i] = Option{Label: ChoiceLabel(i), Text: text, Correct: i == q.AnswerIndex}
	}
	return out
}

// Card converts the question into a flashcard whose answer is the correct
// option. The explanation travels as the card's mnemonic.
func (q Question) Card() Flashcard {
	return Flashcard{
		ID:       q.ID,
		Question: q.Prompt,
		Answer:   q.Options[q.AnswerIndex],
		Mnemonic: q.Explanation,
		Topic:    q.Topic,
		Options:  append([]string(nil), q.Options...),
	}
}

// QuestionSet is an ordered list of questions with unique ids.
type QuestionSet []Question

// Validate checks every question and requires unique, non-empty ids.
func (s QuestionSet) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for i, q := range s {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
		if q.ID == "" {
			return fmt.Errorf("question %d: %w: missing id", i, ErrInvalidQuestion)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("question %d: %w: %s", i, ErrDuplicateID, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// Deck converts the set for a quiz session.
func (s QuestionSet) Deck() Deck {
	deck := make(Deck, 0, len(s))
	for _, q := range s {
		deck = append(deck, q.Card())
	}
	return deck
}

// ChoiceLabel returns the letter for the option at index i.
func ChoiceLabel(i int) string {
	return string(rune('A' + i))
}

// ParseChoice resolves an answer to an option index. It accepts a letter
// ("b"), a 1-based number ("2") or the option text itself.
func ParseChoice(options []string, answer string) (int, error) {
	a := strings.TrimSpace(answer)
	if len(a) == 1 {
		c := strings.ToUpper(a)[0]
		if c >= 'A' && int(c-'A') < len(options) {
			return int(c - 'A'), nil
		}
	}
	if n, err := strconv.Atoi(a); err == nil && n >= 1 && n <= len(options) {
		return n - 1, nil
	}
	if i := OptionIndex(options, a); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrInvalidChoice, answer)
}

// OptionIndex finds text among options ignoring case and surrounding space; -1 if absent.
func OptionIndex(options []string, text string) int {
	key := normalizeOption(text)
	for i, o := range options {
		if normalizeOption(o) == key {
			return i
		}
	}
	return -1
}

func normalizeOption(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
