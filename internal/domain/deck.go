package domain

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks required fields and the difficulty enum. A card with
// options must have its answer among them.
func (f Flashcard) Validate() error {
	if err := validatorInstance().Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFlashcard, err)
	}
	if len(f.Options) > 0 && OptionIndex(f.Options, f.Answer) < 0 {
		return fmt.Errorf("%w: answer %q is not one of the options", ErrInvalidFlashcard, f.Answer)
	}
	return nil
}

// Deck is an ordered collection of flashcards with unique ids.
type Deck []Flashcard

// Add returns a new deck with card appended. The receiver is left untouched.
func (d Deck) Add(card Flashcard) (Deck, error) {
	if err := card.Validate(); err != nil {
		return d, err
	}
	if d.Contains(card.ID) {
		return d, fmt.Errorf("%w: %s", ErrDuplicateID, card.ID)
	}
	out := make(Deck, 0, len(d)+1)
	out = append(out, d...)
	return append(out, card), nil
}

// Contains reports whether a card with id is in the deck.
func (d Deck) Contains(id string) bool {
	_, ok := d.Find(id)
	return ok
}

// Find returns the card with id.
func (d Deck) Find(id string) (Flashcard, bool) {
	for _, c := range d {
		if c.ID == id {
			return c, true
		}
	}
	return Flashcard{}, false
}

// Validate checks every card and rejects duplicate ids.
func (d Deck) Validate() error {
	seen := make(map[string]struct{}, len(d))
	for i, c := range d {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("card %d: %w", i, err)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("card %d: %w: %s", i, ErrDuplicateID, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
