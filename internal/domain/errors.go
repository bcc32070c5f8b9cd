package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage marks a persisted deck or progress file that is missing, corrupt, or unwritable.
	ErrStorage = errors.New("storage error")
	// ErrDuplicateID is returned when a flashcard id already exists in the deck.
	ErrDuplicateID = errors.New("duplicate flashcard id")
	// ErrInvalidFlashcard is returned when a flashcard fails validation.
	ErrInvalidFlashcard = errors.New("invalid flashcard")
	// ErrEmptyDeck is returned when a session is started over no flashcards.
	ErrEmptyDeck = errors.New("deck is empty")
	// ErrInvalidState is returned when session operations are called out of order.
	ErrInvalidState = errors.New("invalid session state")
	// ErrEvaluationTimeout is returned when the answer evaluator did not reply in time.
	ErrEvaluationTimeout = errors.New("answer evaluation timed out")
	// ErrEvaluationFormat is returned when the evaluator reply does not match the expected schema.
	ErrEvaluationFormat = errors.New("malformed evaluation response")
	// ErrEvaluatorUnavailable is returned when the evaluator kept failing with transient errors.
	ErrEvaluatorUnavailable = errors.New("answer evaluator unavailable")
	// ErrInvalidQuestion is returned when a multiple-choice question fails validation.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidChoice is returned when an answer does not name one of the options.
	ErrInvalidChoice = errors.New("not one of the options")
	// ErrDeckNotFound indicates the requested deck does not exist in the backing store.
	ErrDeckNotFound = errors.New("deck not found")
)

// StorageError describes a failed read or write of a persisted store.
type StorageError struct {
	Op   string // "load", "save", "append", "history"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps err for the given operation and path.
func NewStorageError(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}
