package memory

import (
	"context"
	"sync"

	"memory-palace/internal/domain"
)

// DeckStore keeps decks in a map keyed by source.
type DeckStore struct {
	mu    sync.RWMutex
	decks map[string]domain.Deck
}

func NewDeckStore() *DeckStore {
	return &DeckStore{decks: make(map[string]domain.Deck)}
}

func (s *DeckStore) Load(_ context.Context, source string) (domain.Deck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deck, ok := s.decks[source]
	if !ok {
		return nil, domain.ErrDeckNotFound
	}
	return append(domain.Deck(nil), deck...), nil
}

func (s *DeckStore) Save(_ context.Context, source string, deck domain.Deck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks[source] = append(domain.Deck(nil), deck...)
	return nil
}

// ProgressStore is an in-memory, append-only session history.
type ProgressStore struct {
	mu      sync.RWMutex
	records []domain.ProgressRecord
}

func NewProgressStore(seed ...domain.ProgressRecord) *ProgressStore {
	return &ProgressStore{records: append([]domain.ProgressRecord(nil), seed...)}
}

func (s *ProgressStore) Append(_ context.Context, record domain.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *ProgressStore) History(_ context.Context) ([]domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ProgressRecord(nil), s.records...), nil
}

// QuestionStore keeps multiple-choice sets in a map keyed by source.
type QuestionStore struct {
	mu   sync.RWMutex
	sets map[string]domain.QuestionSet
}

func NewQuestionStore() *QuestionStore {
	return &QuestionStore{sets: make(map[string]domain.QuestionSet)}
}

func (s *QuestionStore) Load(_ context.Context, source string) (domain.QuestionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[source]
	if !ok {
		return nil, domain.ErrDeckNotFound
	}
	return append(domain.QuestionSet(nil), set...), nil
}

func (s *QuestionStore) Save(_ context.Context, source string, set domain.QuestionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[source] = append(domain.QuestionSet(nil), set...)
	return nil
}
