package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"memory-palace/internal/domain"
)

// ProgressStore keeps the session history as a JSON array in one file.
type ProgressStore struct {
	path string
	mu   sync.Mutex
}

func NewProgressStore(path string) *ProgressStore {
	return &ProgressStore{path: path}
}

// History returns records in append order. A missing file is an empty history.
func (s *ProgressStore) History(_ context.Context) ([]domain.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Append adds a record by rewriting the whole file. A corrupt history is
// reported and left untouched.
func (s *ProgressStore) Append(_ context.Context, rec domain.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.readLocked()
	if err != nil {
		return err
	}
	history = append(history, rec)

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return domain.NewStorageError("append", s.path, err)
	}
	data = append(data, '\n')
	if err := writeFileAtomic(s.path, data); err != nil {
		return domain.NewStorageError("append", s.path, err)
	}
	return nil
}

func (s *ProgressStore) readLocked() ([]domain.ProgressRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.ProgressRecord{}, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("history", s.path, err)
	}
	if len(data) == 0 {
		return []domain.ProgressRecord{}, nil
	}

	var history []domain.ProgressRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, domain.NewStorageError("history", s.path, err)
	}
	if history == nil {
		history = []domain.ProgressRecord{}
	}
	return history, nil
}
