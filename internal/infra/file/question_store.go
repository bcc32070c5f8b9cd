package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"memory-palace/internal/domain"
)

// questionFile is the on-disk shape: {"mcqs": [...]}.
type questionFile struct {
	MCQs domain.QuestionSet `json:"mcqs" yaml:"mcqs"`
}

// QuestionStore reads and writes multiple-choice sets as JSON or YAML files.
type QuestionStore struct {
	mu sync.Mutex
}

func NewQuestionStore() *QuestionStore {
	return &QuestionStore{}
}

// Load reads the set at path. A missing, malformed or invalid file is a StorageError.
func (s *QuestionStore) Load(_ context.Context, path string) (domain.QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewStorageError("load", path, err)
	}
	set, err := decodeQuestions(data, isYAML(path))
	if err != nil {
		return nil, domain.NewStorageError("load", path, err)
	}
	if err := set.Validate(); err != nil {
		return nil, domain.NewStorageError("load", path, err)
	}
	return set, nil
}

// Save atomically overwrites the set at path.
func (s *QuestionStore) Save(_ context.Context, path string, set domain.QuestionSet) error {
	body := questionFile{MCQs: set}
	if body.MCQs == nil {
		body.MCQs = domain.QuestionSet{}
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(body)
	} else {
		data, err = json.MarshalIndent(body, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return domain.NewStorageError("save", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(path, data); err != nil {
		return domain.NewStorageError("save", path, err)
	}
	return nil
}

func decodeQuestions(data []byte, asYAML bool) (domain.QuestionSet, error) {
	var body questionFile
	if asYAML {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("empty question file")
			}
			return nil, fmt.Errorf("decode yaml questions: %w", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("empty question file")
			}
			return nil, fmt.Errorf("decode json questions: %w", err)
		}
		if dec.More() {
			return nil, errors.New("trailing data after questions")
		}
	}
	if body.MCQs == nil {
		return nil, errors.New(`question file has no "mcqs" list`)
	}
	return body.MCQs, nil
}
