package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"memory-palace/internal/domain"
)

// DeckStore reads and writes decks as JSON or YAML files; the format
// follows the file extension.
type DeckStore struct {
	mu sync.Mutex
}

func NewDeckStore() *DeckStore {
	return &DeckStore{}
}

// Load reads the deck at path. A missing or malformed file is a StorageError.
func (s *DeckStore) Load(_ context.Context, path string) (domain.Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewStorageError("load", path, err)
	}

	var deck domain.Deck
	if isYAML(path) {
		deck, err = decodeYAMLDeck(data)
	} else {
		deck, err = decodeJSONDeck(data)
	}
	if err != nil {
		return nil, domain.NewStorageError("load", path, err)
	}
	if err := deck.Validate(); err != nil {
		return nil, domain.NewStorageError("load", path, err)
	}
	return deck, nil
}

// Save atomically overwrites the deck at path.
func (s *DeckStore) Save(_ context.Context, path string, deck domain.Deck) error {
	if deck == nil {
		deck = domain.Deck{}
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(deck)
	} else {
		data, err = json.MarshalIndent(deck, "", "  ")
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

func decodeJSONDeck(data []byte) (domain.Deck, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var deck domain.Deck
	if err := dec.Decode(&deck); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty deck file")
		}
		return nil, fmt.Errorf("decode json deck: %w", err)
	}
	if dec.More() {
		return nil, errors.New("trailing data after deck")
	}
	if deck == nil {
		return nil, errors.New("deck is not a list of flashcards")
	}
	return deck, nil
}

func decodeYAMLDeck(data []byte) (domain.Deck, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var deck domain.Deck
	if err := dec.Decode(&deck); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty deck file")
		}
		return nil, fmt.Errorf("decode yaml deck: %w", err)
	}
	if deck == nil {
		deck = domain.Deck{}
	}
	return deck, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
