package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"memory-palace/internal/domain"
)

// DeckStore keeps each deck as one JSONB row keyed by source name.
type DeckStore struct {
	pool *pgxpool.Pool
}

func NewDeckStore(pool *pgxpool.Pool) *DeckStore {
	return &DeckStore{pool: pool}
}

func (s *DeckStore) Load(ctx context.Context, source string) (domain.Deck, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM decks WHERE source=$1`, source).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("deck %q: %w", source, domain.ErrDeckNotFound)
	}
	if err != nil {
		return nil, domain.NewStorageError("load", source, err)
	}
	var deck domain.Deck
	if err := json.Unmarshal(raw, &deck); err != nil {
		return nil, domain.NewStorageError("load", source, fmt.Errorf("unmarshal deck: %w", err))
	}
	if err := deck.Validate(); err != nil {
		return nil, domain.NewStorageError("load", source, err)
	}
	return deck, nil
}

// Save upserts the whole deck in one statement.
func (s *DeckStore) Save(ctx context.Context, source string, deck domain.Deck) error {
	if deck == nil {
		deck = domain.Deck{}
	}
	data, err := json.Marshal(deck)
	if err != nil {
		return domain.NewStorageError("save", source, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO decks (source, data, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (source) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`,
		source, string(data))
	if err != nil {
		return domain.NewStorageError("save", source, err)
	}
	return nil
}
