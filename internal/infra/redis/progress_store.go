package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"memory-palace/internal/domain"
)

// ProgressStore keeps one profile's history as a Redis list of JSON records.
type ProgressStore struct {
	client *redis.Client
	key    string
}

func NewProgressStore(client *redis.Client, profile string) *ProgressStore {
	if profile == "" {
		profile = "default"
	}
	return &ProgressStore{client: client, key: "progress:" + profile}
}

func (s *ProgressStore) Append(ctx context.Context, rec domain.ProgressRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.NewStorageError("append", s.key, err)
	}
	if err := s.client.RPush(ctx, s.key, payload).Err(); err != nil {
		return domain.NewStorageError("append", s.key, err)
	}
	return nil
}

func (s *ProgressStore) History(ctx context.Context) ([]domain.ProgressRecord, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, domain.NewStorageError("history", s.key, err)
	}
	history := make([]domain.ProgressRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.ProgressRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, domain.NewStorageError("history", s.key, err)
		}
		history = append(history, rec)
	}
	return history, nil
}
