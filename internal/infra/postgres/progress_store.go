package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"memory-palace/internal/domain"
)

// ProgressStore appends session records to the progress_records table,
// one history per profile.
type ProgressStore struct {
	pool    *pgxpool.Pool
	profile string
}

func NewProgressStore(pool *pgxpool.Pool, profile string) *ProgressStore {
	if profile == "" {
		profile = "default"
	}
	return &ProgressStore{pool: pool, profile: profile}
}

func (s *ProgressStore) Append(ctx context.Context, rec domain.ProgressRecord) error {
	weak, err := json.Marshal(nonNil(rec.WeakTopics))
	if err != nil {
		return domain.NewStorageError("append", s.profile, err)
	}
	misses, err := json.Marshal(rec.TopicMisses)
	if err != nil {
		return domain.NewStorageError("append", s.profile, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO progress_records
			(profile, session_id, recorded_at, total, correct, accuracy, weak_topics, topic_misses, streak, mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10)`,
		s.profile, rec.SessionID, rec.Date, rec.Total, rec.Correct, rec.Accuracy,
		string(weak), string(misses), rec.Streak, string(rec.Mode.OrDefault()))
	if err != nil {
		return domain.NewStorageError("append", s.profile, err)
	}
	return nil
}

func (s *ProgressStore) History(ctx context.Context) ([]domain.ProgressRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, recorded_at, total, correct, accuracy, weak_topics, topic_misses, streak, mode
		FROM progress_records WHERE profile=$1 ORDER BY id`, s.profile)
	if err != nil {
		return nil, domain.NewStorageError("history", s.profile, err)
	}
	defer rows.Close()

	history := make([]domain.ProgressRecord, 0)
	for rows.Next() {
		var (
			rec          domain.ProgressRecord
			weak, misses []byte
			mode         string
		)
		if err := rows.Scan(&rec.SessionID, &rec.Date, &rec.Total, &rec.Correct, &rec.Accuracy, &weak, &misses, &rec.Streak, &mode); err != nil {
			return nil, domain.NewStorageError("history", s.profile, err)
		}
		if err := json.Unmarshal(weak, &rec.WeakTopics); err != nil {
			return nil, domain.NewStorageError("history", s.profile, err)
		}
		if len(misses) > 0 {
			if err := json.Unmarshal(misses, &rec.TopicMisses); err != nil {
				return nil, domain.NewStorageError("history", s.profile, err)
			}
		}
		rec.Mode = domain.Mode(mode)
		history = append(history, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("history", s.profile, err)
	}
	return history, nil
}

func nonNil(topics []string) []string {
	if topics == nil {
		return []string{}
	}
	return topics
}
