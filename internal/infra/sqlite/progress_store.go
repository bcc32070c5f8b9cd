// Package sqlite stores progress history in a local SQLite database via gorm.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"memory-palace/internal/domain"
)

type progressRow struct {
	ID          uint   `gorm:"primaryKey"`
	Profile     string `gorm:"index;not null"`
	SessionID   string `gorm:"not null"`
	RecordedAt  time.Time
	Total       int
	Correct     int
	Accuracy    float64
	WeakTopics  string
	TopicMisses string
	Streak      int
	Mode        string `gorm:"not null;default:flashcard"`
}

func (progressRow) TableName() string { return "progress_records" }

// ProgressStore keeps one profile's history in a gorm-managed table.
type ProgressStore struct {
	db      *gorm.DB
	profile string
}

// Open connects to the database at dsn (":memory:" works for tests) and
// migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&progressRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

func NewProgressStore(db *gorm.DB, profile string) *ProgressStore {
	if profile == "" {
		profile = "default"
	}
	return &ProgressStore{db: db, profile: profile}
}

func (s *ProgressStore) Append(ctx context.Context, rec domain.ProgressRecord) error {
	weak := rec.WeakTopics
	if weak == nil {
		weak = []string{}
	}
	weakJSON, err := json.Marshal(weak)
	if err != nil {
		return domain.NewStorageError("append", s.profile, err)
	}
	var missesJSON []byte
	if len(rec.TopicMisses) > 0 {
		if missesJSON, err = json.Marshal(rec.TopicMisses); err != nil {
			return domain.NewStorageError("append", s.profile, err)
		}
	}

	row := progressRow{
		Profile:     s.profile,
		SessionID:   rec.SessionID,
		RecordedAt:  rec.Date,
		Total:       rec.Total,
		Correct:     rec.Correct,
		Accuracy:    rec.Accuracy,
		WeakTopics:  string(weakJSON),
		TopicMisses: string(missesJSON),
		Streak:      rec.Streak,
		Mode:        string(rec.Mode.OrDefault()),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.NewStorageError("append", s.profile, err)
	}
	return nil
}

func (s *ProgressStore) History(ctx context.Context) ([]domain.ProgressRecord, error) {
	var rows []progressRow
	err := s.db.WithContext(ctx).
		Where("profile = ?", s.profile).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewStorageError("history", s.profile, err)
	}

	history := make([]domain.ProgressRecord, 0, len(rows))
	for _, row := range rows {
		rec := domain.ProgressRecord{
			SessionID: row.SessionID,
			Date:      row.RecordedAt,
			Total:     row.Total,
			Correct:   row.Correct,
			Accuracy:  row.Accuracy,
			Streak:    row.Streak,
			Mode:      domain.Mode(row.Mode).OrDefault(),
		}
		if err := json.Unmarshal([]byte(row.WeakTopics), &rec.WeakTopics); err != nil {
			return nil, domain.NewStorageError("history", s.profile, err)
		}
		if row.TopicMisses != "" {
			if err := json.Unmarshal([]byte(row.TopicMisses), &rec.TopicMisses); err != nil {
				return nil, domain.NewStorageError("history", s.profile, err)
			}
		}
		history = append(history, rec)
	}
	return history, nil
}
