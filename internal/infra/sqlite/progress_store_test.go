package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-palace/internal/domain"
)

func setupTestDB(t *testing.T) *ProgressStore {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	return NewProgressStore(db, "alice")
}

func TestProgressStoreEmptyHistory(t *testing.T) {
	store := setupTestDB(t)
	history, err := store.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestProgressStoreAppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	date := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, domain.ProgressRecord{
		SessionID: "a", Date: date, Total: 5, Correct: 4, Accuracy: 0.8,
		WeakTopics: []string{"osmosis"}, TopicMisses: map[string]int{"osmosis": 1}, Streak: 3,
	}))
	require.NoError(t, store.Append(ctx, domain.ProgressRecord{
		SessionID: "b", Date: date.Add(time.Hour), Total: 5, Correct: 5, Accuracy: 1, Streak: 5,
	}))

	history, err := store.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "a", history[0].SessionID)
	assert.Equal(t, []string{"osmosis"}, history[0].WeakTopics)
	assert.Equal(t, map[string]int{"osmosis": 1}, history[0].TopicMisses)
	assert.True(t, history[0].Date.Equal(date))
	assert.Equal(t, "b", history[1].SessionID)
	assert.Empty(t, history[1].WeakTopics)
	assert.Equal(t, 5, history[1].Streak)
}

func TestProgressStoreProfilesAreSeparate(t *testing.T) {
	ctx := context.Background()
	db, err := Open(":memory:")
	require.NoError(t, err)

	alice := NewProgressStore(db, "alice")
	bob := NewProgressStore(db, "bob")
	require.NoError(t, alice.Append(ctx, domain.ProgressRecord{SessionID: "a", Total: 1, Correct: 1}))

	history, err := bob.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestProgressStoreKeepsMode(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	require.NoError(t, store.Append(ctx, domain.ProgressRecord{SessionID: "a", Total: 2, Correct: 1, Mode: domain.ModeChoice}))
	require.NoError(t, store.Append(ctx, domain.ProgressRecord{SessionID: "b", Total: 2, Correct: 2}))

	history, err := store.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ModeChoice, history[0].Mode)
	assert.Equal(t, domain.ModeFlashcard, history[1].Mode)
}
