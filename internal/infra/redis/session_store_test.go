package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"memory-palace/internal/app"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	session := app.NewSession(nil, app.WithSessionID("s-1"))
	store.Put(session)
	if !mr.Exists("quiz:session:s-1") {
		t.Fatalf("expected redis key to be set")
	}
	if got, ok := store.Get("s-1"); !ok || got != session {
		t.Fatalf("expected session to be returned")
	}
	if store.Count() != 1 {
		t.Fatalf("expected one session, got %d", store.Count())
	}

	store.Delete("s-1")
	if mr.Exists("quiz:session:s-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if store.Count() != 0 {
		t.Fatalf("expected no sessions, got %d", store.Count())
	}
}
