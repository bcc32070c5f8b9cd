package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"memory-palace/internal/domain"
	"memory-palace/internal/infra/memory"
)

func TestDeckCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		DeckLoader: memory.NewStaticDeckLoader(map[string]domain.Deck{
			"biology": sampleDeck(),
		}),
	}
	cache := NewDeckCache(client, loader, time.Minute, nil)

	if _, err := cache.GetDeck(context.Background(), "biology"); err != nil {
		t.Fatalf("get deck: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("deck:biology") {
		t.Fatalf("expected deck key to be set")
	}
	if ttl := mr.TTL("deck:biology"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	deck, err := cache.GetDeck(context.Background(), "biology")
	if err != nil {
		t.Fatalf("get deck 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(deck) != 2 || deck[1].Question != "What is ATP?" {
		t.Fatalf("unexpected cached deck %+v", deck)
	}

	if err := cache.Invalidate(context.Background(), "biology"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("deck:biology") {
		t.Fatalf("expected deck key to be removed")
	}
}

func TestDeckCacheDropsCorruptEntry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	_ = mr.Set("deck:biology", "{not json")
	loader := &countingLoader{DeckLoader: memory.NewStaticDeckLoader(map[string]domain.Deck{"biology": sampleDeck()})}
	cache := NewDeckCache(newClient(mr), loader, time.Minute, nil)

	deck, err := cache.GetDeck(context.Background(), "biology")
	if err != nil {
		t.Fatalf("get deck: %v", err)
	}
	if loader.calls != 1 || len(deck) != 2 {
		t.Fatalf("expected reload from loader, calls=%d deck=%d", loader.calls, len(deck))
	}
}

func TestDeckCacheMissingDeck(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewDeckCache(newClient(mr), memory.NewStaticDeckLoader(nil), time.Minute, nil)
	if _, err := cache.GetDeck(context.Background(), "nope"); !errors.Is(err, domain.ErrDeckNotFound) {
		t.Fatalf("expected deck not found, got %v", err)
	}
	if mr.Exists("deck:nope") {
		t.Fatalf("missing deck must not be cached")
	}
}

type countingLoader struct {
	DeckLoader
	calls int
}

func (l *countingLoader) Load(ctx context.Context, source string) (domain.Deck, error) {
	l.calls++
	return l.DeckLoader.Load(ctx, source)
}

func sampleDeck() domain.Deck {
	return domain.Deck{
		{ID: "c1", Question: "What is photosynthesis?", Answer: "Turning light into sugar", Topic: "biology"},
		{ID: "c2", Question: "What is ATP?", Answer: "The cell's energy currency", Topic: "biology"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
