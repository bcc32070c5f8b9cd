package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"memory-palace/internal/domain"
)

// DeckLoader fetches a deck from a backing store (file, postgres, ...).
type DeckLoader interface {
	Load(ctx context.Context, source string) (domain.Deck, error)
}

// DeckCache caches decks with TTL to avoid re-reading them for every quiz.
type DeckCache struct {
	loader DeckLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedDeck
}

type cachedDeck struct {
	deck      domain.Deck
	expiresAt time.Time
}

func NewDeckCache(loader DeckLoader, ttl time.Duration) *DeckCache {
	return &DeckCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDeck),
	}
}

// GetDeck returns a cached deck or loads it once for concurrent callers.
func (c *DeckCache) GetDeck(ctx context.Context, source string) (domain.Deck, error) {
	if deck, ok := c.lookup(source); ok {
		return deck, nil
	}

	result, err, _ := c.sf.Do(source, func() (interface{}, error) {
		if deck, ok := c.lookup(source); ok {
			return deck, nil
		}

		deck, err := c.loader.Load(ctx, source)
		if err != nil {
			return domain.Deck(nil), err
		}

		c.mu.Lock()
		c.cache[source] = cachedDeck{
			deck:      deck,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return deck, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.Deck), nil
}

// Invalidate drops a cached deck, e.g. after it was rewritten.
func (c *DeckCache) Invalidate(_ context.Context, source string) error {
	c.mu.Lock()
	delete(c.cache, source)
	c.mu.Unlock()
	return nil
}

func (c *DeckCache) lookup(source string) (domain.Deck, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.cache[source]; ok && entry.expiresAt.After(now) {
		return entry.deck, true
	}
	return nil, false
}

func (c *DeckCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticDeckLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticDeckLoader struct {
	decks map[string]domain.Deck
}

func NewStaticDeckLoader(decks map[string]domain.Deck) *StaticDeckLoader {
	return &StaticDeckLoader{decks: decks}
}

func (l *StaticDeckLoader) Load(_ context.Context, source string) (domain.Deck, error) {
	if deck, ok := l.decks[source]; ok {
		return deck, nil
	}
	return nil, domain.ErrDeckNotFound
}
