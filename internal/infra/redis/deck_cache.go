package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"memory-palace/internal/domain"
)

// DeckLoader fetches a deck from a backing store (file, postgres, ...).
type DeckLoader interface {
	Load(ctx context.Context, source string) (domain.Deck, error)
}

// DeckCache caches decks in Redis and falls back to a loader on cache miss.
// Decks are stored as JSON under deck:{source}.
type DeckCache struct {
	client *redis.Client
	loader DeckLoader
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewDeckCache(client *redis.Client, loader DeckLoader, ttl time.Duration, logger *zap.Logger) *DeckCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeckCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *DeckCache) GetDeck(ctx context.Context, source string) (domain.Deck, error) {
	key := deckKey(source)
	if deck, ok := c.lookup(ctx, key); ok {
		return deck, nil
	}

	result, err, _ := c.sf.Do(source, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if deck, ok := c.lookup(ctx, key); ok {
			return deck, nil
		}

		deck, err := c.loader.Load(ctx, source)
		if err != nil {
			return domain.Deck(nil), err
		}

		payload, err := json.Marshal(deck)
		if err == nil {
			err = c.client.Set(ctx, key, payload, c.ttlWithJitter()).Err()
		}
		if err != nil {
			c.logger.Warn("failed to cache deck", zap.String("deck", source), zap.Error(err))
		}
		return deck, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.Deck), nil
}

// Invalidate removes the cached copy of source.
func (c *DeckCache) Invalidate(ctx context.Context, source string) error {
	return c.client.Del(ctx, deckKey(source)).Err()
}

func (c *DeckCache) lookup(ctx context.Context, key string) (domain.Deck, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("deck cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var deck domain.Deck
	if err := json.Unmarshal(raw, &deck); err != nil {
		c.logger.Warn("dropping undecodable cached deck", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return deck, true
}

func (c *DeckCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func deckKey(source string) string {
	return "deck:" + source
}
