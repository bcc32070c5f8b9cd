package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"memory-palace/internal/app"
	"memory-palace/internal/config"
	"memory-palace/internal/domain"
	"memory-palace/internal/evaluator/keyword"
	"memory-palace/internal/infra/file"
	"memory-palace/internal/infra/gemini"
	"memory-palace/internal/infra/memory"
	"memory-palace/internal/infra/postgres"
	infraredis "memory-palace/internal/infra/redis"
	"memory-palace/internal/infra/sqlite"
	"memory-palace/internal/logger"
	"memory-palace/internal/notes"
)

// runtime holds everything a command needs, built from the config.
type runtime struct {
	cfg      config.Config
	logger   *zap.Logger
	decks    app.DeckStore
	progress app.ProgressStore
	gen      gemini.ContentGenerator
	redis    *redis.Client
	pool     *pgxpool.Pool
	closers  []func()
}

func newRuntime(ctx context.Context, opts *rootOptions) (*runtime, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.profile != "" {
		cfg.Profile = opts.profile
	}

	log, err := logger.New(cfg.Env, opts.logLevel(cfg))
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: log.With(zap.String("profile", cfg.Profile))}

	if cfg.Redis.Addr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" && (cfg.Decks.Backend == "postgres" || cfg.Progress.Backend == "postgres") {
		rt.pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	}

	if rt.decks, err = rt.deckStore(); err != nil {
		rt.Close()
		return nil, err
	}
	if rt.progress, err = rt.progressStore(); err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Gemini.APIKey != "" {
		rt.gen, err = gemini.NewContentGenerator(ctx, cfg.Gemini.APIKey)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

func (rt *runtime) deckStore() (app.DeckStore, error) {
	switch rt.cfg.Decks.Backend {
	case "postgres":
		if rt.pool == nil {
			return nil, errors.New("decks.backend is postgres but postgres.url is not configured")
		}
		return postgres.NewDeckStore(rt.pool), nil
	default:
		return file.NewDeckStore(), nil
	}
}

func (rt *runtime) progressStore() (app.ProgressStore, error) {
	profile := rt.cfg.Profile
	switch rt.cfg.Progress.Backend {
	case "redis":
		if rt.redis == nil {
			return nil, errors.New("progress.backend is redis but redis.addr is not configured")
		}
		return infraredis.NewProgressStore(rt.redis, profile), nil
	case "postgres":
		if rt.pool == nil {
			return nil, errors.New("progress.backend is postgres but postgres.url is not configured")
		}
		return postgres.NewProgressStore(rt.pool, profile), nil
	case "sqlite":
		db, err := sqlite.Open(rt.cfg.Progress.SQLitePath)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			rt.closers = append(rt.closers, func() { _ = sqlDB.Close() })
		}
		return sqlite.NewProgressStore(db, profile), nil
	case "memory":
		return memory.NewProgressStore(), nil
	default:
		return file.NewProgressStore(profilePath(rt.cfg.Progress.Path, profile)), nil
	}
}

// profilePath keeps the configured file for the default profile and puts
// other profiles next to it: progress.json -> progress.alice.json.
func profilePath(path, profile string) string {
	if profile == "" || profile == "default" {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + profile + ext
}

// evaluator returns the Gemini judge when an API key is configured and the
// offline keyword judge otherwise.
func (rt *runtime) evaluator() app.Evaluator {
	if rt.gen == nil {
		rt.logger.Debug("no gemini api key, using keyword evaluator")
		return keyword.New()
	}
	return gemini.NewEvaluator(rt.gen, rt.geminiConfig(), rt.logger.Named("gemini"))
}

func (rt *runtime) geminiConfig() gemini.Config {
	return gemini.Config{
		APIKey:     rt.cfg.Gemini.APIKey,
		Model:      rt.cfg.Gemini.Model,
		MaxRetries: rt.cfg.Gemini.MaxRetries,
		BaseDelay:  config.Duration(rt.cfg.Gemini.BaseDelay, 500*time.Millisecond),
	}
}

// generator returns the flashcard generator: Gemini with the offline
// extractor as fallback, or the extractor alone.
func (rt *runtime) generator() cardGenerator {
	offline := extractGenerator{}
	if rt.gen == nil {
		return offline
	}
	return fallbackGenerator{
		primary:  gemini.NewGenerator(rt.gen, rt.geminiConfig(), rt.logger.Named("gemini")),
		fallback: offline,
		logger:   rt.logger,
	}
}

// questionGenerator mirrors generator for multiple-choice questions.
func (rt *runtime) questionGenerator() questionGenerator {
	offline := localQuestionBuilder{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
	if rt.gen == nil {
		return offline
	}
	return fallbackQuestionGenerator{
		primary:  gemini.NewGenerator(rt.gen, rt.geminiConfig(), rt.logger.Named("gemini")),
		fallback: offline,
		logger:   rt.logger,
	}
}

func (rt *runtime) service(opts ...app.ServiceOption) *app.QuizService {
	base := []app.ServiceOption{
		app.WithLogger(rt.logger),
		app.WithQuestionStore(file.NewQuestionStore()),
		app.WithSessionOptions(app.WithEvaluationTimeout(
			config.Duration(rt.cfg.Quiz.EvaluationTimeout, 30*time.Second))),
	}
	return app.NewQuizService(rt.decks, rt.progress, rt.evaluator(), append(base, opts...)...)
}

// deckCache caches decks in Redis when configured, in process otherwise.
func (rt *runtime) deckCache() app.DeckRepository {
	ttl := config.Duration(rt.cfg.Decks.CacheTTL, 10*time.Minute)
	if rt.redis != nil {
		return infraredis.NewDeckCache(rt.redis, rt.decks, ttl, rt.logger.Named("deck_cache"))
	}
	return memory.NewDeckCache(rt.decks, ttl)
}

func (rt *runtime) sessionRepository() app.SessionRepository {
	if rt.redis != nil {
		return infraredis.NewSessionStore(rt.redis, config.Duration(rt.cfg.Quiz.SessionTTL, time.Hour))
	}
	return memory.NewSessionStore()
}

func (rt *runtime) Close() {
	for _, c := range rt.closers {
		c()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	_ = rt.logger.Sync()
}

type cardGenerator interface {
	Generate(ctx context.Context, notes string) ([]domain.Flashcard, error)
}

type extractGenerator struct{}

func (extractGenerator) Generate(_ context.Context, content string) ([]domain.Flashcard, error) {
	return notes.Extract(content), nil
}

type fallbackGenerator struct {
	primary  cardGenerator
	fallback cardGenerator
	logger   *zap.Logger
}

func (g fallbackGenerator) Generate(ctx context.Context, content string) ([]domain.Flashcard, error) {
	cards, err := g.primary.Generate(ctx, content)
	if err == nil {
		return cards, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	g.logger.Warn("generation failed, falling back to offline extraction", zap.Error(err))
	return g.fallback.Generate(ctx, content)
}

type questionGenerator interface {
	GenerateQuestions(ctx context.Context, notes string, n int) ([]domain.Question, error)
}

type localQuestionBuilder struct {
	rnd *rand.Rand
}

func (b localQuestionBuilder) GenerateQuestions(_ context.Context, content string, n int) ([]domain.Question, error) {
	return notes.BuildQuestions(content, n, b.rnd), nil
}

type fallbackQuestionGenerator struct {
	primary  questionGenerator
	fallback questionGenerator
	logger   *zap.Logger
}

func (g fallbackQuestionGenerator) GenerateQuestions(ctx context.Context, content string, n int) ([]domain.Question, error) {
	questions, err := g.primary.GenerateQuestions(ctx, content, n)
	if err == nil {
		return questions, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	g.logger.Warn("question generation failed, building questions locally", zap.Error(err))
	return g.fallback.GenerateQuestions(ctx, content, n)
}
