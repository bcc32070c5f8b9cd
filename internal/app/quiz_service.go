package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"memory-palace/internal/domain"
)

// DeckStore persists decks. Save must replace the previous deck atomically.
type DeckStore interface {
	Load(ctx context.Context, source string) (domain.Deck, error)
	Save(ctx context.Context, source string, deck domain.Deck) error
}

// DeckRepository serves decks for quizzing, usually from a cache.
// Invalidate is called after the deck at source was rewritten.
type DeckRepository interface {
	GetDeck(ctx context.Context, source string) (domain.Deck, error)
	Invalidate(ctx context.Context, source string) error
}

// ProgressStore keeps the append-only session history.
type ProgressStore interface {
	Append(ctx context.Context, record domain.ProgressRecord) error
	History(ctx context.Context) ([]domain.ProgressRecord, error)
}

// SessionRepository tracks live sessions by id (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
	Count() int
}

const cardIDLength = 12

// QuizService contains the study use cases: deck management, quizzing and progress.
type QuizService struct {
	decks       DeckStore
	deckReads   DeckRepository
	questions   QuestionStore
	progress    ProgressStore
	evaluator   Evaluator
	sessions    SessionRepository
	logger      *zap.Logger
	observer    Observer
	now         func() time.Time
	sessionOpts []SessionOption
}

// ServiceOption configures a QuizService.
type ServiceOption func(*QuizService)

// WithDeckRepository serves quiz decks from repo instead of the deck store.
func WithDeckRepository(repo DeckRepository) ServiceOption {
	return func(s *QuizService) { s.deckReads = repo }
}

// WithSessionRepository registers live sessions in repo.
func WithSessionRepository(repo SessionRepository) ServiceOption {
	return func(s *QuizService) { s.sessions = repo }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *QuizService) { s.logger = l }
}

// WithServiceObserver forwards session signals to o.
func WithServiceObserver(o Observer) ServiceOption {
	return func(s *QuizService) { s.observer = o }
}

// WithServiceClock is test-only for deterministic record dates.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *QuizService) { s.now = now }
}

// WithSessionOptions applies opts to every session the service starts.
func WithSessionOptions(opts ...SessionOption) ServiceOption {
	return func(s *QuizService) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

func NewQuizService(decks DeckStore, progress ProgressStore, evaluator Evaluator, opts ...ServiceOption) *QuizService {
	s := &QuizService{
		decks:     decks,
		progress:  progress,
		evaluator: evaluator,
		logger:    zap.NewNop(),
		observer:  NopObserver{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadDeck reads a deck from the deck store.
func (s *QuizService) LoadDeck(ctx context.Context, source string) (domain.Deck, error) {
	return s.decks.Load(ctx, source)
}

// AddCard appends card to the deck at source, creating the deck if it does
// not exist yet. An empty id is generated.
func (s *QuizService) AddCard(ctx context.Context, source string, card domain.Flashcard) (domain.Flashcard, error) {
	deck, err := s.loadOrEmpty(ctx, source)
	if err != nil {
		return domain.Flashcard{}, err
	}
	if card.ID == "" {
		if card.ID, err = newCardID(); err != nil {
			return domain.Flashcard{}, err
		}
	}
	next, err := deck.Add(card)
	if err != nil {
		return domain.Flashcard{}, err
	}
	if err := s.saveDeck(ctx, source, next); err != nil {
		return domain.Flashcard{}, err
	}
	s.logger.Info("flashcard added", zap.String("deck", source), zap.String("flashcard_id", card.ID))
	return card, nil
}

// MergeReport summarizes a bulk import.
type MergeReport struct {
	Added   int
	Skipped []string // reasons, one per rejected card
}

// MergeCards adds every valid, non-duplicate card and saves the deck once.
// Duplicate questions are skipped as well as duplicate ids.
func (s *QuizService) MergeCards(ctx context.Context, source string, cards []domain.Flashcard) (MergeReport, error) {
	deck, err := s.loadOrEmpty(ctx, source)
	if err != nil {
		return MergeReport{}, err
	}
	questions := make(map[string]struct{}, len(deck))
	for _, c := range deck {
		questions[normalizeQuestion(c.Question)] = struct{}{}
	}

	var report MergeReport
	for _, card := range cards {
		if _, dup := questions[normalizeQuestion(card.Question)]; dup {
			report.Skipped = append(report.Skipped, fmt.Sprintf("duplicate question %q", card.Question))
			continue
		}
		if card.ID == "" {
			if card.ID, err = newCardID(); err != nil {
				return report, err
			}
		}
		next, err := deck.Add(card)
		if err != nil {
			report.Skipped = append(report.Skipped, fmt.Sprintf("%q: %v", card.Question, err))
			continue
		}
		deck = next
		questions[normalizeQuestion(card.Question)] = struct{}{}
		report.Added++
	}
	if report.Added == 0 {
		return report, nil
	}
	if err := s.saveDeck(ctx, source, deck); err != nil {
		return report, err
	}
	s.logger.Info("flashcards merged",
		zap.String("deck", source), zap.Int("added", report.Added), zap.Int("skipped", len(report.Skipped)))
	return report, nil
}

func (s *QuizService) saveDeck(ctx context.Context, source string, deck domain.Deck) error {
	if err := s.decks.Save(ctx, source, deck); err != nil {
		return err
	}
	if s.deckReads != nil {
		if err := s.deckReads.Invalidate(ctx, source); err != nil {
			s.logger.Warn("failed to invalidate cached deck", zap.String("deck", source), zap.Error(err))
		}
	}
	return nil
}

func (s *QuizService) loadOrEmpty(ctx context.Context, source string) (domain.Deck, error) {
	deck, err := s.decks.Load(ctx, source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, domain.ErrDeckNotFound) {
			return domain.Deck{}, nil
		}
		return nil, err
	}
	return deck, nil
}

// StartQuiz loads the deck and starts a new explicit session over it.
func (s *QuizService) StartQuiz(ctx context.Context, source string, count int, order Order) (*Session, StartInfo, error) {
	var (
		deck domain.Deck
		err  error
	)
	if s.deckReads != nil {
		deck, err = s.deckReads.GetDeck(ctx, source)
	} else {
		deck, err = s.decks.Load(ctx, source)
	}
	if err != nil {
		return nil, StartInfo{}, err
	}
	return s.StartQuizWithDeck(deck, count, order)
}

// StartQuizWithDeck starts a session over an already loaded deck.
func (s *QuizService) StartQuizWithDeck(deck domain.Deck, count int, order Order) (*Session, StartInfo, error) {
	return s.startSession(deck, count, order, s.evaluator, domain.ModeFlashcard)
}

func (s *QuizService) startSession(deck domain.Deck, count int, order Order, evaluator Evaluator, mode domain.Mode) (*Session, StartInfo, error) {
	opts := []SessionOption{
		WithSessionLogger(s.logger),
		WithObserver(s.observer),
		WithOrder(order),
		WithMode(mode),
	}
	opts = append(opts, s.sessionOpts...)
	session := NewSession(evaluator, opts...)

	info, err := session.Start(deck, count)
	if err != nil {
		return nil, info, err
	}
	if s.sessions != nil {
		s.sessions.Put(session)
	}
	if info.Truncated {
		s.logger.Info("deck smaller than requested count, using full deck",
			zap.Int("requested", info.Requested), zap.Int("selected", info.Selected))
	}
	return session, info, nil
}

// Session looks up a live session.
func (s *QuizService) Session(id string) (*Session, bool) {
	if s.sessions == nil {
		return nil, false
	}
	return s.sessions.Get(id)
}

// ActiveSessions returns the number of live sessions.
func (s *QuizService) ActiveSessions() int {
	if s.sessions == nil {
		return 0
	}
	return s.sessions.Count()
}

// Finish ends session (aborting it if still running), records progress and
// returns the result. A recording failure is returned alongside a valid result.
func (s *QuizService) Finish(ctx context.Context, session *Session) (domain.QuizSessionResult, error) {
	session.Abort()
	if s.sessions != nil {
		s.sessions.Delete(session.ID())
	}
	res, err := session.Result()
	if err != nil {
		return domain.QuizSessionResult{}, err
	}
	return res, s.Record(ctx, res)
}

// Record appends the progress record derived from res. Sessions without
// attempts are not recorded.
func (s *QuizService) Record(ctx context.Context, res domain.QuizSessionResult) error {
	if res.Total == 0 {
		s.logger.Debug("skipping empty session", zap.String("session_id", res.SessionID))
		return nil
	}
	record := domain.NewProgressRecord(res, s.now().UTC())
	if err := s.progress.Append(ctx, record); err != nil {
		s.logger.Warn("failed to record progress", zap.String("session_id", res.SessionID), zap.Error(err))
		return err
	}
	s.logger.Info("progress recorded",
		zap.String("session_id", res.SessionID),
		zap.Float64("accuracy", record.Accuracy),
		zap.Int("streak", record.Streak))
	return nil
}

// StatsReport carries the aggregate and, when history could not be read,
// the warning that made it empty.
type StatsReport struct {
	domain.Aggregate
	Warning error
}

// Stats aggregates the recorded history. Unreadable history yields an empty
// aggregate with Warning set; progress is never fatal.
func (s *QuizService) Stats(ctx context.Context) StatsReport {
	history, err := s.progress.History(ctx)
	if err != nil {
		s.logger.Warn("progress history unreadable, reporting empty stats", zap.Error(err))
		return StatsReport{Aggregate: domain.AggregateHistory(nil), Warning: err}
	}
	return StatsReport{Aggregate: domain.AggregateHistory(history)}
}

func newCardID() (string, error) {
	id, err := gonanoid.New(cardIDLength)
	if err != nil {
		return "", fmt.Errorf("generate flashcard id: %w", err)
	}
	return id, nil
}

func normalizeQuestion(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
