package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"memory-palace/internal/domain"
)

// Evaluator judges a user's answer. Implementations may be slow, remote and
// nondeterministic; the session treats the verdict as authoritative.
type Evaluator interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Verdict, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, req domain.EvaluationRequest) (domain.Verdict, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Verdict, error) {
	return f(ctx, req)
}

// State is the lifecycle position of a Session.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Order controls how flashcards are picked from the deck.
type Order string

const (
	OrderSequential Order = "sequential"
	OrderRandom     Order = "random"
)

// ParseOrder accepts "sequential", "random" or "" (sequential).
func ParseOrder(raw string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OrderSequential:
		return OrderSequential, nil
	case OrderRandom, "shuffle":
		return OrderRandom, nil
	default:
		return "", fmt.Errorf("unknown order %q", raw)
	}
}

// StartInfo tells the caller what Start actually selected.
type StartInfo struct {
	Requested int
	Selected  int
	// Truncated is set when more cards were requested than the deck holds.
	Truncated bool
}

const skippedFeedback = "Skipped."

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithOrder sets the selection order.
func WithOrder(o Order) SessionOption {
	return func(s *Session) { s.order = o }
}

// WithRand sets the random source used for OrderRandom.
func WithRand(r *rand.Rand) SessionOption {
	return func(s *Session) { s.rnd = r }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithEvaluationTimeout bounds each evaluator call. Zero means no bound
// beyond the caller's context.
func WithEvaluationTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.evalTimeout = d }
}

// WithSessionLogger attaches a logger.
func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) { s.observer = o }
}

// WithMode tags the session result with the quiz mode.
func WithMode(m domain.Mode) SessionOption {
	return func(s *Session) { s.mode = m }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// Session drives one quiz run: NotStarted -> InProgress -> Completed.
// The attempt log is append-only.
type Session struct {
	id          string
	evaluator   Evaluator
	order       Order
	rnd         *rand.Rand
	now         func() time.Time
	evalTimeout time.Duration
	logger      *zap.Logger
	observer    Observer
	mode        domain.Mode

	mu          sync.Mutex
	state       State
	busy        bool // an evaluator call is outstanding
	cards       []domain.Flashcard
	pos         int
	attempts    []domain.QuizAttempt
	streak      int
	best        int
	aborted     bool
	startedAt   time.Time
	completedAt time.Time
}

// NewSession creates a session in the NotStarted state.
func NewSession(evaluator Evaluator, opts ...SessionOption) *Session {
	s := &Session{
		id:        uuid.NewString(),
		evaluator: evaluator,
		order:     OrderSequential,
		mode:      domain.ModeFlashcard,
		now:       time.Now,
		logger:    zap.NewNop(),
		observer:  NopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(s.now().UnixNano()))
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Streak returns the running streak.
func (s *Session) Streak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streak
}

// BestStreak returns the longest streak so far.
func (s *Session) BestStreak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.best
}

// Position returns the zero-based index of the current card and the number of selected cards.
func (s *Session) Position() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, len(s.cards)
}

// Start selects min(count, len(deck)) cards and moves to InProgress.
// A count of zero or less selects the whole deck.
func (s *Session) Start(deck domain.Deck, count int) (StartInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateNotStarted {
		return StartInfo{}, fmt.Errorf("%w: start called in %s", domain.ErrInvalidState, s.state)
	}
	if len(deck) == 0 {
		return StartInfo{}, domain.ErrEmptyDeck
	}

	info := StartInfo{Requested: count, Selected: count}
	if count <= 0 {
		info.Requested = len(deck)
		info.Selected = len(deck)
	}
	if info.Selected > len(deck) {
		info.Selected = len(deck)
		info.Truncated = true
	}

	s.cards = selectCards(deck, info.Selected, s.order, s.rnd)
	s.state = StateInProgress
	s.startedAt = s.now()
	s.observer.SessionStarted()
	s.logger.Debug("quiz session started",
		zap.String("session_id", s.id),
		zap.Int("requested", info.Requested),
		zap.Int("selected", info.Selected),
		zap.String("order", string(s.order)))
	return info, nil
}

func selectCards(deck domain.Deck, n int, order Order, rnd *rand.Rand) []domain.Flashcard {
	out := make([]domain.Flashcard, 0, n)
	if order == OrderRandom {
		for _, idx := range rnd.Perm(len(deck))[:n] {
			out = append(out, deck[idx])
		}
		return out
	}
	return append(out, deck[:n]...)
}

// Current returns the flashcard awaiting an answer.
func (s *Session) Current() (domain.Flashcard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.Flashcard{}, fmt.Errorf("%w: no current card in %s", domain.ErrInvalidState, s.state)
	}
	return s.cards[s.pos], nil
}

// Submit evaluates answer against the current card and records the attempt.
// A blank answer counts as a skip. When the evaluator times out nothing is
// recorded and the same card stays current; a deadline on ctx counts as a
// timeout too. When ctx is canceled the session is aborted into Completed.
func (s *Session) Submit(ctx context.Context, answer string) (domain.QuizAttempt, error) {
	s.mu.Lock()
	if err := s.checkAnswerableLocked("submit"); err != nil {
		s.mu.Unlock()
		return domain.QuizAttempt{}, err
	}
	card := s.cards[s.pos]
	if strings.TrimSpace(answer) == "" {
		attempt := s.recordLocked(card, "", domain.Verdict{Feedback: skippedFeedback}, true)
		s.mu.Unlock()
		return attempt, nil
	}
	s.busy = true
	s.mu.Unlock()

	verdict, err := s.evaluate(ctx, card, answer)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false

	if s.state != StateInProgress {
		return domain.QuizAttempt{}, fmt.Errorf("%w: session ended during evaluation", domain.ErrInvalidState)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			s.logger.Info("quiz session aborted during evaluation",
				zap.String("session_id", s.id), zap.Error(ctx.Err()))
			s.completeLocked(true)
			return domain.QuizAttempt{}, fmt.Errorf("evaluation interrupted: %w", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrEvaluationTimeout) ||
			errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.observer.EvaluationFailed("timeout")
			s.logger.Warn("answer evaluation timed out",
				zap.String("session_id", s.id), zap.String("flashcard_id", card.ID), zap.Error(err))
			if errors.Is(err, domain.ErrEvaluationTimeout) {
				return domain.QuizAttempt{}, err
			}
			return domain.QuizAttempt{}, fmt.Errorf("%w: %v", domain.ErrEvaluationTimeout, err)
		}
		if errors.Is(err, domain.ErrInvalidChoice) {
			s.logger.Debug("answer names no option", zap.String("session_id", s.id), zap.Error(err))
			return domain.QuizAttempt{}, err
		}
		kind := "error"
		switch {
		case errors.Is(err, domain.ErrEvaluationFormat):
			kind = "format"
		case errors.Is(err, domain.ErrEvaluatorUnavailable):
			kind = "unavailable"
		}
		s.observer.EvaluationFailed(kind)
		s.logger.Warn("answer evaluation failed",
			zap.String("session_id", s.id), zap.String("flashcard_id", card.ID), zap.Error(err))
		return domain.QuizAttempt{}, fmt.Errorf("evaluate answer: %w", err)
	}
	return s.recordLocked(card, answer, verdict, false), nil
}

func (s *Session) evaluate(ctx context.Context, card domain.Flashcard, answer string) (domain.Verdict, error) {
	evalCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.evalTimeout > 0 {
		evalCtx, cancel = context.WithTimeout(ctx, s.evalTimeout)
	}
	defer cancel()

	started := time.Now()
	verdict, err := s.evaluator.Evaluate(evalCtx, domain.EvaluationRequest{
		Question:       card.Question,
		ExpectedAnswer: card.Answer,
		UserAnswer:     answer,
		Mnemonic:       card.Mnemonic,
		Options:        card.Options,
	})
	s.observer.EvaluationObserved(time.Since(started))
	return verdict, err
}

// Skip records the current card as incorrect without consulting the evaluator.
func (s *Session) Skip() (domain.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAnswerableLocked("skip"); err != nil {
		return domain.QuizAttempt{}, err
	}
	return s.recordLocked(s.cards[s.pos], "", domain.Verdict{Feedback: skippedFeedback}, true), nil
}

// Abort ends the session keeping whatever was recorded. It is a no-op once Completed.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCompleted {
		return
	}
	if s.state == StateNotStarted {
		s.startedAt = s.now()
		s.completedAt = s.startedAt
		s.state = StateCompleted
		s.aborted = true
		return
	}
	s.completeLocked(true)
}

// Result returns the session summary; only valid once Completed.
func (s *Session) Result() (domain.QuizSessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCompleted {
		return domain.QuizSessionResult{}, fmt.Errorf("%w: result requested in %s", domain.ErrInvalidState, s.state)
	}
	res := domain.NewQuizSessionResult(s.id, s.attempts, s.startedAt, s.completedAt, s.aborted)
	res.Mode = s.mode
	return res, nil
}

func (s *Session) checkAnswerableLocked(op string) error {
	if s.state != StateInProgress {
		return fmt.Errorf("%w: %s called in %s", domain.ErrInvalidState, op, s.state)
	}
	if s.busy {
		return fmt.Errorf("%w: %s called while an evaluation is outstanding", domain.ErrInvalidState, op)
	}
	return nil
}

func (s *Session) recordLocked(card domain.Flashcard, answer string, verdict domain.Verdict, skipped bool) domain.QuizAttempt {
	correct := verdict.Correct && !skipped
	if correct {
		s.streak++
		if s.streak > s.best {
			s.best = s.streak
		}
	} else {
		s.streak = 0
	}

	attempt := domain.QuizAttempt{
		FlashcardID:   card.ID,
		Question:      card.Question,
		Topic:         card.Topic,
		UserAnswer:    answer,
		JudgedCorrect: correct,
		Feedback:      verdict.Feedback,
		Skipped:       skipped,
		Streak:        s.streak,
		Timestamp:     s.now(),
	}
	s.attempts = append(s.attempts, attempt)
	s.observer.AttemptRecorded(correct, skipped)

	s.pos++
	if s.pos >= len(s.cards) {
		s.completeLocked(false)
	}
	return attempt
}

func (s *Session) completeLocked(aborted bool) {
	s.state = StateCompleted
	s.aborted = aborted
	s.completedAt = s.now()
	s.observer.SessionCompleted(aborted)
	s.logger.Debug("quiz session completed",
		zap.String("session_id", s.id),
		zap.Int("attempts", len(s.attempts)),
		zap.Bool("aborted", aborted))
}
