package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"memory-palace/internal/app"
	"memory-palace/internal/domain"
)

// scriptedEvaluator returns the queued verdicts in order.
type scriptedEvaluator struct {
	verdicts []bool
	calls    int
}

func (e *scriptedEvaluator) Evaluate(_ context.Context, req domain.EvaluationRequest) (domain.Verdict, error) {
	if e.calls >= len(e.verdicts) {
		return domain.Verdict{}, fmt.Errorf("unexpected evaluation of %q", req.Question)
	}
	ok := e.verdicts[e.calls]
	e.calls++
	return domain.Verdict{Correct: ok, Feedback: fmt.Sprintf("verdict %d", e.calls)}, nil
}

func sampleDeck(n int) domain.Deck {
	deck := make(domain.Deck, 0, n)
	for i := 1; i <= n; i++ {
		deck = append(deck, domain.Flashcard{
			ID:       fmt.Sprintf("c%d", i),
			Question: fmt.Sprintf("Question %d", i),
			Answer:   fmt.Sprintf("Answer %d", i),
			Topic:    fmt.Sprintf("topic-%d", i%2),
		})
	}
	return deck
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func startSession(t *testing.T, session *app.Session, deck domain.Deck, count int) app.StartInfo {
	t.Helper()
	info, err := session.Start(deck, count)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return info
}

func TestStreakScenario(t *testing.T) {
	ctx := context.Background()
	eval := &scriptedEvaluator{verdicts: []bool{true, true, false, true}}
	session := app.NewSession(eval, app.WithClock(fixedClock()))
	startSession(t, session, sampleDeck(4), 4)

	var streaks []int
	best := 0
	for i := 0; i < 4; i++ {
		attempt, err := session.Submit(ctx, "my answer")
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		streaks = append(streaks, attempt.Streak)
		if session.BestStreak() < best {
			t.Fatalf("best streak decreased from %d to %d", best, session.BestStreak())
		}
		best = session.BestStreak()
	}

	if !reflect.DeepEqual(streaks, []int{1, 2, 0, 1}) {
		t.Fatalf("unexpected streaks %v", streaks)
	}
	if session.State() != app.StateCompleted {
		t.Fatalf("expected completed, got %s", session.State())
	}

	res, err := session.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.BestStreak != 2 || res.Accuracy != 0.75 || res.Aborted {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Total != res.Correct+res.Wrong || res.BestStreak > res.Total {
		t.Fatalf("inconsistent counts %+v", res)
	}
	if res.Mode != domain.ModeFlashcard {
		t.Fatalf("expected flashcard mode by default, got %q", res.Mode)
	}
}

func TestStartUsesWholeDeckWhenCountExceedsIt(t *testing.T) {
	ctx := context.Background()
	eval := &scriptedEvaluator{verdicts: []bool{true, false, true}}
	session := app.NewSession(eval)

	info := startSession(t, session, sampleDeck(3), 5)
	if info.Requested != 5 || info.Selected != 3 || !info.Truncated {
		t.Fatalf("unexpected start info %+v", info)
	}

	for i := 0; i < 3; i++ {
		if session.State() != app.StateInProgress {
			t.Fatalf("session ended early at %d", i)
		}
		if _, err := session.Submit(ctx, "x"); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if session.State() != app.StateCompleted {
		t.Fatalf("expected completed, got %s", session.State())
	}

	res, err := session.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Total != 3 {
		t.Fatalf("expected 3 attempts, got %d", res.Total)
	}
}

func TestStartSelectsDistinctCards(t *testing.T) {
	deck := sampleDeck(10)
	for _, order := range []app.Order{app.OrderSequential, app.OrderRandom} {
		for count := 0; count <= 12; count++ {
			session := app.NewSession(&scriptedEvaluator{}, app.WithOrder(order), app.WithRand(rand.New(rand.NewSource(int64(count)))))
			info := startSession(t, session, deck, count)

			want := count
			if count <= 0 || count > len(deck) {
				want = len(deck)
			}
			if info.Selected != want {
				t.Fatalf("order %s count %d: selected %d, want %d", order, count, info.Selected, want)
			}

			seen := map[string]bool{}
			for i := 0; i < info.Selected; i++ {
				card, err := session.Current()
				if err != nil {
					t.Fatalf("current: %v", err)
				}
				if seen[card.ID] {
					t.Fatalf("card %s selected twice", card.ID)
				}
				if !deck.Contains(card.ID) {
					t.Fatalf("card %s not in deck", card.ID)
				}
				seen[card.ID] = true
				if _, err := session.Skip(); err != nil {
					t.Fatalf("skip: %v", err)
				}
			}
			if session.State() != app.StateCompleted {
				t.Fatalf("order %s count %d: expected completed", order, count)
			}
		}
	}
}

func TestSequentialOrderKeepsDeckOrder(t *testing.T) {
	session := app.NewSession(&scriptedEvaluator{})
	startSession(t, session, sampleDeck(3), 2)

	card, err := session.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if card.ID != "c1" {
		t.Fatalf("expected c1 first, got %s", card.ID)
	}
}

func TestStartRejectsEmptyDeck(t *testing.T) {
	session := app.NewSession(&scriptedEvaluator{})
	if _, err := session.Start(domain.Deck{}, 3); !errors.Is(err, domain.ErrEmptyDeck) {
		t.Fatalf("expected empty deck error, got %v", err)
	}
	if session.State() != app.StateNotStarted {
		t.Fatalf("expected not started, got %s", session.State())
	}
}

func TestOutOfOrderCallsFailWithoutMutation(t *testing.T) {
	ctx := context.Background()
	eval := &scriptedEvaluator{verdicts: []bool{true}}
	session := app.NewSession(eval)

	if _, err := session.Submit(ctx, "early"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("submit before start: %v", err)
	}
	if _, err := session.Result(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("result before start: %v", err)
	}
	if _, err := session.Skip(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("skip before start: %v", err)
	}
	if session.State() != app.StateNotStarted || eval.calls != 0 {
		t.Fatalf("session mutated: %s, %d calls", session.State(), eval.calls)
	}

	startSession(t, session, sampleDeck(1), 1)
	if _, err := session.Start(sampleDeck(1), 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second start: %v", err)
	}

	if _, err := session.Submit(ctx, "answer"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	before, err := session.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}

	if _, err := session.Submit(ctx, "late"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("submit after completion: %v", err)
	}
	after, err := session.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !reflect.DeepEqual(before, after) || eval.calls != 1 {
		t.Fatalf("completed session changed: %+v vs %+v (%d calls)", before, after, eval.calls)
	}
}

func TestBlankAnswerIsSkipped(t *testing.T) {
	eval := &scriptedEvaluator{}
	session := app.NewSession(eval)
	startSession(t, session, sampleDeck(1), 1)

	attempt, err := session.Submit(context.Background(), "   ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !attempt.Skipped || attempt.JudgedCorrect || eval.calls != 0 {
		t.Fatalf("expected unjudged skip, got %+v (%d calls)", attempt, eval.calls)
	}
}

func waitForCancel(ctx context.Context, _ domain.EvaluationRequest) (domain.Verdict, error) {
	<-ctx.Done()
	return domain.Verdict{}, ctx.Err()
}

func TestEvaluationTimeoutKeepsCardCurrent(t *testing.T) {
	session := app.NewSession(app.EvaluatorFunc(waitForCancel), app.WithEvaluationTimeout(10*time.Millisecond))
	startSession(t, session, sampleDeck(2), 2)

	if _, err := session.Submit(context.Background(), "answer"); !errors.Is(err, domain.ErrEvaluationTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if session.State() != app.StateInProgress {
		t.Fatalf("expected in progress, got %s", session.State())
	}
	if pos, total := session.Position(); pos != 0 || total != 2 {
		t.Fatalf("expected position 0/2, got %d/%d", pos, total)
	}

	// the user can still skip past the card
	if _, err := session.Skip(); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if pos, _ := session.Position(); pos != 1 {
		t.Fatalf("expected position 1, got %d", pos)
	}
}

func TestCallerDeadlineIsATimeout(t *testing.T) {
	session := app.NewSession(app.EvaluatorFunc(waitForCancel))
	startSession(t, session, sampleDeck(2), 2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := session.Submit(ctx, "answer"); !errors.Is(err, domain.ErrEvaluationTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if session.State() != app.StateInProgress {
		t.Fatalf("a deadline must not abort the session, got %s", session.State())
	}
	if _, err := session.Result(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected no result yet, got %v", err)
	}
	if pos, _ := session.Position(); pos != 0 {
		t.Fatalf("expected the same card to stay current, got %d", pos)
	}
}

func TestEvaluationFormatErrorIsRecoverable(t *testing.T) {
	calls := 0
	flaky := app.EvaluatorFunc(func(context.Context, domain.EvaluationRequest) (domain.Verdict, error) {
		calls++
		if calls == 1 {
			return domain.Verdict{}, fmt.Errorf("%w: missing is_correct", domain.ErrEvaluationFormat)
		}
		return domain.Verdict{Correct: true}, nil
	})
	session := app.NewSession(flaky)
	startSession(t, session, sampleDeck(1), 1)

	if _, err := session.Submit(context.Background(), "answer"); !errors.Is(err, domain.ErrEvaluationFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
	if session.State() != app.StateInProgress {
		t.Fatalf("expected in progress, got %s", session.State())
	}

	attempt, err := session.Submit(context.Background(), "answer")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !attempt.JudgedCorrect {
		t.Fatalf("expected correct retry, got %+v", attempt)
	}
}

func TestCanceledContextAbortsSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eval := app.EvaluatorFunc(func(ctx context.Context, req domain.EvaluationRequest) (domain.Verdict, error) {
		cancel()
		return waitForCancel(ctx, req)
	})
	session := app.NewSession(eval)
	startSession(t, session, sampleDeck(3), 3)
	if _, err := session.Skip(); err != nil {
		t.Fatalf("skip: %v", err)
	}

	if _, err := session.Submit(ctx, "answer"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if session.State() != app.StateCompleted {
		t.Fatalf("expected completed, got %s", session.State())
	}

	res, err := session.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !res.Aborted || res.Total != 1 {
		t.Fatalf("expected aborted result with one attempt, got %+v", res)
	}
}

func TestWithModeTagsResult(t *testing.T) {
	session := app.NewSession(&scriptedEvaluator{}, app.WithMode(domain.ModeChoice))
	startSession(t, session, sampleDeck(1), 1)
	if _, err := session.Skip(); err != nil {
		t.Fatalf("skip: %v", err)
	}
	res, err := session.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Mode != domain.ModeChoice {
		t.Fatalf("expected mcq mode, got %q", res.Mode)
	}
}

func TestAbort(t *testing.T) {
	session := app.NewSession(&scriptedEvaluator{})
	session.Abort()
	if session.State() != app.StateCompleted {
		t.Fatalf("expected completed, got %s", session.State())
	}
	res, err := session.Result()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Total != 0 || res.Accuracy != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}

	// aborting twice is harmless
	session.Abort()
	if session.State() != app.StateCompleted {
		t.Fatalf("expected completed, got %s", session.State())
	}
}

func TestParseOrder(t *testing.T) {
	if o, err := app.ParseOrder(""); err != nil || o != app.OrderSequential {
		t.Fatalf("empty order: %v %v", o, err)
	}
	if o, err := app.ParseOrder("Random"); err != nil || o != app.OrderRandom {
		t.Fatalf("Random: %v %v", o, err)
	}
	if _, err := app.ParseOrder("alphabetical"); err == nil {
		t.Fatalf("expected error for unknown order")
	}
}
