package app_test

import (
	"context"
	"errors"
	"testing"

	"memory-palace/internal/app"
	"memory-palace/internal/domain"
	"memory-palace/internal/infra/memory"
)

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "Which organelle makes ATP?", Options: []string{"Nucleus", "Mitochondria", "Ribosome"}, AnswerIndex: 1,
			Explanation: "Mitochondria run cellular respiration", Topic: "cells"},
		{Prompt: "What does osmosis move?", Options: []string{"Water", "Glucose"}, AnswerIndex: 0, Topic: "transport"},
	}
}

func newChoiceService(t *testing.T) (*app.QuizService, *memory.ProgressStore) {
	t.Helper()
	progress := memory.NewProgressStore()
	service := app.NewQuizService(memory.NewDeckStore(), progress, &scriptedEvaluator{},
		app.WithQuestionStore(memory.NewQuestionStore()))
	return service, progress
}

func TestChoiceQuizRecordsModeAndJudgesByOption(t *testing.T) {
	ctx := context.Background()
	service, progress := newChoiceService(t)

	set, err := service.SaveQuestions(ctx, "bio-mcq", sampleQuestions())
	if err != nil {
		t.Fatalf("save questions: %v", err)
	}
	if len(set) != 2 || set[0].ID == "" || set[0].ID == set[1].ID {
		t.Fatalf("expected generated distinct ids, got %+v", set)
	}

	session, info, err := service.StartChoiceQuiz(ctx, "bio-mcq", 5, app.OrderSequential)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !info.Truncated || info.Selected != 2 {
		t.Fatalf("unexpected start info %+v", info)
	}

	if _, err := session.Submit(ctx, "Z"); !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected invalid choice, got %v", err)
	}
	if idx, _ := session.Position(); idx != 0 {
		t.Fatalf("invalid choice must not advance, at %d", idx)
	}

	attempt, err := session.Submit(ctx, "b")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !attempt.JudgedCorrect {
		t.Fatalf("expected option B to be correct: %+v", attempt)
	}
	attempt, err = session.Submit(ctx, "2")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if attempt.JudgedCorrect {
		t.Fatalf("expected option 2 to be wrong: %+v", attempt)
	}

	res, err := service.Finish(ctx, session)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if res.Mode != domain.ModeChoice || res.Correct != 1 || res.Total != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	history, _ := progress.History(ctx)
	if len(history) != 1 || history[0].Mode != domain.ModeChoice {
		t.Fatalf("expected one mcq record, got %+v", history)
	}
	if len(history[0].WeakTopics) != 1 || history[0].WeakTopics[0] != "transport" {
		t.Fatalf("unexpected weak topics %v", history[0].WeakTopics)
	}
}

func TestSaveQuestionsRejectsInvalidSet(t *testing.T) {
	service, _ := newChoiceService(t)
	bad := sampleQuestions()
	bad[1].AnswerIndex = 5
	if _, err := service.SaveQuestions(context.Background(), "bio-mcq", bad); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected invalid question, got %v", err)
	}
	if _, _, err := service.StartChoiceQuiz(context.Background(), "bio-mcq", 1, app.OrderRandom); !errors.Is(err, domain.ErrDeckNotFound) {
		t.Fatalf("nothing should have been saved, got %v", err)
	}
}

func TestChoiceQuizNeedsQuestionStore(t *testing.T) {
	service := app.NewQuizService(memory.NewDeckStore(), memory.NewProgressStore(), &scriptedEvaluator{})
	if _, _, err := service.StartChoiceQuiz(context.Background(), "bio-mcq", 1, app.OrderRandom); err == nil {
		t.Fatalf("expected an error without a question store")
	}
}

func TestFlashcardQuizIsTaggedFlashcard(t *testing.T) {
	ctx := context.Background()
	decks := memory.NewDeckStore()
	_ = decks.Save(ctx, "bio", sampleDeck(1))
	progress := memory.NewProgressStore()
	service := newTestService(decks, progress, &scriptedEvaluator{verdicts: []bool{true}})

	session, _, err := service.StartQuiz(ctx, "bio", 1, app.OrderSequential)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := session.Submit(ctx, "answer"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.Finish(ctx, session); err != nil {
		t.Fatalf("finish: %v", err)
	}
	history, _ := progress.History(ctx)
	if len(history) != 1 || history[0].Mode != domain.ModeFlashcard {
		t.Fatalf("expected flashcard record, got %+v", history)
	}
}
