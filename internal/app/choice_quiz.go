package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"memory-palace/internal/domain"
	"memory-palace/internal/evaluator/choice"
)

// QuestionStore persists multiple-choice question sets. Save replaces the
// previous set atomically.
type QuestionStore interface {
	Load(ctx context.Context, source string) (domain.QuestionSet, error)
	Save(ctx context.Context, source string, set domain.QuestionSet) error
}

var errNoQuestionStore = errors.New("no question store configured")

// WithQuestionStore enables multiple-choice quizzes backed by store.
func WithQuestionStore(store QuestionStore) ServiceOption {
	return func(s *QuizService) { s.questions = store }
}

// SaveQuestions replaces the question set at source. Missing ids are
// generated; any invalid question rejects the whole set.
func (s *QuizService) SaveQuestions(ctx context.Context, source string, questions []domain.Question) (domain.QuestionSet, error) {
	if s.questions == nil {
		return nil, errNoQuestionStore
	}
	set := make(domain.QuestionSet, 0, len(questions))
	for _, q := range questions {
		if q.ID == "" {
			id, err := newCardID()
			if err != nil {
				return nil, err
			}
			q.ID = id
		}
		set = append(set, q)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if err := s.questions.Save(ctx, source, set); err != nil {
		return nil, err
	}
	s.logger.Info("question set saved", zap.String("source", source), zap.Int("questions", len(set)))
	return set, nil
}

// StartChoiceQuiz starts a multiple-choice session over the question set at
// source. Answers are judged locally by option; the result is tagged
// domain.ModeChoice.
func (s *QuizService) StartChoiceQuiz(ctx context.Context, source string, count int, order Order) (*Session, StartInfo, error) {
	if s.questions == nil {
		return nil, StartInfo{}, errNoQuestionStore
	}
	set, err := s.questions.Load(ctx, source)
	if err != nil {
		return nil, StartInfo{}, err
	}
	return s.startSession(set.Deck(), count, order, choice.New(), domain.ModeChoice)
}
