package domain

import "time"

// Difficulty grades how hard a flashcard is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Flashcard is a question/answer pair with an optional memory hook.
type Flashcard struct {
	ID         string     `json:"id" yaml:"id" validate:"required"`
	Question   string     `json:"question" yaml:"question" validate:"required"`
	Answer     string     `json:"answer" yaml:"answer" validate:"required"`
	Mnemonic   string     `json:"mnemonic,omitempty" yaml:"mnemonic,omitempty"`
	Topic      string     `json:"topic,omitempty" yaml:"topic,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty" yaml:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	// Options turns the card into a multiple-choice question; Answer is then one of them.
	Options []string `json:"options,omitempty" yaml:"options,omitempty" validate:"omitempty,min=2,dive,required"`
}

// ConceptKey names the concept a card tests: its topic, or the question when untagged.
func (f Flashcard) ConceptKey() string {
	if f.Topic != "" {
		return f.Topic
	}
	return f.Question
}

// EvaluationRequest is what gets sent to an answer evaluator.
type EvaluationRequest struct {
	Question       string
	ExpectedAnswer string
	UserAnswer     string
	Mnemonic       string
	Options        []string
}

// Verdict is the evaluator's judgement of one answer.
type Verdict struct {
	Correct  bool   `json:"is_correct"`
	Feedback string `json:"feedback"`
	Score    int    `json:"score"`
}

// QuizAttempt records one answered (or skipped) flashcard.
type QuizAttempt struct {
	FlashcardID   string    `json:"flashcard_id"`
	Question      string    `json:"question"`
	Topic         string    `json:"topic,omitempty"`
	UserAnswer    string    `json:"user_answer"`
	JudgedCorrect bool      `json:"judged_correct"`
	Feedback      string    `json:"feedback"`
	Skipped       bool      `json:"skipped,omitempty"`
	Streak        int       `json:"streak"` // running streak after this attempt
	Timestamp     time.Time `json:"timestamp"`
}

// QuizSessionResult is the immutable summary of a finished session.
type QuizSessionResult struct {
	SessionID   string        `json:"session_id"`
	Total       int           `json:"total"`
	Correct     int           `json:"correct"`
	Wrong       int           `json:"wrong"`
	Accuracy    float64       `json:"accuracy"`
	BestStreak  int           `json:"best_streak"`
	Attempts    []QuizAttempt `json:"attempts"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Aborted     bool          `json:"aborted,omitempty"`
	Mode        Mode          `json:"mode,omitempty"`
}

// NewQuizSessionResult summarizes attempts; counts and accuracy are always derived.
func NewQuizSessionResult(sessionID string, attempts []QuizAttempt, startedAt, completedAt time.Time, aborted bool) QuizSessionResult {
	res := QuizSessionResult{
		SessionID:   sessionID,
		Total:       len(attempts),
		Attempts:    append([]QuizAttempt(nil), attempts...),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Aborted:     aborted,
	}
	for _, a := range attempts {
		if a.JudgedCorrect {
			res.Correct++
		} else {
			res.Wrong++
		}
		if a.Streak > res.BestStreak {
			res.BestStreak = a.Streak
		}
	}
	res.Accuracy = Ratio(res.Correct, res.Total)
	return res
}

// Duration is the wall time spent in the session.
func (r QuizSessionResult) Duration() time.Duration {
	if r.CompletedAt.Before(r.StartedAt) {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Ratio returns part/total, or 0 when total is zero.
func Ratio(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}
