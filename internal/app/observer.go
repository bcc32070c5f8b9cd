package app

import "time"

// Observer receives session lifecycle signals, typically for metrics.
type Observer interface {
	SessionStarted()
	SessionCompleted(aborted bool)
	AttemptRecorded(correct, skipped bool)
	EvaluationObserved(d time.Duration)
	EvaluationFailed(kind string)
}

// NopObserver discards every signal.
type NopObserver struct{}

func (NopObserver) SessionStarted()                  {}
func (NopObserver) SessionCompleted(bool)            {}
func (NopObserver) AttemptRecorded(bool, bool)       {}
func (NopObserver) EvaluationObserved(time.Duration) {}
func (NopObserver) EvaluationFailed(string)          {}
