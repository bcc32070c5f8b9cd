package domain

import (
	"sort"
	"time"
)

// ProgressRecord is one finished session in the persisted history.
type ProgressRecord struct {
	SessionID   string         `json:"session_id"`
	Date        time.Time      `json:"date"`
	Total       int            `json:"total"`
	Correct     int            `json:"correct"`
	Accuracy    float64        `json:"accuracy"`
	WeakTopics  []string       `json:"weak_topics"`
	TopicMisses map[string]int `json:"topic_misses,omitempty"`
	Streak      int            `json:"streak"`
	Mode        Mode           `json:"mode,omitempty"`
}

// NewProgressRecord derives a history record from a session result.
// Weak topics are the concepts of every incorrect attempt.
func NewProgressRecord(res QuizSessionResult, date time.Time) ProgressRecord {
	misses := make(map[string]int)
	for _, a := range res.Attempts {
		if a.JudgedCorrect {
			continue
		}
		key := a.Topic
		if key == "" {
			key = a.Question
		}
		misses[key]++
	}
	weak := make([]string, 0, len(misses))
	for topic := range misses {
		weak = append(weak, topic)
	}
	sort.Strings(weak)

	return ProgressRecord{
		SessionID:   res.SessionID,
		Date:        date,
		Total:       res.Total,
		Correct:     res.Correct,
		Accuracy:    Ratio(res.Correct, res.Total),
		WeakTopics:  weak,
		TopicMisses: misses,
		Streak:      res.BestStreak,
		Mode:        res.Mode.OrDefault(),
	}
}

// misses returns the per-topic incorrect counts, treating records without
// counts as one miss per weak topic.
func (r ProgressRecord) misses() map[string]int {
	if len(r.TopicMisses) > 0 {
		return r.TopicMisses
	}
	out := make(map[string]int, len(r.WeakTopics))
	for _, t := range r.WeakTopics {
		out[t]++
	}
	return out
}

// TopicStat is a weak topic ranked across the whole history.
type TopicStat struct {
	Topic    string    `json:"topic"`
	Misses   int       `json:"misses"`
	LastSeen time.Time `json:"last_seen"`
	// Sessions is the number of sessions the topic was missed in.
	Sessions int `json:"sessions"`

	lastIndex int
}

// Aggregate summarizes all recorded sessions.
type Aggregate struct {
	Sessions      int         `json:"sessions"`
	TotalAttempts int         `json:"total_attempts"`
	Correct       int         `json:"correct"`
	Accuracy      float64     `json:"accuracy"`
	WeakTopics    []TopicStat `json:"weak_topics"`
	StreakTrend   []int       `json:"streak_trend"`
	Level         Level       `json:"level"`
	// SessionsByMode counts sessions per quiz mode.
	SessionsByMode map[Mode]int `json:"sessions_by_mode"`
}

// Empty reports whether no session has been recorded.
func (a Aggregate) Empty() bool { return a.Sessions == 0 }

// TopWeakTopics returns at most n of the highest ranked weak topics.
func (a Aggregate) TopWeakTopics(n int) []TopicStat {
	if n <= 0 || n >= len(a.WeakTopics) {
		return a.WeakTopics
	}
	return a.WeakTopics[:n]
}

// Priority ranks how urgently a weak topic needs review.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// MissRate is the share of all sessions in which the topic was missed.
func (a Aggregate) MissRate(t TopicStat) float64 {
	return Ratio(t.Sessions, a.Sessions)
}

// PriorityFor maps a miss rate in [0,1] to a review priority.
func PriorityFor(missRate float64) Priority {
	switch {
	case missRate > 0.5:
		return PriorityHigh
	case missRate > 0.25:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// AggregateHistory computes overall accuracy, ranked weak topics and the
// streak trend. Records must be in append order; later records count as
// more recent when breaking ties.
func AggregateHistory(records []ProgressRecord) Aggregate {
	agg := Aggregate{
		Sessions:       len(records),
		StreakTrend:    make([]int, 0, len(records)),
		SessionsByMode: make(map[Mode]int),
	}
	topics := make(map[string]*TopicStat)

	for i, r := range records {
		agg.TotalAttempts += r.Total
		agg.Correct += r.Correct
		agg.StreakTrend = append(agg.StreakTrend, r.Streak)
		agg.SessionsByMode[r.Mode.OrDefault()]++

		for topic, n := range r.misses() {
			if n <= 0 {
				continue
			}
			st, ok := topics[topic]
			if !ok {
				st = &TopicStat{Topic: topic}
				topics[topic] = st
			}
			st.Misses += n
			st.Sessions++
			st.lastIndex = i
			st.LastSeen = r.Date
		}
	}
	agg.Accuracy = Ratio(agg.Correct, agg.TotalAttempts)
	agg.Level = LevelFor(agg.Accuracy)

	agg.WeakTopics = make([]TopicStat, 0, len(topics))
	for _, st := range topics {
		agg.WeakTopics = append(agg.WeakTopics, *st)
	}
	sort.Slice(agg.WeakTopics, func(i, j int) bool {
		a, b := agg.WeakTopics[i], agg.WeakTopics[j]
		if a.Misses != b.Misses {
			return a.Misses > b.Misses
		}
		if a.lastIndex != b.lastIndex {
			return a.lastIndex > b.lastIndex
		}
		return a.Topic < b.Topic
	})
	return agg
}

// Level is a coarse mastery label derived from overall accuracy.
type Level string

const (
	LevelExpert     Level = "Expert"
	LevelAdvanced   Level = "Advanced"
	LevelProficient Level = "Proficient"
	LevelDeveloping Level = "Developing"
	LevelLearning   Level = "Learning"
)

// LevelFor maps an accuracy in [0,1] to a level.
func LevelFor(accuracy float64) Level {
	switch {
	case accuracy >= 0.9:
		return LevelExpert
	case accuracy >= 0.8:
		return LevelAdvanced
	case accuracy >= 0.7:
		return LevelProficient
	case accuracy >= 0.6:
		return LevelDeveloping
	default:
		return LevelLearning
	}
}
