package session

import (
	"sync"

	"interview-engine/internal/interview"
)

// Decision is the outcome of FollowUp.Decide.
type Decision struct {
	FollowUp bool
	Question string
	// Count is the follow-up round being issued, starting at 1.
	Count int
}

// FollowUp tracks how many follow-up rounds the current question has used.
type FollowUp struct {
	mu    sync.Mutex
	max   int
	count int
}

// NewFollowUp caps limit at interview.MaxFollowUps.
func NewFollowUp(limit int) *FollowUp {
	return &FollowUp{max: min(interview.MaxFollowUps, max(0, limit))}
}

// Decide issues a follow-up when the evaluator asked for one, offered a
// question, the score is below threshold and the budget is not spent.
// Otherwise the counter is cleared and the caller advances.
func (f *FollowUp) Decide(res interview.EvaluationResult, threshold int) Decision {
	f.mu.Lock()
	defer f.mu.Unlock()

	if res.NeedsFollowUp && res.FollowUpQuestion != "" && res.Score < threshold && f.count < f.max {
		f.count++
		return Decision{FollowUp: true, Question: res.FollowUpQuestion, Count: f.count}
	}
	f.count = 0
	return Decision{}
}

func (f *FollowUp) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *FollowUp) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count = 0
}
