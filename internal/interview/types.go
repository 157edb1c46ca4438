package interview

import "time"

// State is the lifecycle state of an interview session.
type State string

const (
	StateNotStarted State = "not_started"
	StateSetup      State = "setup"
	StateInProgress State = "in_progress"
	StateFollowUp   State = "follow_up"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Active reports whether answers are accepted in this state.
func (s State) Active() bool {
	return s == StateInProgress || s == StateFollowUp
}

const (
	DefaultThreshold = 7
	MinThreshold     = 1
	MaxThreshold     = 10
	MaxFollowUps     = 2
	MaxScore         = 10
)

// Session describes one interview run for a candidate.
type Session struct {
	CandidateID    string     `json:"candidateId"`
	SessionID      string     `json:"sessionId"`
	ScoreThreshold int        `json:"scoreThreshold"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	State          State      `json:"state"`
}

// Question is one entry of the ordered question sequence.
type Question struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// PendingAnswer is the answer waiting to be submitted.
type PendingAnswer struct {
	Text       string `json:"text"`
	IsFollowUp bool   `json:"isFollowUp"`
}

// EvaluationResult is the normalized output of the scoring collaborator.
type EvaluationResult struct {
	Score            int      `json:"score"`
	Feedback         []string `json:"feedback"`
	NeedsFollowUp    bool     `json:"needsFollowup"`
	FollowUpQuestion string   `json:"followUpQuestion,omitempty"`
}

// Interaction is the canonical record of one answered round.
type Interaction struct {
	Timestamp       time.Time `json:"timestamp"`
	QuestionIndex   int       `json:"questionIndex"`
	QuestionText    string    `json:"questionText"`
	AnswerText      string    `json:"answerText"`
	Score           int       `json:"score"`
	Feedback        []string  `json:"feedback"`
	IsFollowUp      bool      `json:"isFollowUp"`
	FollowUpCount   int       `json:"followUpCount"`
	Threshold       int       `json:"threshold"`
	PassedThreshold bool      `json:"passedThreshold"`
}

// TranscriptionSnapshot is a point-in-time copy of the live transcript.
type TranscriptionSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	QuestionIndex int       `json:"questionIndex"`
	Text          string    `json:"text"`
	IsFinal       bool      `json:"isFinal"`
	IsFollowUp    bool      `json:"isFollowUp"`
}

// CaptureRecord is a screenshot or an audio segment.
type CaptureRecord struct {
	Timestamp     time.Time     `json:"timestamp"`
	QuestionIndex int           `json:"questionIndex"`
	Payload       []byte        `json:"payload"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// Passed reports whether score meets the threshold. The bound is inclusive.
func Passed(score, threshold int) bool {
	return score >= threshold
}

// NormalizeThreshold falls back to the default when t is out of range.
func NormalizeThreshold(t int) int {
	if t < MinThreshold || t > MaxThreshold {
		return DefaultThreshold
	}
	return t
}
