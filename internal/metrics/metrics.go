package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu                 sync.RWMutex
	sessionsStarted    int64
	sessionsCompleted  int64
	questionsAsked     int64
	followUpsIssued    int64
	answersSubmitted   int64
	submissionsDropped int64
	evaluationErrors   int64
	captureErrors      int64
	apiCallsTotal      int64
	apiCallsSuccessful int64
	lastUpdateTime     time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	SessionsStarted    int64     `json:"sessions_started"`
	SessionsCompleted  int64     `json:"sessions_completed"`
	QuestionsAsked     int64     `json:"questions_asked"`
	FollowUpsIssued    int64     `json:"follow_ups_issued"`
	AnswersSubmitted   int64     `json:"answers_submitted"`
	SubmissionsDropped int64     `json:"submissions_dropped"`
	EvaluationErrors   int64     `json:"evaluation_errors"`
	CaptureErrors      int64     `json:"capture_errors"`
	APICallsTotal      int64     `json:"api_calls_total"`
	APICallsSuccessful int64     `json:"api_calls_successful"`
	LastUpdateTime     time.Time `json:"last_update_time"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		lastUpdateTime: time.Now(),
	}
}

func (m *Metrics) bump(counter *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
	m.lastUpdateTime = time.Now()
}

func (m *Metrics) IncrementSessionsStarted()    { m.bump(&m.sessionsStarted) }
func (m *Metrics) IncrementSessionsCompleted()  { m.bump(&m.sessionsCompleted) }
func (m *Metrics) IncrementQuestionsAsked()     { m.bump(&m.questionsAsked) }
func (m *Metrics) IncrementFollowUpsIssued()    { m.bump(&m.followUpsIssued) }
func (m *Metrics) IncrementAnswersSubmitted()   { m.bump(&m.answersSubmitted) }
func (m *Metrics) IncrementSubmissionsDropped() { m.bump(&m.submissionsDropped) }
func (m *Metrics) IncrementEvaluationErrors()   { m.bump(&m.evaluationErrors) }
func (m *Metrics) IncrementCaptureErrors()      { m.bump(&m.captureErrors) }

func (m *Metrics) IncrementAPICall(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiCallsTotal++
	if success {
		m.apiCallsSuccessful++
	}
	m.lastUpdateTime = time.Now()
}

func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		SessionsStarted:    m.sessionsStarted,
		SessionsCompleted:  m.sessionsCompleted,
		QuestionsAsked:     m.questionsAsked,
		FollowUpsIssued:    m.followUpsIssued,
		AnswersSubmitted:   m.answersSubmitted,
		SubmissionsDropped: m.submissionsDropped,
		EvaluationErrors:   m.evaluationErrors,
		CaptureErrors:      m.captureErrors,
		APICallsTotal:      m.apiCallsTotal,
		APICallsSuccessful: m.apiCallsSuccessful,
		LastUpdateTime:     m.lastUpdateTime,
	}
}

// SuccessRate is the share of successful collaborator calls, in percent.
func (s Snapshot) SuccessRate() float64 {
	if s.APICallsTotal == 0 {
		return 0
	}
	return float64(s.APICallsSuccessful) / float64(s.APICallsTotal) * 100
}
