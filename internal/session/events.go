package session

import (
	"sync"
	"time"

	"interview-engine/internal/interview"
	"interview-engine/internal/ledger"
	"interview-engine/internal/voice"
)

type EventType string

const (
	EventStateChanged        EventType = "state_changed"
	EventQuestionPresented   EventType = "question_presented"
	EventFollowUpIssued      EventType = "follow_up_issued"
	EventInteractionRecorded EventType = "interaction_recorded"
	EventTranscript          EventType = "transcript"
	EventVoiceState          EventType = "voice_state"
	EventError               EventType = "error"
	EventCompleted           EventType = "completed"
)

// Event is published to observers after the controller has released its
// locks. Data holds one of the payload types below.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

type StateChange struct {
	From interview.State `json:"from"`
	To   interview.State `json:"to"`
}

type QuestionPresented struct {
	Question      interview.Question `json:"question"`
	Prompt        string             `json:"prompt"`
	Total         int                `json:"total"`
	IsFollowUp    bool               `json:"isFollowUp"`
	FollowUpCount int                `json:"followUpCount,omitempty"`
}

type FollowUpIssued struct {
	QuestionIndex int    `json:"questionIndex"`
	Question      string `json:"question"`
	Count         int    `json:"count"`
}

type VoiceStateChange struct {
	From voice.State `json:"from"`
	To   voice.State `json:"to"`
}

type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Completed struct {
	Summary     ledger.Summary `json:"summary"`
	ClosingLine string         `json:"closingLine,omitempty"`
	Exported    bool           `json:"exported"`
}

// Observer receives session events.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Bus fans events out to subscribed observers.
type Bus struct {
	mu        sync.RWMutex
	observers map[uint64]Observer
	next      uint64
}

func NewBus() *Bus {
	return &Bus{observers: make(map[uint64]Observer)}
}

// Subscribe registers o and returns a function that removes it.
func (b *Bus) Subscribe(o Observer) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.observers[id] = o
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.observers, id)
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	observers := make([]Observer, 0, len(b.observers))
	for _, o := range b.observers {
		observers = append(observers, o)
	}
	b.mu.RUnlock()

	for _, o := range observers {
		o.OnEvent(e)
	}
}
