package session

import (
	"sync"

	"interview-engine/internal/interview"
)

// Resetter is notified whenever the sequencer moves to another question.
type Resetter interface {
	Reset()
}

// Sequencer walks the ordered question list. A transition guard keeps
// advances from overlapping; it is held from the moment a transition starts
// until the next prompt has been presented.
type Sequencer struct {
	mu            sync.Mutex
	questions     []interview.Question
	index         int
	transitioning bool
	resetters     []Resetter
}

func NewSequencer(questions []interview.Question, resetters ...Resetter) *Sequencer {
	return &Sequencer{
		questions: append([]interview.Question(nil), questions...),
		resetters: resetters,
	}
}

// Current returns the active question. ok is false for an empty sequence.
func (s *Sequencer) Current() (interview.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return interview.Question{}, false
	}
	return s.questions[s.index], true
}

func (s *Sequencer) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

func (s *Sequencer) IsLast() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions) > 0 && s.index == len(s.questions)-1
}

func (s *Sequencer) Questions() []interview.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interview.Question(nil), s.questions...)
}

// Restart rewinds to the first question and releases the guard.
func (s *Sequencer) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
	s.transitioning = false
	s.resetLocked()
}

// Advance takes the transition guard and moves to the next question. When
// the current question is the last one, done is true, the index stays put
// and the guard stays held until EndTransition.
func (s *Sequencer) Advance() (next interview.Question, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transitioning {
		return interview.Question{}, false, interview.ErrTransitionInFlight
	}
	if len(s.questions) == 0 {
		return interview.Question{}, false, interview.ErrNoQuestions
	}
	s.transitioning = true
	s.resetLocked()

	if s.index >= len(s.questions)-1 {
		return s.questions[s.index], true, nil
	}
	s.index++
	return s.questions[s.index], false, nil
}

// Hold takes the transition guard without moving. It reports false when a
// transition is already in flight.
func (s *Sequencer) Hold() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitioning {
		return false
	}
	s.transitioning = true
	return true
}

func (s *Sequencer) EndTransition() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitioning = false
}

func (s *Sequencer) InTransition() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitioning
}

func (s *Sequencer) resetLocked() {
	for _, r := range s.resetters {
		r.Reset()
	}
}
