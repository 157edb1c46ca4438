package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"

	"interview-engine/internal/interview"
)

const maxAnswerLength = 4000

// Gate lets at most one answer submission through at a time. The pending
// answer is kept until its submission has been processed.
type Gate struct {
	busy atomic.Bool
	log  *zap.SugaredLogger

	mu      sync.Mutex
	pending *interview.PendingAnswer
}

func NewGate(log *zap.SugaredLogger) *Gate {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gate{log: log}
}

// SetPending replaces the pending answer, typically with the latest
// transcript.
func (g *Gate) SetPending(a interview.PendingAnswer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = &a
}

func (g *Gate) Pending() (interview.PendingAnswer, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return interview.PendingAnswer{}, false
	}
	return *g.pending, true
}

// Reset clears the pending answer.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
}

// Busy reports whether a submission is being processed.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}

// Hold takes the gate without submitting an answer. It reports false while
// a submission is in flight.
func (g *Gate) Hold() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *Gate) Release() {
	g.busy.Store(false)
}

// Submit runs process for a. It fails with ErrSubmissionInFlight while
// another submission holds the gate, and with ErrEmptyAnswer or
// ErrInvalidAnswer before process is called. The gate is released on every
// path; the pending answer is cleared only when process succeeds.
func (g *Gate) Submit(ctx context.Context, a interview.PendingAnswer, process func(context.Context, interview.PendingAnswer) error) error {
	return g.SubmitWhen(ctx, a, nil, process)
}

// SubmitWhen is Submit with a precondition. ready runs once the gate is held
// and before the answer is validated; its error is returned as is and
// leaves the pending answer untouched.
func (g *Gate) SubmitWhen(ctx context.Context, a interview.PendingAnswer, ready func() error, process func(context.Context, interview.PendingAnswer) error) error {
	if !g.Hold() {
		g.log.Debugf("Dropping answer submission: another one is in flight")
		return interview.ErrSubmissionInFlight
	}
	defer g.Release()

	if ready != nil {
		if err := ready(); err != nil {
			return err
		}
	}

	a.Text = strings.TrimSpace(a.Text)
	if a.Text == "" {
		return interview.ErrEmptyAnswer
	}
	if err := validateAnswer(a.Text); err != nil {
		return fmt.Errorf("%w: %v", interview.ErrInvalidAnswer, err)
	}

	g.SetPending(a)
	if err := process(ctx, a); err != nil {
		return err
	}
	g.Reset()
	return nil
}

func validateAnswer(text string) error {
	n := utf8.RuneCountInString(text)
	if n > maxAnswerLength {
		return fmt.Errorf("answer too long (maximum %d characters)", maxAnswerLength)
	}

	// spam guard: one character making up most of the text
	if n > 10 {
		first, _ := utf8.DecodeRuneInString(text)
		if strings.Count(text, string(first)) > n*8/10 {
			return errors.New("answer contains too many repeated characters")
		}
	}
	return nil
}
