package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-engine/internal/interview"
)

type countingResetter struct{ n int }

func (r *countingResetter) Reset() { r.n++ }

func questions(texts ...string) []interview.Question {
	out := make([]interview.Question, len(texts))
	for i, t := range texts {
		out[i] = interview.Question{Index: i, Text: t}
	}
	return out
}

func TestSequencer_AdvanceAndDone(t *testing.T) {
	r := &countingResetter{}
	s := NewSequencer(questions("a", "b"), r)

	q, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "a", q.Text)
	assert.False(t, s.IsLast())

	next, done, err := s.Advance()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "b", next.Text)
	assert.True(t, s.IsLast())
	assert.Equal(t, 1, r.n)

	_, _, err = s.Advance()
	assert.ErrorIs(t, err, interview.ErrTransitionInFlight)

	s.EndTransition()
	next, done, err = s.Advance()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1, next.Index)
	assert.True(t, s.InTransition())
}

func TestSequencer_ConcurrentAdvanceMovesOnce(t *testing.T) {
	s := NewSequencer(questions("a", "b", "c"))

	var wg sync.WaitGroup
	var ok atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.Advance(); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, 1, s.Index())
}

func TestSequencer_HoldAndRestart(t *testing.T) {
	r := &countingResetter{}
	s := NewSequencer(questions("a", "b"), r)

	assert.True(t, s.Hold())
	assert.False(t, s.Hold())
	_, _, err := s.Advance()
	assert.ErrorIs(t, err, interview.ErrTransitionInFlight)
	assert.Equal(t, 0, r.n)

	s.Restart()
	assert.False(t, s.InTransition())
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, 1, r.n)
}

func TestSequencer_Empty(t *testing.T) {
	s := NewSequencer(nil)
	_, ok := s.Current()
	assert.False(t, ok)
	assert.False(t, s.IsLast())
	_, _, err := s.Advance()
	assert.ErrorIs(t, err, interview.ErrNoQuestions)
}

func TestFollowUp_Budget(t *testing.T) {
	f := NewFollowUp(5)
	res := interview.EvaluationResult{Score: 3, NeedsFollowUp: true, FollowUpQuestion: "Why?"}

	d := f.Decide(res, 7)
	assert.Equal(t, Decision{FollowUp: true, Question: "Why?", Count: 1}, d)
	d = f.Decide(res, 7)
	assert.Equal(t, 2, d.Count)

	d = f.Decide(res, 7)
	assert.False(t, d.FollowUp)
	assert.Equal(t, 0, f.Count())
}

func TestFollowUp_Conditions(t *testing.T) {
	f := NewFollowUp(2)
	cases := []struct {
		name string
		res  interview.EvaluationResult
	}{
		{"not requested", interview.EvaluationResult{Score: 3, FollowUpQuestion: "Why?"}},
		{"no question", interview.EvaluationResult{Score: 3, NeedsFollowUp: true}},
		{"passed", interview.EvaluationResult{Score: 7, NeedsFollowUp: true, FollowUpQuestion: "Why?"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, f.Decide(tc.res, 7).FollowUp)
		})
	}
}

func TestFollowUp_Disabled(t *testing.T) {
	f := NewFollowUp(0)
	d := f.Decide(interview.EvaluationResult{Score: 1, NeedsFollowUp: true, FollowUpQuestion: "Why?"}, 7)
	assert.False(t, d.FollowUp)
}

func TestGate_ClearsPendingOnlyOnSuccess(t *testing.T) {
	g := NewGate(nil)
	fail := errors.New("boom")

	err := g.Submit(context.Background(), interview.PendingAnswer{Text: "  my answer  "}, func(_ context.Context, a interview.PendingAnswer) error {
		assert.Equal(t, "my answer", a.Text)
		return fail
	})
	assert.ErrorIs(t, err, fail)
	p, ok := g.Pending()
	require.True(t, ok)
	assert.Equal(t, "my answer", p.Text)
	assert.False(t, g.Busy())

	err = g.Submit(context.Background(), p, func(context.Context, interview.PendingAnswer) error { return nil })
	require.NoError(t, err)
	_, ok = g.Pending()
	assert.False(t, ok)
}

func TestGate_RejectsConcurrentSubmission(t *testing.T) {
	g := NewGate(nil)
	inside := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = g.Submit(context.Background(), interview.PendingAnswer{Text: "first"}, func(context.Context, interview.PendingAnswer) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	called := false
	err := g.Submit(context.Background(), interview.PendingAnswer{Text: "second"}, func(context.Context, interview.PendingAnswer) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, interview.ErrSubmissionInFlight)
	assert.False(t, called)
	close(release)
}

func TestGate_PreconditionRunsUnderTheGate(t *testing.T) {
	g := NewGate(nil)
	g.SetPending(interview.PendingAnswer{Text: "live transcript"})
	stale := errors.New("stale")

	called := false
	err := g.SubmitWhen(context.Background(), interview.PendingAnswer{Text: "old answer"}, func() error {
		assert.True(t, g.Busy())
		return stale
	}, func(context.Context, interview.PendingAnswer) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, stale)
	assert.False(t, called)
	assert.False(t, g.Busy())

	p, ok := g.Pending()
	require.True(t, ok)
	assert.Equal(t, "live transcript", p.Text)
}

func TestGate_HoldBlocksSubmissions(t *testing.T) {
	g := NewGate(nil)
	require.True(t, g.Hold())
	assert.False(t, g.Hold())

	err := g.Submit(context.Background(), interview.PendingAnswer{Text: "answer"}, func(context.Context, interview.PendingAnswer) error { return nil })
	assert.ErrorIs(t, err, interview.ErrSubmissionInFlight)

	g.Release()
	assert.True(t, g.Hold())
}

func TestValidateAnswer(t *testing.T) {
	assert.NoError(t, validateAnswer("short"))
	assert.NoError(t, validateAnswer("a perfectly normal answer"))
	assert.Error(t, validateAnswer(strings.Repeat("x", 30)))
	assert.Error(t, validateAnswer(strings.Repeat("ab", maxAnswerLength)))
	assert.NoError(t, validateAnswer(strings.Repeat("ж", 5)+" привет мир"))
}

func TestBus_SubscribeAndUnsubscribe(t *testing.T) {
	b := NewBus()
	var got []EventType
	unsubscribe := b.Subscribe(ObserverFunc(func(e Event) { got = append(got, e.Type) }))

	b.Publish(Event{Type: EventTranscript})
	unsubscribe()
	b.Publish(Event{Type: EventError})

	assert.Equal(t, []EventType{EventTranscript}, got)
}
