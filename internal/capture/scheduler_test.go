package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-engine/internal/interview"
	"interview-engine/internal/ledger"
)

type fakeCamera struct {
	calls atomic.Int32
	err   error
}

func (c *fakeCamera) Snapshot(context.Context) ([]byte, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []byte("jpeg"), nil
}

type fakeRecorder struct {
	calls atomic.Int32
}

func (r *fakeRecorder) Flush(context.Context) ([]byte, error) {
	r.calls.Add(1)
	return []byte("webm"), nil
}

type memorySink struct {
	mu          sync.Mutex
	screenshots []interview.CaptureRecord
	audio       []interview.CaptureRecord
}

func (s *memorySink) RecordScreenshot(_ context.Context, rec interview.CaptureRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshots = append(s.screenshots, rec)
}

func (s *memorySink) RecordAudio(_ context.Context, rec interview.CaptureRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, rec)
}

func (s *memorySink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.screenshots), len(s.audio)
}

func run(t *testing.T, s *Scheduler, index func() int) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, index) }()
	return cancel, done
}

func TestScheduler_ScreenshotImmediatelyThenPeriodic(t *testing.T) {
	sink := &memorySink{}
	s := NewScheduler(&fakeCamera{}, nil, sink, Options{ScreenshotInterval: 20 * time.Millisecond})

	cancel, done := run(t, s, func() int { return 2 })
	require.Eventually(t, func() bool { n, _ := sink.counts(); return n >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 2, sink.screenshots[0].QuestionIndex)
	assert.Equal(t, "jpeg", string(sink.screenshots[0].Payload))
}

func TestScheduler_FirstScreenshotBeforeInterval(t *testing.T) {
	sink := &memorySink{}
	s := NewScheduler(&fakeCamera{}, nil, sink, Options{ScreenshotInterval: time.Hour})

	cancel, done := run(t, s, func() int { return 0 })
	require.Eventually(t, func() bool { n, _ := sink.counts(); return n == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_CameraErrorsAreNotFatal(t *testing.T) {
	cam := &fakeCamera{err: errors.New("camera busy")}
	sink := &memorySink{}
	s := NewScheduler(cam, nil, sink, Options{ScreenshotInterval: 10 * time.Millisecond})

	cancel, done := run(t, s, func() int { return 0 })
	require.Eventually(t, func() bool { return cam.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	n, _ := sink.counts()
	assert.Zero(t, n)
}

func TestScheduler_AudioSegmentsAndFinalFlush(t *testing.T) {
	rec := &fakeRecorder{}
	sink := &memorySink{}
	s := NewScheduler(nil, rec, sink, Options{AudioSegmentInterval: 15 * time.Millisecond})

	cancel, done := run(t, s, func() int { return 1 })
	require.Eventually(t, func() bool { _, n := sink.counts(); return n >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, before := sink.counts()
	assert.Equal(t, int(rec.calls.Load()), before)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Positive(t, sink.audio[0].Duration)
	assert.Equal(t, 1, sink.audio[0].QuestionIndex)
}

func TestScheduler_FeedsLedgerWithEviction(t *testing.T) {
	l := ledger.New(ledger.Options{Limits: ledger.Limits{MaxScreenshots: 2, MaxAudioRecordings: 2}})
	s := NewScheduler(&fakeCamera{}, nil, l, Options{ScreenshotInterval: 5 * time.Millisecond})

	cancel, done := run(t, s, func() int { return 0 })
	require.Eventually(t, func() bool { return l.Summary().Screenshots == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 2, l.Summary().Screenshots)
}
