package capture

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"interview-engine/internal/interview"
)

// Camera grabs a still frame of the candidate.
type Camera interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// Recorder hands over the audio captured since the previous Flush. An
// empty payload means nothing was recorded.
type Recorder interface {
	Flush(ctx context.Context) ([]byte, error)
}

// Sink stores capture records. The session ledger implements it.
type Sink interface {
	RecordScreenshot(ctx context.Context, rec interview.CaptureRecord)
	RecordAudio(ctx context.Context, rec interview.CaptureRecord)
}

type Options struct {
	ScreenshotInterval   time.Duration
	AudioSegmentInterval time.Duration
	// FinalFlushTimeout bounds the last audio flush after Run is cancelled.
	FinalFlushTimeout time.Duration
	Logger            *zap.SugaredLogger
	Clock             func() time.Time
}

// Scheduler takes a screenshot right away and then on every interval, and
// cuts the audio recording into segments. Capture failures are logged and
// do not stop the loops.
type Scheduler struct {
	camera   Camera
	recorder Recorder
	sink     Sink
	opts     Options
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewScheduler creates a scheduler. camera and recorder may be nil to
// disable that kind of capture.
func NewScheduler(camera Camera, recorder Recorder, sink Sink, opts Options) *Scheduler {
	if opts.ScreenshotInterval <= 0 {
		opts.ScreenshotInterval = 30 * time.Second
	}
	if opts.AudioSegmentInterval <= 0 {
		opts.AudioSegmentInterval = 30 * time.Second
	}
	if opts.FinalFlushTimeout <= 0 {
		opts.FinalFlushTimeout = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Scheduler{camera: camera, recorder: recorder, sink: sink, opts: opts, log: log, now: now}
}

// Run captures until ctx is cancelled. questionIndex tags each record.
func (s *Scheduler) Run(ctx context.Context, questionIndex func() int) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.camera != nil {
		g.Go(func() error { return s.screenshots(gctx, questionIndex) })
	}
	if s.recorder != nil {
		g.Go(func() error { return s.audio(gctx, questionIndex) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) screenshots(ctx context.Context, questionIndex func() int) error {
	s.takeScreenshot(ctx, questionIndex())

	ticker := time.NewTicker(s.opts.ScreenshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.takeScreenshot(ctx, questionIndex())
		}
	}
}

func (s *Scheduler) takeScreenshot(ctx context.Context, index int) {
	payload, err := s.camera.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warnf("Screenshot failed: %v", err)
		}
		return
	}
	if len(payload) == 0 {
		return
	}
	s.sink.RecordScreenshot(ctx, interview.CaptureRecord{
		Timestamp:     s.now(),
		QuestionIndex: index,
		Payload:       payload,
	})
}

func (s *Scheduler) audio(ctx context.Context, questionIndex func() int) error {
	ticker := time.NewTicker(s.opts.AudioSegmentInterval)
	defer ticker.Stop()
	last := s.now()

	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FinalFlushTimeout)
			s.flushAudio(fctx, questionIndex(), &last)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			s.flushAudio(ctx, questionIndex(), &last)
		}
	}
}

func (s *Scheduler) flushAudio(ctx context.Context, index int, last *time.Time) {
	payload, err := s.recorder.Flush(ctx)
	if err != nil {
		s.log.Warnf("Audio segment capture failed: %v", err)
		return
	}
	if len(payload) == 0 {
		return
	}
	now := s.now()
	s.sink.RecordAudio(ctx, interview.CaptureRecord{
		Timestamp:     now,
		QuestionIndex: index,
		Payload:       payload,
		Duration:      now.Sub(*last),
	})
	*last = now
}
