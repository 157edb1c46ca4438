package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"interview-engine/internal/interview"
)

// Hooks are invoked without the engine lock held.
type Hooks struct {
	// OnTranscript receives every transcript update of a cycle.
	OnTranscript func(Transcript)
	// OnAnswer receives a transcript the engine decided to submit.
	OnAnswer func(text string)
	// OnError receives capture errors that ended a cycle.
	OnError func(error)
	// OnStateChange is called after each state transition.
	OnStateChange func(from, to State)
	// CanSubmit vetoes auto-submission, e.g. while a question transition
	// is in flight. Nil means always allowed.
	CanSubmit func() bool
}

type Options struct {
	SilenceWindow   time.Duration
	MinAnswerLength int
	ListenDelay     time.Duration
	AutoMode        bool
}

// Engine owns the microphone capture lifecycle. It knows nothing about
// questions or scoring.
type Engine struct {
	recognizer  Recognizer
	synthesizer Synthesizer
	player      Player
	hooks       Hooks
	opts        Options
	log         *zap.SugaredLogger

	root       context.Context
	rootCancel context.CancelFunc
	speakMu    sync.Mutex
	wg         sync.WaitGroup

	mu     sync.Mutex
	state  State
	cycle  *cycle
	nextID uint64
	closed bool
}

// cycle is one listen attempt, from Listen until submission, silence
// without enough text, an error, or Stop.
type cycle struct {
	id            uint64
	ctx           context.Context
	cancel        context.CancelFunc
	attemptCancel context.CancelFunc
	final         strings.Builder
	interim       string
	timer         *time.Timer
	restarted     bool
	done          bool
}

func (c *cycle) text() string {
	f := strings.TrimSpace(c.final.String())
	i := strings.TrimSpace(c.interim)
	switch {
	case f == "":
		return i
	case i == "":
		return f
	default:
		return f + " " + i
	}
}

// New creates an idle engine. synthesizer may be nil.
func New(recognizer Recognizer, synthesizer Synthesizer, player Player, opts Options, hooks Hooks, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.SilenceWindow <= 0 {
		opts.SilenceWindow = 3 * time.Second
	}
	if opts.MinAnswerLength <= 0 {
		opts.MinAnswerLength = 10
	}
	root, cancel := context.WithCancel(context.Background())
	return &Engine{
		recognizer:  recognizer,
		synthesizer: synthesizer,
		player:      player,
		hooks:       hooks,
		opts:        opts,
		log:         log,
		root:        root,
		rootCancel:  cancel,
		state:       StateIdle,
	}
}

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Listen starts a listen cycle. It is a no-op while already listening and
// fails with ErrSpeaking during prompt playback. The cycle outlives ctx's
// cancellation; it ends through submission, Stop or Close.
func (e *Engine) Listen(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	switch e.state {
	case StateSpeaking:
		e.mu.Unlock()
		return ErrSpeaking
	case StateListening:
		e.mu.Unlock()
		return nil
	}

	e.nextID++
	cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(e.root, cancel)
	c := &cycle{id: e.nextID, ctx: cctx, cancel: func() { stop(); cancel() }}
	e.cycle = c
	e.wg.Add(1)
	from := e.setStateLocked(StateListening)
	e.mu.Unlock()
	e.notifyState(from, StateListening)

	events, err := e.attempt(c)
	if err != nil {
		e.wg.Done()
		e.mu.Lock()
		c.done = true
		e.teardownLocked(c)
		from := e.setStateLocked(StateError)
		e.mu.Unlock()
		e.notifyState(from, StateError)
		return &interview.CaptureError{Reason: "start", Err: err}
	}

	e.log.Debugf("Listen cycle %d started", c.id)
	go e.run(c, events)
	return nil
}

// attempt opens a recognition stream for the cycle, cancelling the
// previous stream if any.
func (e *Engine) attempt(c *cycle) (<-chan RecognitionEvent, error) {
	actx, acancel := context.WithCancel(c.ctx)
	e.mu.Lock()
	if c.attemptCancel != nil {
		c.attemptCancel()
	}
	c.attemptCancel = acancel
	e.mu.Unlock()

	events, err := e.recognizer.Recognize(actx)
	if err != nil {
		acancel()
		return nil, err
	}
	return events, nil
}

// run consumes the recognition stream. The terminal action runs after the
// goroutine has left the wait group so hooks may call Close.
func (e *Engine) run(c *cycle, events <-chan RecognitionEvent) {
	after := e.consume(c, events)
	e.wg.Done()
	if after != nil {
		after()
	}
}

func (e *Engine) consume(c *cycle, events <-chan RecognitionEvent) func() {
	for {
		select {
		case <-c.ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return func() { e.endOfStream(c) }
			}
			if ev.Err == nil {
				e.handleResult(c, ev)
				continue
			}
			next, after := e.handleError(c, ev.Err)
			if after != nil {
				return after
			}
			if next != nil {
				events = next
			}
		}
	}
}

func (e *Engine) handleResult(c *cycle, ev RecognitionEvent) {
	e.mu.Lock()
	if c.done || e.cycle != c {
		e.mu.Unlock()
		return
	}
	if ev.IsFinal {
		if c.final.Len() > 0 {
			c.final.WriteByte(' ')
		}
		c.final.WriteString(strings.TrimSpace(ev.Text))
		c.interim = ""
	} else {
		c.interim = ev.Text
	}
	text := c.text()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(e.opts.SilenceWindow, func() { e.silence(c) })
	e.mu.Unlock()

	if text != "" && e.hooks.OnTranscript != nil {
		e.hooks.OnTranscript(Transcript{Text: text, IsFinal: false})
	}
}

// silence fires when no transcript update arrived within the window.
func (e *Engine) silence(c *cycle) {
	e.mu.Lock()
	if c.done || e.cycle != c {
		e.mu.Unlock()
		return
	}
	text := c.text()
	if utf8.RuneCountInString(text) < e.opts.MinAnswerLength {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if !e.canSubmit() {
		e.log.Debugf("Auto-submit suppressed for cycle %d: transition in flight", c.id)
		return
	}
	e.finish(c, true)
}

func (e *Engine) endOfStream(c *cycle) {
	e.mu.Lock()
	if c.done || e.cycle != c {
		e.mu.Unlock()
		return
	}
	submit := utf8.RuneCountInString(c.text()) >= e.opts.MinAnswerLength
	e.mu.Unlock()

	e.finish(c, submit && e.canSubmit())
}

// handleError returns either a replacement stream or a terminal action.
func (e *Engine) handleError(c *cycle, rerr *RecognitionError) (<-chan RecognitionEvent, func()) {
	switch rerr.Kind {
	case ErrorAborted:
		return nil, nil

	case ErrorNoSpeech:
		e.log.Debugf("No speech detected in cycle %d", c.id)
		return nil, func() { e.finish(c, false) }

	case ErrorNetwork:
		e.mu.Lock()
		if c.done || e.cycle != c {
			e.mu.Unlock()
			return nil, func() {}
		}
		retry := !c.restarted
		c.restarted = true
		e.mu.Unlock()

		if retry {
			e.log.Infof("Network error in cycle %d, restarting recognition", c.id)
			events, err := e.attempt(c)
			if err == nil {
				return events, nil
			}
			return nil, func() { e.fail(c, ErrorNetwork, err) }
		}
	}

	return nil, func() { e.fail(c, rerr.Kind, rerr) }
}

// finish ends the cycle; with submit it hands the text to OnAnswer.
func (e *Engine) finish(c *cycle, submit bool) {
	e.mu.Lock()
	if c.done || e.cycle != c {
		e.mu.Unlock()
		return
	}
	c.done = true
	e.teardownLocked(c)
	text := c.text()
	to := StateIdle
	if submit {
		to = StateProcessing
	}
	from := e.setStateLocked(to)
	e.mu.Unlock()

	e.notifyState(from, to)
	if text != "" && e.hooks.OnTranscript != nil {
		e.hooks.OnTranscript(Transcript{Text: text, IsFinal: true})
	}
	if submit && e.hooks.OnAnswer != nil {
		e.log.Debugf("Cycle %d submitting %d characters", c.id, len(text))
		e.hooks.OnAnswer(text)
	}
}

func (e *Engine) fail(c *cycle, kind ErrorKind, err error) {
	e.mu.Lock()
	if c.done || e.cycle != c {
		e.mu.Unlock()
		return
	}
	c.done = true
	e.teardownLocked(c)
	from := e.setStateLocked(StateError)
	e.mu.Unlock()

	e.log.Warnf("Capture failed in cycle %d: %v", c.id, err)
	e.notifyState(from, StateError)
	if e.hooks.OnError != nil {
		e.hooks.OnError(&interview.CaptureError{Reason: string(kind), Err: err})
	}
}

// Stop ends the active cycle without submitting.
func (e *Engine) Stop() {
	e.mu.Lock()
	c := e.cycle
	if c != nil && !c.done {
		c.done = true
		e.teardownLocked(c)
	}
	e.cycle = nil
	from := e.state
	if e.state == StateListening || e.state == StateProcessing {
		e.state = StateIdle
	}
	to := e.state
	e.mu.Unlock()

	e.notifyState(from, to)
}

// Speak plays a prompt. Listening is stopped first so the prompt is never
// transcribed. In auto mode listening resumes once playback is done.
func (e *Engine) Speak(ctx context.Context, text string) error {
	return e.speak(ctx, text, e.opts.AutoMode)
}

// Announce plays a prompt without resuming listening afterwards.
func (e *Engine) Announce(ctx context.Context, text string) error {
	return e.speak(ctx, text, false)
}

func (e *Engine) speak(ctx context.Context, text string, resume bool) error {
	e.speakMu.Lock()
	defer e.speakMu.Unlock()

	e.Stop()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	from := e.setStateLocked(StateSpeaking)
	e.mu.Unlock()
	e.notifyState(from, StateSpeaking)

	var audio []byte
	if e.synthesizer != nil {
		a, err := e.synthesizer.Synthesize(ctx, text)
		if err != nil {
			e.log.Warnf("Speech synthesis failed, continuing without audio: %v", err)
		} else {
			audio = a
		}
	}

	playErr := e.player.Play(ctx, text, audio)

	e.mu.Lock()
	from = e.state
	if e.state == StateSpeaking {
		e.state = StateIdle
	}
	to := e.state
	e.mu.Unlock()
	e.notifyState(from, to)

	if playErr != nil {
		return fmt.Errorf("play prompt: %w", playErr)
	}

	if !resume {
		return nil
	}
	if e.opts.ListenDelay > 0 {
		t := time.NewTimer(e.opts.ListenDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.root.Done():
			return ErrClosed
		case <-t.C:
		}
	}
	return e.Listen(ctx)
}

// Close stops capture and releases the recognition stream. Safe to call
// more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.Stop()
	e.rootCancel()
	e.wg.Wait()
	return nil
}

func (e *Engine) teardownLocked(c *cycle) {
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.attemptCancel != nil {
		c.attemptCancel()
	}
	c.cancel()
}

func (e *Engine) setStateLocked(to State) State {
	from := e.state
	e.state = to
	return from
}

func (e *Engine) notifyState(from, to State) {
	if from == to || e.hooks.OnStateChange == nil {
		return
	}
	e.hooks.OnStateChange(from, to)
}

func (e *Engine) canSubmit() bool {
	return e.hooks.CanSubmit == nil || e.hooks.CanSubmit()
}
