package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interview-engine/internal/config"
	"interview-engine/internal/interview"
	"interview-engine/internal/ledger"
	"interview-engine/internal/metrics"
	"interview-engine/internal/scoring"
	"interview-engine/internal/storage"
	"interview-engine/internal/voice"
)

// SetupResult is what the setup collaborator returns for a candidate.
type SetupResult struct {
	Questions []string
	Threshold int
	Greeting  string
}

// SetupProvider prepares the question list for a candidate.
type SetupProvider interface {
	Setup(ctx context.Context, candidateID string) (*SetupResult, error)
}

// CompletionRequest is handed to the Completer once a session ends.
type CompletionRequest struct {
	CandidateID  string                  `json:"candidate_id"`
	SessionID    string                  `json:"session_id"`
	Interactions []interview.Interaction `json:"interactions"`
	Metadata     storage.ExportMetadata  `json:"metadata"`
}

// Completer receives the finished session.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) error
}

// Capturer runs periodic media capture until ctx is cancelled.
type Capturer interface {
	Run(ctx context.Context, questionIndex func() int) error
}

// Voice is the part of the capture engine the controller drives.
type Voice interface {
	Listen(ctx context.Context) error
	Speak(ctx context.Context, text string) error
	Announce(ctx context.Context, text string) error
	Stop()
	Close() error
	State() voice.State
}

// VoiceFactory builds the capture engine around the controller's hooks.
type VoiceFactory func(voice.Hooks) Voice

// Deps are the controller's collaborators. Setup, Broker, Ledger and Voice
// are required.
type Deps struct {
	Setup     SetupProvider
	Broker    *scoring.Broker
	Ledger    *ledger.Ledger
	Voice     VoiceFactory
	Completer Completer
	Capture   Capturer
	Metrics   *metrics.Metrics
	Logger    *zap.SugaredLogger
	Clock     func() time.Time
}

// Settings are the per-session tunables.
type Settings struct {
	DefaultThreshold int
	MaxFollowUps     int
	ClosingLine      string
	SpeakQuestions   bool
	AutoMode         bool
	FollowUpDelay    time.Duration
	AdvanceDelay     time.Duration
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		DefaultThreshold: interview.NormalizeThreshold(cfg.GetScoreThreshold()),
		MaxFollowUps:     cfg.GetMaxFollowUps(),
		ClosingLine:      cfg.Interview.ClosingLine,
		SpeakQuestions:   cfg.Interview.SpeakQuestions,
		AutoMode:         cfg.Interview.AutoMode,
		FollowUpDelay:    cfg.Timing.FollowUpDelay,
		AdvanceDelay:     cfg.Timing.AdvanceDelay,
	}
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	Session          interview.Session        `json:"session"`
	Question         *interview.Question      `json:"question,omitempty"`
	TotalQuestions   int                      `json:"totalQuestions"`
	FollowUpCount    int                      `json:"followUpCount"`
	FollowUpQuestion string                   `json:"followUpQuestion,omitempty"`
	PendingAnswer    *interview.PendingAnswer `json:"pendingAnswer,omitempty"`
	VoiceState       voice.State              `json:"voiceState"`
	InTransition     bool                     `json:"inTransition"`
	Submitting       bool                     `json:"submitting"`
	Exported         bool                     `json:"exported"`
}

var transitions = map[interview.State][]interview.State{
	interview.StateNotStarted: {interview.StateSetup, interview.StateError},
	interview.StateSetup:      {interview.StateInProgress, interview.StateError},
	interview.StateInProgress: {interview.StateFollowUp, interview.StateCompleted, interview.StateError},
	interview.StateFollowUp:   {interview.StateInProgress, interview.StateCompleted, interview.StateError},
	interview.StateError:      {interview.StateSetup},
}

func canTransition(from, to interview.State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Controller drives one interview session: setup, the question loop with
// follow-ups, and completion.
type Controller struct {
	settings  Settings
	setup     SetupProvider
	broker    *scoring.Broker
	ledger    *ledger.Ledger
	completer Completer
	capturer  Capturer
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
	now       func() time.Time
	bus       *Bus

	followUps *FollowUp
	gate      *Gate
	voice     Voice
	prompts   sync.WaitGroup

	mu               sync.Mutex
	session          interview.Session
	seq              *Sequencer
	greeting         string
	followUpQuestion string
	originalAnswer   string
	listening        *turn
	preparing        bool
	completing       bool
	exported         bool
	root             context.Context
	cancel           context.CancelFunc
	captureCancel    context.CancelFunc
	captureDone      chan struct{}
}

func New(deps Deps, settings Settings) (*Controller, error) {
	switch {
	case deps.Setup == nil:
		return nil, errors.New("session: setup provider is required")
	case deps.Broker == nil:
		return nil, errors.New("session: scoring broker is required")
	case deps.Ledger == nil:
		return nil, errors.New("session: ledger is required")
	case deps.Voice == nil:
		return nil, errors.New("session: voice factory is required")
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewMetrics()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	settings.DefaultThreshold = interview.NormalizeThreshold(settings.DefaultThreshold)

	root, cancel := context.WithCancel(context.Background())
	c := &Controller{
		settings:  settings,
		setup:     deps.Setup,
		broker:    deps.Broker,
		ledger:    deps.Ledger,
		completer: deps.Completer,
		capturer:  deps.Capture,
		metrics:   m,
		log:       log,
		now:       now,
		bus:       NewBus(),
		followUps: NewFollowUp(settings.MaxFollowUps),
		gate:      NewGate(log),
		session:   interview.Session{State: interview.StateNotStarted},
		root:      root,
		cancel:    cancel,
	}
	c.voice = deps.Voice(c.voiceHooks())
	return c, nil
}

// Subscribe registers an observer for session events.
func (c *Controller) Subscribe(o Observer) func() {
	return c.bus.Subscribe(o)
}

// Setup fetches the candidate's questions and prepares a fresh session.
// Allowed from not_started and error.
func (c *Controller) Setup(ctx context.Context, candidateID string) error {
	candidateID = strings.TrimSpace(candidateID)

	c.mu.Lock()
	state := c.session.State
	if c.preparing || (state != interview.StateNotStarted && state != interview.StateError) {
		c.mu.Unlock()
		return fmt.Errorf("setup from %s: %w", state, interview.ErrInvalidTransition)
	}
	c.preparing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.preparing = false
		c.mu.Unlock()
	}()

	var (
		res       *SetupResult
		questions []interview.Question
		err       error
	)
	if candidateID == "" {
		err = errors.New("candidate id is required")
	} else {
		res, err = c.setup.Setup(ctx, candidateID)
		if err == nil {
			questions = buildQuestions(res)
			if len(questions) == 0 {
				err = interview.ErrNoQuestions
			}
		}
	}
	if err != nil {
		serr := &interview.SetupError{CandidateID: candidateID, Err: err}
		c.log.Errorf("Setup failed for candidate %s: %v", candidateID, err)
		c.mu.Lock()
		c.session.CandidateID = candidateID
		c.mu.Unlock()
		_ = c.transition(interview.StateError)
		c.emitError("setup", serr)
		return serr
	}

	threshold := c.settings.DefaultThreshold
	if res.Threshold != 0 {
		threshold = interview.NormalizeThreshold(res.Threshold)
	}
	s := interview.Session{
		CandidateID:    candidateID,
		SessionID:      uuid.New().String(),
		ScoreThreshold: threshold,
		State:          state,
	}

	c.mu.Lock()
	c.session = s
	c.seq = NewSequencer(questions, c.followUps, c.gate)
	c.greeting = strings.TrimSpace(res.Greeting)
	c.followUpQuestion = ""
	c.originalAnswer = ""
	c.completing = false
	c.exported = false
	c.mu.Unlock()

	c.followUps.Reset()
	c.gate.Reset()
	c.ledger.Begin(s, questions)
	if err := c.transition(interview.StateSetup); err != nil {
		return err
	}
	c.log.Infof("Session %s prepared for candidate %s: %d questions, threshold %d",
		s.SessionID, candidateID, len(questions), threshold)
	return nil
}

func buildQuestions(res *SetupResult) []interview.Question {
	if res == nil {
		return nil
	}
	questions := make([]interview.Question, 0, len(res.Questions))
	for _, text := range res.Questions {
		if text = strings.TrimSpace(text); text != "" {
			questions = append(questions, interview.Question{Index: len(questions), Text: text})
		}
	}
	return questions
}

// Start begins the interview at the first question. The greeting and the
// first prompt are presented in the background; see Wait.
func (c *Controller) Start(context.Context) error {
	c.mu.Lock()
	if c.session.State != interview.StateSetup {
		state := c.session.State
		c.mu.Unlock()
		return fmt.Errorf("start from %s: %w", state, interview.ErrInvalidTransition)
	}
	c.cancel()
	c.root, c.cancel = context.WithCancel(context.Background())
	root := c.root
	start := c.now()
	c.session.StartTime = start
	c.listening = nil
	seq := c.seq
	greeting := c.greeting
	c.mu.Unlock()

	seq.Restart()
	c.ledger.MarkStarted(start)
	if err := c.transition(interview.StateInProgress); err != nil {
		return err
	}
	c.metrics.IncrementSessionsStarted()
	c.startCapture(root, seq)

	seq.Hold()
	q, _ := seq.Current()
	c.metrics.IncrementQuestionsAsked()
	p := prompt{question: q, text: questionPrompt(q), total: seq.Len()}
	if greeting != "" {
		p.text = greeting + " " + p.text
	}
	c.goPrompt(func() { c.present(root, seq, p, 0) })
	return nil
}

// SubmitAnswer evaluates an answer to the current question or follow-up.
// Only one submission is processed at a time; the next prompt is presented
// in the background once the decision has been made. An answer whose prompt
// has been replaced by the time the gate is taken fails with
// ErrTransitionInFlight.
func (c *Controller) SubmitAnswer(ctx context.Context, text string) error {
	c.mu.Lock()
	seq := c.seq
	c.mu.Unlock()

	var expected turn
	if seq != nil {
		expected = c.currentTurn(seq)
	}
	return c.submit(ctx, seq, expected, text)
}

// turn identifies the prompt an answer responds to.
type turn struct {
	index    int
	round    int
	followUp bool
}

func (c *Controller) currentTurn(seq *Sequencer) turn {
	c.mu.Lock()
	followUp := c.session.State == interview.StateFollowUp
	c.mu.Unlock()
	return turn{index: seq.Index(), round: c.followUps.Count(), followUp: followUp}
}

// checkTurn fails unless the session still waits for an answer to expected.
func (c *Controller) checkTurn(seq *Sequencer, expected turn) error {
	c.mu.Lock()
	state := c.session.State
	c.mu.Unlock()

	if !state.Active() {
		return fmt.Errorf("submit answer in %s: %w", state, interview.ErrInvalidTransition)
	}
	if seq.InTransition() {
		return interview.ErrTransitionInFlight
	}
	if c.currentTurn(seq) != expected {
		return fmt.Errorf("answer for question %d round %d is stale: %w", expected.index+1, expected.round, interview.ErrTransitionInFlight)
	}
	return nil
}

func (c *Controller) submit(ctx context.Context, seq *Sequencer, expected turn, text string) error {
	if err := c.checkTurn(seq, expected); err != nil {
		return err
	}

	var next func()
	answer := interview.PendingAnswer{Text: text, IsFollowUp: expected.followUp}
	err := c.gate.SubmitWhen(ctx, answer, func() error {
		return c.checkTurn(seq, expected)
	}, func(ctx context.Context, a interview.PendingAnswer) error {
		n, err := c.evaluate(ctx, seq, expected, a)
		next = n
		return err
	})

	switch {
	case err == nil:
	case errors.Is(err, interview.ErrSubmissionInFlight):
		c.metrics.IncrementSubmissionsDropped()
		return err
	case errors.Is(err, interview.ErrTransitionInFlight):
		c.metrics.IncrementSubmissionsDropped()
		return err
	case errors.Is(err, interview.ErrInvalidTransition):
		return err
	case errors.Is(err, interview.ErrEmptyAnswer), errors.Is(err, interview.ErrInvalidAnswer):
		c.log.Infof("Answer rejected: %v", err)
		c.voice.Stop()
		if c.settings.AutoMode {
			c.listen(c.rootContext())
		}
		return err
	default:
		c.voice.Stop()
		c.emitError("evaluation", err)
		return err
	}

	c.voice.Stop()
	if next != nil {
		c.goPrompt(next)
	}
	return nil
}

// evaluate scores a, records the interaction and decides between a
// follow-up and an advance. It returns the prompt to present next.
func (c *Controller) evaluate(ctx context.Context, seq *Sequencer, t turn, a interview.PendingAnswer) (func(), error) {
	c.mu.Lock()
	s := c.session
	followUpQuestion := c.followUpQuestion
	originalAnswer := c.originalAnswer
	root := c.root
	c.mu.Unlock()

	q, _ := seq.Current()
	round := 0
	questionText := q.Text

	var (
		res interview.EvaluationResult
		err error
	)
	if a.IsFollowUp {
		round = t.round
		questionText = followUpQuestion
		res, err = c.broker.EvaluateFollowUp(ctx, s.CandidateID, q, originalAnswer, followUpQuestion, a.Text, round)
	} else {
		res, err = c.broker.Evaluate(ctx, s.CandidateID, q, a.Text)
	}
	if err != nil {
		c.metrics.IncrementEvaluationErrors()
		return nil, err
	}
	c.metrics.IncrementAnswersSubmitted()

	in := interview.Interaction{
		Timestamp:       c.now(),
		QuestionIndex:   q.Index,
		QuestionText:    questionText,
		AnswerText:      a.Text,
		Score:           res.Score,
		Feedback:        res.Feedback,
		IsFollowUp:      a.IsFollowUp,
		FollowUpCount:   round,
		Threshold:       s.ScoreThreshold,
		PassedThreshold: interview.Passed(res.Score, s.ScoreThreshold),
	}
	if err := c.ledger.RecordInteraction(ctx, in); err != nil {
		return nil, err
	}
	c.log.Infof("Question %d round %d scored %d/%d (threshold %d)",
		q.Index+1, round, res.Score, interview.MaxScore, s.ScoreThreshold)
	c.emit(EventInteractionRecorded, in)

	d := c.followUps.Decide(res, s.ScoreThreshold)
	if d.FollowUp {
		if !seq.Hold() {
			return nil, interview.ErrTransitionInFlight
		}
		c.mu.Lock()
		c.followUpQuestion = d.Question
		c.listening = nil
		if !a.IsFollowUp {
			c.originalAnswer = a.Text
		}
		c.mu.Unlock()

		_ = c.transition(interview.StateFollowUp)
		c.metrics.IncrementFollowUpsIssued()
		c.emit(EventFollowUpIssued, FollowUpIssued{QuestionIndex: q.Index, Question: d.Question, Count: d.Count})
		p := prompt{question: q, text: d.Question, total: seq.Len(), followUp: d.Count}
		return func() { c.present(root, seq, p, c.settings.FollowUpDelay) }, nil
	}

	next, done, err := seq.Advance()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.followUpQuestion = ""
	c.originalAnswer = ""
	c.listening = nil
	c.mu.Unlock()

	if done {
		return func() {
			defer seq.EndTransition()
			if err := c.complete(root); err != nil {
				c.log.Warnf("Automatic completion failed: %v", err)
			}
		}, nil
	}

	_ = c.transition(interview.StateInProgress)
	c.metrics.IncrementQuestionsAsked()
	p := prompt{question: next, text: questionPrompt(next), total: seq.Len()}
	return func() { c.present(root, seq, p, c.settings.AdvanceDelay) }, nil
}

// Listen starts a manual listen cycle.
func (c *Controller) Listen(ctx context.Context) error {
	c.mu.Lock()
	state := c.session.State
	seq := c.seq
	c.mu.Unlock()

	if !state.Active() {
		return fmt.Errorf("listen in %s: %w", state, interview.ErrInvalidTransition)
	}
	if seq.InTransition() {
		return interview.ErrTransitionInFlight
	}
	return c.listen(ctx)
}

// StopListening ends the current listen cycle without submitting.
func (c *Controller) StopListening() {
	c.voice.Stop()
}

// Complete ends the session. It is valid only on the final question and
// is idempotent. It fails with ErrSubmissionInFlight while an answer is
// being evaluated so that answer always reaches the export.
func (c *Controller) Complete(ctx context.Context) error {
	if !c.gate.Hold() {
		return interview.ErrSubmissionInFlight
	}
	defer c.gate.Release()
	return c.complete(ctx)
}

func (c *Controller) complete(ctx context.Context) error {
	c.mu.Lock()
	if c.completing {
		c.mu.Unlock()
		return nil
	}
	state := c.session.State
	seq := c.seq
	if !state.Active() {
		c.mu.Unlock()
		return fmt.Errorf("complete from %s: %w", state, interview.ErrInvalidTransition)
	}
	if seq == nil || !seq.IsLast() {
		c.mu.Unlock()
		return interview.ErrNotFinalQuestion
	}
	c.completing = true
	end := c.now()
	c.session.EndTime = &end
	sid := c.session.SessionID
	c.mu.Unlock()

	closing := c.settings.ClosingLine
	if closing != "" && c.settings.SpeakQuestions {
		if err := c.voice.Announce(ctx, closing); err != nil {
			c.log.Warnf("Could not speak closing line: %v", err)
		}
	}

	c.stopCapture()
	_ = c.voice.Close()
	c.ledger.MarkEnded(end)
	if err := c.ledger.Flush(ctx); err != nil {
		c.log.Warnf("Session %s flushed with errors: %v", sid, err)
	}
	_ = c.transition(interview.StateCompleted)
	c.metrics.IncrementSessionsCompleted()

	exported := true
	if err := c.export(ctx); err != nil {
		exported = false
		c.log.Warnf("Export failed, ledger kept for retry: %v", err)
		c.emitError("export", err)
	}

	c.log.Infof("Session %s completed", sid)
	c.emit(EventCompleted, Completed{Summary: c.ledger.Summary(), ClosingLine: closing, Exported: exported})

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	cancel()
	return nil
}

// Abort moves the session to the error state and releases capture.
func (c *Controller) Abort(ctx context.Context, cause error) error {
	c.mu.Lock()
	state := c.session.State
	if state == interview.StateError {
		c.mu.Unlock()
		return nil
	}
	if !canTransition(state, interview.StateError) {
		c.mu.Unlock()
		return fmt.Errorf("abort from %s: %w", state, interview.ErrInvalidTransition)
	}
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.stopCapture()
	c.voice.Stop()
	if state != interview.StateNotStarted {
		if err := c.ledger.Flush(ctx); err != nil {
			c.log.Warnf("Flush after abort failed: %v", err)
		}
	}
	if err := c.transition(interview.StateError); err != nil {
		return err
	}
	if cause == nil {
		cause = errors.New("aborted")
	}
	c.log.Warnf("Session aborted: %v", cause)
	c.emitError("aborted", cause)
	return nil
}

// Export retries handing the completed session to the Completer.
func (c *Controller) Export(ctx context.Context) error {
	c.mu.Lock()
	state := c.session.State
	c.mu.Unlock()
	if state != interview.StateCompleted {
		return fmt.Errorf("export in %s: %w", state, interview.ErrInvalidTransition)
	}
	return c.export(ctx)
}

func (c *Controller) export(ctx context.Context) error {
	if c.completer == nil {
		return nil
	}
	rec := c.ledger.Export()
	err := c.completer.Complete(ctx, CompletionRequest{
		CandidateID:  rec.CandidateID,
		SessionID:    rec.SessionID,
		Interactions: rec.Interactions,
		Metadata:     rec.Metadata,
	})
	if err != nil {
		return fmt.Errorf("export session %s: %w", rec.SessionID, err)
	}
	c.mu.Lock()
	c.exported = true
	c.mu.Unlock()
	return nil
}

// Wait blocks until background prompts have been presented.
func (c *Controller) Wait() {
	c.prompts.Wait()
}

func (c *Controller) Summary() ledger.Summary {
	return c.ledger.Summary()
}

func (c *Controller) ExportRecord() *storage.ExportRecord {
	return c.ledger.Export()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		Session:          c.session,
		FollowUpQuestion: c.followUpQuestion,
		Exported:         c.exported,
	}
	seq := c.seq
	c.mu.Unlock()

	if seq != nil {
		if q, ok := seq.Current(); ok {
			snap.Question = &q
		}
		snap.TotalQuestions = seq.Len()
		snap.InTransition = seq.InTransition()
	}
	if p, ok := c.gate.Pending(); ok {
		snap.PendingAnswer = &p
	}
	snap.FollowUpCount = c.followUps.Count()
	snap.VoiceState = c.voice.State()
	snap.Submitting = c.gate.Busy()
	return snap
}

type prompt struct {
	question interview.Question
	text     string
	total    int
	followUp int
}

func questionPrompt(q interview.Question) string {
	return fmt.Sprintf("Question %d: %s", q.Index+1, q.Text)
}

// present shows p after delay and releases the transition guard once the
// prompt is out.
func (c *Controller) present(ctx context.Context, seq *Sequencer, p prompt, delay time.Duration) {
	defer seq.EndTransition()
	if !sleep(ctx, delay) {
		return
	}
	c.bindListen(seq)

	c.emit(EventQuestionPresented, QuestionPresented{
		Question:      p.question,
		Prompt:        p.text,
		Total:         p.total,
		IsFollowUp:    p.followUp > 0,
		FollowUpCount: p.followUp,
	})

	if c.settings.SpeakQuestions {
		err := c.voice.Speak(ctx, p.text)
		switch {
		case err == nil:
			return
		case errors.Is(err, context.Canceled), errors.Is(err, voice.ErrClosed):
			return
		}
		c.log.Warnf("Could not speak prompt: %v", err)
	}
	if c.settings.AutoMode {
		c.listen(ctx)
	}
}

func (c *Controller) listen(ctx context.Context) error {
	c.mu.Lock()
	seq := c.seq
	c.mu.Unlock()
	if seq != nil {
		c.bindListen(seq)
	}
	err := c.voice.Listen(ctx)
	if err != nil && !errors.Is(err, voice.ErrClosed) {
		c.metrics.IncrementCaptureErrors()
		c.emitError("capture", err)
	}
	return err
}

func (c *Controller) goPrompt(fn func()) {
	c.prompts.Add(1)
	go func() {
		defer c.prompts.Done()
		fn()
	}()
}

func (c *Controller) startCapture(parent context.Context, seq *Sequencer) {
	if c.capturer == nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	c.mu.Lock()
	c.captureCancel = cancel
	c.captureDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		if err := c.capturer.Run(ctx, seq.Index); err != nil {
			c.log.Warnf("Media capture stopped: %v", err)
			c.metrics.IncrementCaptureErrors()
			c.emitError("capture", &interview.CaptureError{Reason: "media", Err: err})
		}
	}()
}

func (c *Controller) stopCapture() {
	c.mu.Lock()
	cancel, done := c.captureCancel, c.captureDone
	c.captureCancel, c.captureDone = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Controller) voiceHooks() voice.Hooks {
	return voice.Hooks{
		OnTranscript: c.onTranscript,
		OnAnswer:     c.onAnswer,
		OnError: func(err error) {
			c.metrics.IncrementCaptureErrors()
			c.emitError("capture", err)
		},
		OnStateChange: func(from, to voice.State) {
			c.emit(EventVoiceState, VoiceStateChange{From: from, To: to})
		},
		CanSubmit: c.canSubmit,
	}
}

// bindListen ties listen cycles to the prompt currently awaiting an answer.
// The binding is cleared whenever the prompt changes.
func (c *Controller) bindListen(seq *Sequencer) {
	t := c.currentTurn(seq)
	c.mu.Lock()
	c.listening = &t
	c.mu.Unlock()
}

// boundTurn returns the prompt the running listen cycle belongs to. ok is
// false when the cycle was started for a prompt that has since been
// answered.
func (c *Controller) boundTurn() (seq *Sequencer, t turn, ok bool) {
	c.mu.Lock()
	seq, bound := c.seq, c.listening
	c.mu.Unlock()
	if seq == nil || bound == nil {
		return nil, turn{}, false
	}
	return seq, *bound, true
}

func (c *Controller) onTranscript(t voice.Transcript) {
	seq, bound, ok := c.boundTurn()
	if !ok || seq.InTransition() || c.currentTurn(seq) != bound {
		c.log.Debugf("Dropping transcript update from a previous listen cycle")
		return
	}

	c.ledger.RecordTranscription(interview.TranscriptionSnapshot{
		Timestamp:     c.now(),
		QuestionIndex: bound.index,
		Text:          t.Text,
		IsFinal:       t.IsFinal,
		IsFollowUp:    bound.followUp,
	})
	c.gate.SetPending(interview.PendingAnswer{Text: t.Text, IsFollowUp: bound.followUp})
	c.emit(EventTranscript, t)
}

func (c *Controller) onAnswer(text string) {
	seq, bound, ok := c.boundTurn()
	if !ok {
		c.log.Debugf("Auto-submitted answer dropped: its prompt was already answered")
		return
	}
	err := c.submit(c.rootContext(), seq, bound, text)
	switch {
	case err == nil:
	case errors.Is(err, interview.ErrSubmissionInFlight), errors.Is(err, interview.ErrTransitionInFlight):
		c.log.Debugf("Auto-submitted answer dropped: %v", err)
	default:
		c.log.Warnf("Auto-submitted answer failed: %v", err)
	}
}

func (c *Controller) canSubmit() bool {
	seq, bound, ok := c.boundTurn()
	return ok && !seq.InTransition() && !c.gate.Busy() && c.currentTurn(seq) == bound
}

func (c *Controller) rootContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

// transition moves the session to another state and publishes the change.
func (c *Controller) transition(to interview.State) error {
	c.mu.Lock()
	from := c.session.State
	if from == to {
		c.mu.Unlock()
		return nil
	}
	if !canTransition(from, to) {
		c.mu.Unlock()
		return fmt.Errorf("%s -> %s: %w", from, to, interview.ErrInvalidTransition)
	}
	c.session.State = to
	sid := c.session.SessionID
	c.mu.Unlock()

	c.log.Debugf("Session %s: %s -> %s", sid, from, to)
	c.emit(EventStateChanged, StateChange{From: from, To: to})
	return nil
}

func (c *Controller) emit(t EventType, data any) {
	c.mu.Lock()
	sid := c.session.SessionID
	c.mu.Unlock()
	c.bus.Publish(Event{Type: t, SessionID: sid, Time: c.now(), Data: data})
}

func (c *Controller) emitError(kind string, err error) {
	c.emit(EventError, ErrorInfo{Kind: kind, Message: err.Error()})
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
