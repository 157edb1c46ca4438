package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"interview-engine/internal/interview"
	"interview-engine/internal/storage"
)

// Limits bounds the capture records kept per session. Interactions and
// transcriptions are never evicted.
type Limits struct {
	MaxScreenshots     int
	MaxAudioRecordings int
}

type Options struct {
	// Store mirrors records as they arrive. Optional.
	Store storage.Store
	// Results receives the export file on Flush. Optional.
	Results *storage.Results
	Limits  Limits
	Logger  *zap.SugaredLogger
	Clock   func() time.Time
}

type roundKey struct {
	questionIndex int
	followUpCount int
}

type captureEntry struct {
	seq    uint64
	record interview.CaptureRecord
}

// Ledger is the append-only capture record of one session.
type Ledger struct {
	mu      sync.RWMutex
	log     *zap.SugaredLogger
	store   storage.Store
	results *storage.Results
	limits  Limits
	now     func() time.Time

	session        interview.Session
	questions      []interview.Question
	interactions   []interview.Interaction
	recorded       map[roundKey]struct{}
	transcriptions []interview.TranscriptionSnapshot
	screenshots    []captureEntry
	audio          []captureEntry
	seq            uint64
}

func New(opts Options) *Ledger {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		log:      log,
		store:    opts.Store,
		results:  opts.Results,
		limits:   opts.Limits,
		now:      now,
		recorded: make(map[roundKey]struct{}),
	}
}

// Begin resets the ledger for a freshly prepared session.
func (l *Ledger) Begin(s interview.Session, questions []interview.Question) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.session = s
	l.questions = append([]interview.Question(nil), questions...)
	l.interactions = nil
	l.recorded = make(map[roundKey]struct{})
	l.transcriptions = nil
	l.screenshots = nil
	l.audio = nil
}

// MarkStarted stamps the session start time.
func (l *Ledger) MarkStarted(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session.StartTime = t
}

// MarkEnded stamps the session end time.
func (l *Ledger) MarkEnded(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session.EndTime = &t
}

// RecordInteraction appends an interaction. A second record for the same
// (questionIndex, followUpCount) is rejected.
func (l *Ledger) RecordInteraction(ctx context.Context, in interview.Interaction) error {
	l.mu.Lock()
	k := roundKey{in.QuestionIndex, in.FollowUpCount}
	if _, ok := l.recorded[k]; ok {
		l.mu.Unlock()
		return fmt.Errorf("question %d round %d: %w", in.QuestionIndex, in.FollowUpCount, interview.ErrDuplicateInteraction)
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = l.now()
	}
	in.Feedback = append([]string(nil), in.Feedback...)
	l.recorded[k] = struct{}{}
	l.interactions = append(l.interactions, in)
	pos := len(l.interactions)
	sid := l.session.SessionID
	l.mu.Unlock()

	l.mirror(ctx, storage.Key{"session", sid, "interaction", seqKey(uint64(pos))}, in)
	return nil
}

// RecordTranscription stores a transcript snapshot. A non-final snapshot
// for the same question is superseded; final snapshots are kept.
func (l *Ledger) RecordTranscription(t interview.TranscriptionSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.Timestamp.IsZero() {
		t.Timestamp = l.now()
	}
	kept := l.transcriptions[:0]
	for _, s := range l.transcriptions {
		if s.QuestionIndex == t.QuestionIndex && !s.IsFinal {
			continue
		}
		kept = append(kept, s)
	}
	l.transcriptions = append(kept, t)
}

// RecordScreenshot appends a screenshot, evicting the oldest beyond the limit.
func (l *Ledger) RecordScreenshot(ctx context.Context, rec interview.CaptureRecord) {
	l.recordCapture(ctx, "screenshot", &l.screenshots, l.limits.MaxScreenshots, rec)
}

// RecordAudio appends an audio segment, evicting the oldest beyond the limit.
func (l *Ledger) RecordAudio(ctx context.Context, rec interview.CaptureRecord) {
	l.recordCapture(ctx, "audio", &l.audio, l.limits.MaxAudioRecordings, rec)
}

func (l *Ledger) recordCapture(ctx context.Context, kind string, list *[]captureEntry, limit int, rec interview.CaptureRecord) {
	l.mu.Lock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}
	l.seq++
	entry := captureEntry{seq: l.seq, record: rec}
	*list = append(*list, entry)

	var evicted []captureEntry
	if limit > 0 && len(*list) > limit {
		n := len(*list) - limit
		evicted = append(evicted, (*list)[:n]...)
		*list = append([]captureEntry(nil), (*list)[n:]...)
	}
	sid := l.session.SessionID
	l.mu.Unlock()

	if len(evicted) > 0 {
		l.log.Debugf("Evicted %d %s record(s) for session %s", len(evicted), kind, sid)
	}
	if l.store == nil {
		return
	}
	l.mirror(ctx, storage.Key{"session", sid, kind, seqKey(entry.seq)}, rec)
	for _, e := range evicted {
		if err := l.store.Delete(ctx, storage.Key{"session", sid, kind, seqKey(e.seq)}); err != nil {
			l.log.Warnf("Failed to delete evicted %s record: %v", kind, err)
		}
	}
}

// Interactions returns a copy of the recorded interactions in append order.
func (l *Ledger) Interactions() []interview.Interaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]interview.Interaction(nil), l.interactions...)
}

// Transcriptions returns a copy of the transcript log.
func (l *Ledger) Transcriptions() []interview.TranscriptionSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]interview.TranscriptionSnapshot(nil), l.transcriptions...)
}

// Export builds the export record from the current ledger contents.
func (l *Ledger) Export() *storage.ExportRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	passed := 0
	for _, in := range l.interactions {
		if in.PassedThreshold {
			passed++
		}
	}

	rec := &storage.ExportRecord{
		CandidateID:     l.session.CandidateID,
		SessionID:       l.session.SessionID,
		Threshold:       l.session.ScoreThreshold,
		StartTime:       l.session.StartTime,
		EndTime:         l.session.EndTime,
		Questions:       append([]interview.Question{}, l.questions...),
		Interactions:    append([]interview.Interaction{}, l.interactions...),
		Transcriptions:  append([]interview.TranscriptionSnapshot{}, l.transcriptions...),
		Screenshots:     records(l.screenshots),
		AudioRecordings: records(l.audio),
		Metadata: storage.ExportMetadata{
			TotalQuestions:       len(l.questions),
			TotalInteractions:    len(l.interactions),
			PassedInteractions:   passed,
			TotalScreenshots:     len(l.screenshots),
			TotalAudioRecordings: len(l.audio),
			TotalTranscriptions:  len(l.transcriptions),
			CompletedAt:          l.session.EndTime,
		},
	}
	return rec
}

// Flush persists the export record to the store and the results directory.
// The in-memory ledger stays authoritative when either write fails.
func (l *Ledger) Flush(ctx context.Context) error {
	rec := l.Export()

	var firstErr error
	if l.store != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal export: %w", err)
		}
		if err := l.store.Set(ctx, exportKey(rec.SessionID), data); err != nil {
			l.log.Warnf("Failed to store export for session %s: %v", rec.SessionID, err)
			firstErr = fmt.Errorf("store export: %w", err)
		}
	}
	if l.results != nil {
		if err := l.results.SaveResult(rec); err != nil {
			l.log.Warnf("Failed to save results file for session %s: %v", rec.SessionID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("save results: %w", err)
			}
		}
	}
	return firstErr
}

// Load reads a flushed export record back from the store.
func Load(ctx context.Context, store storage.Store, sessionID string) (*storage.ExportRecord, error) {
	data, err := store.Get(ctx, exportKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load export %s: %w", sessionID, err)
	}
	var rec storage.ExportRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode export %s: %w", sessionID, err)
	}
	return &rec, nil
}

func (l *Ledger) mirror(ctx context.Context, key storage.Key, v any) {
	if l.store == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		l.log.Warnf("Failed to encode %s: %v", key, err)
		return
	}
	if err := l.store.Set(ctx, key, data); err != nil {
		l.log.Warnf("Failed to mirror %s: %v", key, err)
	}
}

func records(entries []captureEntry) []interview.CaptureRecord {
	out := make([]interview.CaptureRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.record)
	}
	return out
}

func exportKey(sessionID string) storage.Key {
	return storage.Key{"session", sessionID, "export"}
}

// seqKey zero-pads so lexical key order matches insertion order.
func seqKey(n uint64) string {
	return fmt.Sprintf("%09d", n)
}
