package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-engine/internal/interview"
	"interview-engine/internal/storage"
)

func newTestLedger(t *testing.T, store storage.Store, limits Limits) *Ledger {
	t.Helper()
	l := New(Options{
		Store:   store,
		Results: storage.NewResults(t.TempDir()),
		Limits:  limits,
	})
	l.Begin(interview.Session{
		CandidateID:    "cand-1",
		SessionID:      "sess-1",
		ScoreThreshold: 7,
	}, []interview.Question{{Index: 0, Text: "Q1"}, {Index: 1, Text: "Q2"}})
	return l
}

func interaction(q, round, score int) interview.Interaction {
	return interview.Interaction{
		QuestionIndex:   q,
		QuestionText:    "question",
		AnswerText:      "answer",
		Score:           score,
		IsFollowUp:      round > 0,
		FollowUpCount:   round,
		Threshold:       7,
		PassedThreshold: interview.Passed(score, 7),
	}
}

func TestRecordInteraction_AppendOnlyAndUnique(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, nil, Limits{})

	require.NoError(t, l.RecordInteraction(ctx, interaction(0, 0, 5)))
	require.NoError(t, l.RecordInteraction(ctx, interaction(0, 1, 8)))

	err := l.RecordInteraction(ctx, interaction(0, 1, 9))
	assert.True(t, errors.Is(err, interview.ErrDuplicateInteraction))

	got := l.Interactions()
	require.Len(t, got, 2)
	assert.Equal(t, 5, got[0].Score)
	assert.Equal(t, 8, got[1].Score)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestRecordInteraction_CopyIsIsolated(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, nil, Limits{})
	in := interaction(0, 0, 5)
	in.Feedback = []string{"good"}
	require.NoError(t, l.RecordInteraction(ctx, in))

	in.Feedback[0] = "changed"
	got := l.Interactions()
	got[0].Score = 1

	again := l.Interactions()
	assert.Equal(t, "good", again[0].Feedback[0])
	assert.Equal(t, 5, again[0].Score)
}

func TestRecordTranscription_SupersedesOnlyNonFinal(t *testing.T) {
	l := newTestLedger(t, nil, Limits{})

	l.RecordTranscription(interview.TranscriptionSnapshot{QuestionIndex: 0, Text: "I"})
	l.RecordTranscription(interview.TranscriptionSnapshot{QuestionIndex: 0, Text: "I think"})
	l.RecordTranscription(interview.TranscriptionSnapshot{QuestionIndex: 0, Text: "I think so", IsFinal: true})

	got := l.Transcriptions()
	require.Len(t, got, 1)
	assert.Equal(t, "I think so", got[0].Text)
	assert.True(t, got[0].IsFinal)

	// a follow-up answer on the same question never replaces the final snapshot
	l.RecordTranscription(interview.TranscriptionSnapshot{QuestionIndex: 0, Text: "Also", IsFollowUp: true})
	l.RecordTranscription(interview.TranscriptionSnapshot{QuestionIndex: 1, Text: "Other"})
	l.RecordTranscription(interview.TranscriptionSnapshot{QuestionIndex: 0, Text: "Also this", IsFollowUp: true})

	got = l.Transcriptions()
	require.Len(t, got, 3)
	assert.Equal(t, "I think so", got[0].Text)
	assert.Equal(t, "Other", got[1].Text)
	assert.Equal(t, "Also this", got[2].Text)
}

func TestRecordScreenshot_KeepsNewest(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	l := newTestLedger(t, store, Limits{MaxScreenshots: 2, MaxAudioRecordings: 1})

	for i := 0; i < 4; i++ {
		l.RecordScreenshot(ctx, interview.CaptureRecord{QuestionIndex: i, Payload: []byte{byte(i)}})
	}
	l.RecordAudio(ctx, interview.CaptureRecord{Payload: []byte("a1"), Duration: time.Second})
	l.RecordAudio(ctx, interview.CaptureRecord{Payload: []byte("a2"), Duration: time.Second})

	rec := l.Export()
	require.Len(t, rec.Screenshots, 2)
	assert.Equal(t, 2, rec.Screenshots[0].QuestionIndex)
	assert.Equal(t, 3, rec.Screenshots[1].QuestionIndex)
	require.Len(t, rec.AudioRecordings, 1)
	assert.Equal(t, "a2", string(rec.AudioRecordings[0].Payload))

	// evicted records are removed from the store as well
	count := 0
	for _, err := range store.List(ctx, storage.Key{"session", "sess-1", "screenshot"}) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestInteractionsAreNeverEvicted(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, nil, Limits{MaxScreenshots: 1, MaxAudioRecordings: 1})
	for q := 0; q < 50; q++ {
		require.NoError(t, l.RecordInteraction(ctx, interaction(q, 0, 7)))
		l.RecordScreenshot(ctx, interview.CaptureRecord{QuestionIndex: q})
	}
	assert.Len(t, l.Interactions(), 50)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, nil, Limits{})

	require.NoError(t, l.RecordInteraction(ctx, interaction(0, 0, 5)))
	require.NoError(t, l.RecordInteraction(ctx, interaction(0, 1, 8)))
	l.RecordTranscription(interview.TranscriptionSnapshot{QuestionIndex: 0, Text: "x", IsFinal: true})
	l.RecordScreenshot(ctx, interview.CaptureRecord{})
	l.RecordAudio(ctx, interview.CaptureRecord{})

	s := l.Summary()
	assert.Equal(t, 2, s.Interactions)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Screenshots)
	assert.Equal(t, 1, s.AudioRecordings)
	assert.Equal(t, 1, s.Transcriptions)
	assert.Equal(t, 2, s.TotalQuestions)
	assert.Equal(t, 1, s.AnsweredQuestions)
	assert.InDelta(t, 6.5, s.AverageScore, 0.001)
	assert.InDelta(t, 50.0, s.CompletionPercentage, 0.001)
}

func TestExport_JSONShape(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, nil, Limits{})
	l.MarkStarted(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, l.RecordInteraction(ctx, interaction(0, 0, 9)))
	l.MarkEnded(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))

	data, err := json.Marshal(l.Export())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{
		"candidateId", "threshold", "startTime", "endTime", "questions", "interactions",
		"transcriptions", "screenshots", "audioRecordings", "metadata",
	} {
		assert.Contains(t, raw, field)
	}

	meta := raw["metadata"].(map[string]any)
	assert.EqualValues(t, 2, meta["totalQuestions"])
	assert.EqualValues(t, 1, meta["totalInteractions"])
	assert.EqualValues(t, 1, meta["passedInteractions"])

	in := raw["interactions"].([]any)[0].(map[string]any)
	for _, field := range []string{
		"timestamp", "questionIndex", "questionText", "answerText", "score", "feedback",
		"isFollowUp", "followUpCount", "threshold", "passedThreshold",
	} {
		assert.Contains(t, in, field)
	}
}

func TestFlush_PersistsAndLoads(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewBadger(storage.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	results := storage.NewResults(t.TempDir())
	l := New(Options{Store: store, Results: results})
	l.Begin(interview.Session{CandidateID: "c", SessionID: "s", ScoreThreshold: 7},
		[]interview.Question{{Index: 0, Text: "Q1"}})
	require.NoError(t, l.RecordInteraction(ctx, interaction(0, 0, 7)))
	require.NoError(t, l.Flush(ctx))

	rec, err := Load(ctx, store, "s")
	require.NoError(t, err)
	assert.Equal(t, "c", rec.CandidateID)
	assert.Len(t, rec.Interactions, 1)

	fromFile, err := results.LoadResult("s")
	require.NoError(t, err)
	assert.Equal(t, 1, fromFile.Metadata.PassedInteractions)

	_, err = Load(ctx, store, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

type failingStore struct{ *storage.Memory }

func (f *failingStore) Set(context.Context, storage.Key, []byte) error {
	return errors.New("disk full")
}

func TestFlush_StoreFailureKeepsLedger(t *testing.T) {
	ctx := context.Background()
	l := New(Options{Store: &failingStore{Memory: storage.NewMemory()}})
	l.Begin(interview.Session{SessionID: "s"}, nil)

	require.NoError(t, l.RecordInteraction(ctx, interaction(0, 0, 7)))
	err := l.Flush(ctx)
	assert.Error(t, err)
	assert.Len(t, l.Interactions(), 1)
}
