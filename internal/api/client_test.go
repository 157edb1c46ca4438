package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-engine/internal/config"
	"interview-engine/internal/interview"
	"interview-engine/internal/metrics"
	"interview-engine/internal/scoring"
	"interview-engine/internal/session"
	"interview-engine/internal/storage"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	m := metrics.NewMetrics()
	return NewClient(config.CollaboratorConfig{
		BaseURL: srv.URL + "/",
		Timeout: 5 * time.Second,
		TTSPath: "/tts/speak-base64",
	}, m, nil), m
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Setup(t *testing.T) {
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/interview/setup", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cand-7", req["candidate_id"])
		writeJSON(w, map[string]any{
			"candidate_id": "cand-7",
			"greeting":     "Hello!",
			"questions":    []string{"Q1", "Q2"},
			"message":      "ok",
		})
	})

	res, err := c.Setup(context.Background(), "cand-7")
	require.NoError(t, err)
	assert.Equal(t, &session.SetupResult{Questions: []string{"Q1", "Q2"}, Greeting: "Hello!"}, res)
	assert.Equal(t, int64(1), m.GetSnapshot().APICallsSuccessful)
}

func TestClient_Evaluate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/answer/submit", r.URL.Path)
		var req scoring.EvaluateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.QuestionIndex)
		writeJSON(w, map[string]any{
			"score":              5,
			"feedback":           []string{"too vague"},
			"needs_followup":     true,
			"follow_up_question": "Can you elaborate?",
		})
	})

	resp, err := c.Evaluate(context.Background(), scoring.EvaluateRequest{CandidateID: "c", QuestionIndex: 3, Question: "Q", Answer: "A"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, resp.Score)
	assert.True(t, resp.NeedsFollowUp)
	assert.Equal(t, "Can you elaborate?", resp.FollowUpQuestion)
}

func TestClient_EvaluateFollowUpStripsFences(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/answer/follow-up", r.URL.Path)
		var req scoring.FollowUpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.FollowUpLevel)
		_, _ = w.Write([]byte("```json\n{\"score\": 8, \"feedback\": [], \"needs_followup\": false}\n```"))
	})

	resp, err := c.EvaluateFollowUp(context.Background(), scoring.FollowUpRequest{FollowUpLevel: 2})
	require.NoError(t, err)
	assert.Equal(t, 8.0, resp.Score)
}

func TestClient_ErrorStatus(t *testing.T) {
	c, m := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "candidate not found", http.StatusNotFound)
	})

	_, err := c.Setup(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	snap := m.GetSnapshot()
	assert.Equal(t, int64(1), snap.APICallsTotal)
	assert.Zero(t, snap.APICallsSuccessful)
}

func TestClient_Synthesize(t *testing.T) {
	audio := []byte{0x49, 0x44, 0x33}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts/speak-base64", r.URL.Path)
		writeJSON(w, map[string]any{"success": true, "audio_base64": base64.StdEncoding.EncodeToString(audio), "format": "mp3"})
	})

	got, err := c.Synthesize(context.Background(), "Question 1: hello")
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestClient_SynthesizeUnavailable(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"success": false, "error": "no voice"})
	})

	_, err := c.Synthesize(context.Background(), "hi")
	assert.ErrorIs(t, err, errSynthesisUnavailable)

	c.ttsPath = ""
	_, err = c.Synthesize(context.Background(), "hi")
	assert.ErrorIs(t, err, errSynthesisUnavailable)
}

func TestClient_Complete(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/interview/complete-and-save", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, map[string]any{"status": "saved"})
	})

	err := c.Complete(context.Background(), session.CompletionRequest{
		CandidateID:  "cand",
		SessionID:    "sid",
		Interactions: []interview.Interaction{{QuestionIndex: 0, Score: 9}},
		Metadata:     storage.ExportMetadata{TotalInteractions: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "sid", got["session_id"])
	assert.Len(t, got["interactions"], 1)
}

func TestClient_ContextCancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Evaluate(ctx, scoring.EvaluateRequest{})
	assert.Error(t, err)
}
