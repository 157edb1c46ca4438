package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"interview-engine/internal/config"
	"interview-engine/internal/metrics"
	"interview-engine/internal/scoring"
	"interview-engine/internal/session"
)

const (
	setupPath    = "/interview/setup"
	evaluatePath = "/answer/submit"
	followUpPath = "/answer/follow-up"
	completePath = "/interview/complete-and-save"
)

// Client talks to the interview backend. It serves as the setup provider,
// the evaluator, the speech synthesizer and the completer.
type Client struct {
	http    *resty.Client
	ttsPath string
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

type setupRequest struct {
	CandidateID string `json:"candidate_id"`
}

type setupResponse struct {
	CandidateID    string   `json:"candidate_id"`
	Greeting       string   `json:"greeting"`
	Questions      []string `json:"questions"`
	Message        string   `json:"message"`
	ScoreThreshold int      `json:"score_threshold,omitempty"`
}

type ttsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type ttsResponse struct {
	Success     bool   `json:"success"`
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format"`
	Error       string `json:"error,omitempty"`
}

var errSynthesisUnavailable = errors.New("speech synthesis unavailable")

func NewClient(cfg config.CollaboratorConfig, m *metrics.Metrics, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: http, ttsPath: cfg.TTSPath, metrics: m, log: log}
}

// Setup fetches the candidate's question list.
func (c *Client) Setup(ctx context.Context, candidateID string) (*session.SetupResult, error) {
	var resp setupResponse
	if err := c.post(ctx, setupPath, setupRequest{CandidateID: candidateID}, &resp); err != nil {
		return nil, err
	}
	c.log.Infof("Backend prepared %d questions for candidate %s", len(resp.Questions), candidateID)
	return &session.SetupResult{
		Questions: resp.Questions,
		Threshold: resp.ScoreThreshold,
		Greeting:  resp.Greeting,
	}, nil
}

// Evaluate scores a main answer.
func (c *Client) Evaluate(ctx context.Context, req scoring.EvaluateRequest) (*scoring.Response, error) {
	var resp scoring.Response
	if err := c.post(ctx, evaluatePath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EvaluateFollowUp scores a follow-up answer.
func (c *Client) EvaluateFollowUp(ctx context.Context, req scoring.FollowUpRequest) (*scoring.Response, error) {
	var resp scoring.Response
	if err := c.post(ctx, followUpPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Synthesize returns prompt audio. It fails when synthesis is disabled or
// the backend reports no audio.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.ttsPath == "" {
		return nil, errSynthesisUnavailable
	}
	var resp ttsResponse
	if err := c.post(ctx, c.ttsPath, ttsRequest{Text: text, Language: "en"}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.AudioBase64 == "" {
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", errSynthesisUnavailable, resp.Error)
		}
		return nil, errSynthesisUnavailable
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("decode synthesized audio: %w", err)
	}
	return audio, nil
}

// Complete hands the finished session to the backend.
func (c *Client) Complete(ctx context.Context, req session.CompletionRequest) error {
	return c.post(ctx, completePath, req, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		c.metrics.IncrementAPICall(false)
		return fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		c.metrics.IncrementAPICall(false)
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode(), truncate(resp.String(), 200))
	}
	c.metrics.IncrementAPICall(true)
	c.log.Debugf("POST %s -> %d in %s", path, resp.StatusCode(), resp.Time())

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(cleanJSONResponse(resp.Body()), out); err != nil {
		return fmt.Errorf("POST %s: decode response: %w", path, err)
	}
	return nil
}

// cleanJSONResponse strips markdown fences some backends wrap around JSON.
func cleanJSONResponse(body []byte) []byte {
	s := strings.TrimSpace(string(body))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return []byte(strings.TrimSpace(s))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
