package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("questions:\n  - \"What is your name?\"\n"))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.GetScoreThreshold())
	assert.Equal(t, 2, cfg.GetMaxFollowUps())
	assert.Equal(t, 1, cfg.GetTotalQuestions())
	assert.Equal(t, 3*time.Second, cfg.Voice.SilenceWindow)
	assert.Equal(t, 10, cfg.Voice.MinAnswerLength)
	assert.Equal(t, 500*time.Millisecond, cfg.Voice.ListenDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timing.FollowUpDelay)
	assert.Equal(t, time.Second, cfg.Timing.AdvanceDelay)
	assert.Equal(t, 30*time.Second, cfg.Capture.ScreenshotInterval)
	assert.Equal(t, "Thank you for completing the interview.", cfg.Interview.ClosingLine)
}

func TestParse_Durations(t *testing.T) {
	data := []byte(`
interview:
  score_threshold: 5
voice:
  silence_window: 2s
  listen_delay: 250ms
capture:
  screenshot_interval: 10s
`)
	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.GetScoreThreshold())
	assert.Equal(t, 2*time.Second, cfg.Voice.SilenceWindow)
	assert.Equal(t, 250*time.Millisecond, cfg.Voice.ListenDelay)
	assert.Equal(t, 10*time.Second, cfg.Capture.ScreenshotInterval)
}

func TestParse_RejectsOutOfRangeThreshold(t *testing.T) {
	_, err := Parse([]byte("interview:\n  score_threshold: 11\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestParse_RejectsTooManyFollowUps(t *testing.T) {
	_, err := Parse([]byte("interview:\n  max_follow_ups: 3\n"))
	require.Error(t, err)
}

func TestParse_RejectsBlankQuestion(t *testing.T) {
	_, err := Parse([]byte("questions:\n  - \"   \"\n"))
	require.Error(t, err)
}

func TestParse_RejectsListenDelayLongerThanSilence(t *testing.T) {
	_, err := Parse([]byte("voice:\n  silence_window: 1s\n  listen_delay: 2s\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen_delay")
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interview.yaml")
	require.NoError(t, os.WriteFile(path, []byte("questions:\n  - \"One\"\n  - \"Two\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two"}, cfg.Questions)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadAppConfig_Env(t *testing.T) {
	t.Setenv("INTERVIEW_API_URL", "http://backend:8000")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_IN_MEMORY", "true")
	t.Setenv("INTERVIEW_API_TIMEOUT", "5s")

	cfg := LoadAppConfig()
	assert.Equal(t, "http://backend:8000", cfg.Collaborator.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Collaborator.Timeout)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Storage.InMemory)
	assert.False(t, cfg.LocalMode())
}

func TestOpenAIConfig_Validate(t *testing.T) {
	c := &OpenAIConfig{Model: "gpt-4o-mini", MaxTokens: 100, Temperature: 0.2}
	assert.Error(t, c.ValidateConfig())

	c.APIKey = "sk-test"
	assert.NoError(t, c.ValidateConfig())

	c.Temperature = 3
	assert.Error(t, c.ValidateConfig())
}
