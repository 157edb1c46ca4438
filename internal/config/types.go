package config

import "time"

// Config is the interview configuration loaded from YAML.
type Config struct {
	Interview InterviewConfig `yaml:"interview"`
	Voice     VoiceConfig     `yaml:"voice"`
	Timing    TimingConfig    `yaml:"timing"`
	Capture   CaptureConfig   `yaml:"capture"`
	Questions []string        `yaml:"questions" validate:"dive,required"`
}

// InterviewConfig holds session-wide settings.
type InterviewConfig struct {
	ScoreThreshold int    `yaml:"score_threshold" validate:"min=1,max=10"`
	MaxFollowUps   int    `yaml:"max_follow_ups" validate:"min=0,max=2"`
	Greeting       string `yaml:"greeting"`
	ClosingLine    string `yaml:"closing_line"`
	SpeakQuestions bool   `yaml:"speak_questions"`
	AutoMode       bool   `yaml:"auto_mode"`
}

// VoiceConfig tunes the capture lifecycle.
type VoiceConfig struct {
	SilenceWindow   time.Duration `yaml:"silence_window" validate:"gt=0"`
	MinAnswerLength int           `yaml:"min_answer_length" validate:"min=1"`
	ListenDelay     time.Duration `yaml:"listen_delay" validate:"min=0"`
	PlaybackTimeout time.Duration `yaml:"playback_timeout" validate:"min=0"`
}

// TimingConfig holds pauses between prompts.
type TimingConfig struct {
	FollowUpDelay time.Duration `yaml:"follow_up_delay" validate:"min=0"`
	AdvanceDelay  time.Duration `yaml:"advance_delay" validate:"min=0"`
}

// CaptureConfig controls screenshot and audio capture.
type CaptureConfig struct {
	ScreenshotInterval   time.Duration `yaml:"screenshot_interval" validate:"gt=0"`
	AudioSegmentInterval time.Duration `yaml:"audio_segment_interval" validate:"gt=0"`
	MaxScreenshots       int           `yaml:"max_screenshots" validate:"min=1"`
	MaxAudioRecordings   int           `yaml:"max_audio_recordings" validate:"min=1"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(c *Config) {
	if c.Interview.ScoreThreshold == 0 {
		c.Interview.ScoreThreshold = 7
	}
	if c.Interview.MaxFollowUps == 0 {
		c.Interview.MaxFollowUps = 2
	}
	if c.Interview.ClosingLine == "" {
		c.Interview.ClosingLine = "Thank you for completing the interview."
	}
	if c.Voice.SilenceWindow == 0 {
		c.Voice.SilenceWindow = 3 * time.Second
	}
	if c.Voice.MinAnswerLength == 0 {
		c.Voice.MinAnswerLength = 10
	}
	if c.Voice.ListenDelay == 0 {
		c.Voice.ListenDelay = 500 * time.Millisecond
	}
	if c.Voice.PlaybackTimeout == 0 {
		c.Voice.PlaybackTimeout = 2 * time.Minute
	}
	if c.Timing.FollowUpDelay == 0 {
		c.Timing.FollowUpDelay = 1500 * time.Millisecond
	}
	if c.Timing.AdvanceDelay == 0 {
		c.Timing.AdvanceDelay = time.Second
	}
	if c.Capture.ScreenshotInterval == 0 {
		c.Capture.ScreenshotInterval = 30 * time.Second
	}
	if c.Capture.AudioSegmentInterval == 0 {
		c.Capture.AudioSegmentInterval = 30 * time.Second
	}
	if c.Capture.MaxScreenshots == 0 {
		c.Capture.MaxScreenshots = 100
	}
	if c.Capture.MaxAudioRecordings == 0 {
		c.Capture.MaxAudioRecordings = 50
	}
}

// Accessors for the interview settings
func (c *Config) GetScoreThreshold() int {
	return c.Interview.ScoreThreshold
}

func (c *Config) GetMaxFollowUps() int {
	return c.Interview.MaxFollowUps
}

func (c *Config) GetTotalQuestions() int {
	return len(c.Questions)
}
