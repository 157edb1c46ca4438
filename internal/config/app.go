package config

import (
	"os"
	"strconv"
	"time"
)

type AppConfig struct {
	OpenAI        OpenAIConfig
	Collaborator  CollaboratorConfig
	Server        ServerConfig
	Storage       StorageConfig
	Log           LogConfig
	InterviewFile string
}

// CollaboratorConfig points at the interview backend.
type CollaboratorConfig struct {
	BaseURL string
	Timeout time.Duration
	// TTSPath is empty when speech synthesis is disabled.
	TTSPath string
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SessionIdleTTL  time.Duration
	RateLimit       int
	RateWindow      time.Duration
}

type StorageConfig struct {
	Dir        string
	InMemory   bool
	ResultsDir string
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

func LoadAppConfig() *AppConfig {
	return &AppConfig{
		OpenAI: *LoadOpenAIConfig(),
		Collaborator: CollaboratorConfig{
			BaseURL: getEnv("INTERVIEW_API_URL", ""),
			Timeout: getEnvAsDuration("INTERVIEW_API_TIMEOUT", 60*time.Second),
			TTSPath: getEnv("INTERVIEW_TTS_PATH", "/tts/speak-base64"),
		},
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 2*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			SessionIdleTTL:  getEnvAsDuration("SESSION_IDLE_TTL", 24*time.Hour),
			RateLimit:       getEnvAsInt("RATE_LIMIT", 30),
			RateWindow:      getEnvAsDuration("RATE_WINDOW", time.Minute),
		},
		Storage: StorageConfig{
			Dir:        getEnv("STORAGE_DIR", "data/capture"),
			InMemory:   getEnvAsBool("STORAGE_IN_MEMORY", false),
			ResultsDir: getEnv("RESULTS_DIR", "results"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		InterviewFile: getEnv("INTERVIEW_CONFIG", "config/interview.yaml"),
	}
}

// LocalMode reports whether evaluation runs without the interview backend.
func (c *AppConfig) LocalMode() bool {
	return c.Collaborator.BaseURL == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
