package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load reads the interview configuration from a YAML file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", filename, err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &config, nil
}

// validateConfig checks struct tags and the rules tags cannot express.
func validateConfig(config *Config) error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return err
	}

	for i, q := range config.Questions {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("question %d is blank", i+1)
		}
	}

	if config.Voice.ListenDelay >= config.Voice.SilenceWindow {
		return fmt.Errorf("listen_delay (%s) must be shorter than silence_window (%s)",
			config.Voice.ListenDelay, config.Voice.SilenceWindow)
	}

	return nil
}
