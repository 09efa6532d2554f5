package app

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/intakebot/core/config"
	coredatabase "github.com/m3rciful/intakebot/core/database"
	"github.com/m3rciful/intakebot/intake"
	"github.com/m3rciful/intakebot/llm"
)

// OpenAIConfig holds language-model settings.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	Model          string `yaml:"model" envconfig:"OPENAI_MODEL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"OPENAI_TIMEOUT_SECONDS"`
	WindowTurns    int    `yaml:"window_turns" envconfig:"OPENAI_WINDOW_TURNS"`
}

// LLMConfig maps the raw settings onto the client configuration.
func (c OpenAIConfig) LLMConfig() llm.Config {
	return llm.Config{
		Model:   c.Model,
		Timeout: time.Duration(c.TimeoutSeconds) * time.Second,
		Window:  c.WindowTurns,
	}
}

// Config aggregates core, database, model, and intake script settings.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	OpenAI   OpenAIConfig        `yaml:"openai"`
	Intake   intake.Script       `yaml:"intake"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads configuration from a YAML file, overlays environment variables,
// and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if len(cfg.Intake.Questions) == 0 {
		cfg.Intake = intake.DefaultScript()
	}
	if err := cfg.Intake.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
