package config

import (
	"fmt"

	"github.com/Montinou/interview-companion-sub000/aggregator"
	"github.com/Montinou/interview-companion-sub000/analysis"
	"github.com/Montinou/interview-companion-sub000/database"
	"github.com/Montinou/interview-companion-sub000/llm/ollama"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/observability"
	"github.com/Montinou/interview-companion-sub000/server"
	"github.com/Montinou/interview-companion-sub000/stt/deepgram"
)

// Service is the top-level configuration for the companion service.
// Each section delegates to the owning package's config type so defaults
// and validation live next to the code they describe.
type Service struct {
	Logger   logger.Config   `yaml:"logger" mapstructure:"logger"`
	Server   server.Config   `yaml:"server" mapstructure:"server"`
	Database database.Config `yaml:"database" mapstructure:"database"`
	Deepgram deepgram.Config `yaml:"deepgram" mapstructure:"deepgram"`

	// Ollama configures the deep analysis tier. OllamaFilter optionally
	// points the cheap escalation tier at a different model; when its
	// model is empty the deep tier's backend serves both.
	Ollama        ollama.Config        `yaml:"ollama" mapstructure:"ollama"`
	OllamaFilter  ollama.Config        `yaml:"ollama_filter" mapstructure:"ollama_filter"`
	Aggregator    aggregator.Config    `yaml:"aggregator" mapstructure:"aggregator"`
	Analysis      analysis.Config      `yaml:"analysis" mapstructure:"analysis"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults applies defaults across every section.
func (s *Service) ApplyDefaults() {
	s.Logger.ApplyDefaults()
	s.Server.ApplyDefaults()
	s.Database.ApplyDefaults()
	s.Deepgram.ApplyDefaults()
	s.Ollama.ApplyDefaults()
	s.Aggregator.ApplyDefaults()
	s.Analysis.ApplyDefaults()
	s.Observability.ApplyDefaults()
}

// Validate validates every section, failing on the first error.
func (s *Service) Validate() error {
	if err := s.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := s.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := s.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := s.Deepgram.Validate(); err != nil {
		return fmt.Errorf("deepgram: %w", err)
	}
	if err := s.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// LoadService loads, defaults, and validates the service configuration.
func LoadService(opts ...LoaderOption) (*Service, error) {
	var cfg Service
	if err := Load(&cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
