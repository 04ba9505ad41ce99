package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Server holds the process settings that come from the environment. Flags
// in cmd/server override the ones they share.
type Server struct {
	Addr      string `env:"MENTORSIM_ADDR" envDefault:":8080"`
	DataDir   string `env:"MENTORSIM_DATA_DIR" envDefault:"./data"`
	ConfigDir string `env:"MENTORSIM_CONFIG_DIR" envDefault:"./configs"`
	Token     string `env:"MENTORSIM_TOKEN"`

	Mentor string `env:"MENTORSIM_MENTOR" envDefault:"Professor"`
	Seed   int64  `env:"MENTORSIM_SEED" envDefault:"1"`

	NarrativeURL       string        `env:"MENTORSIM_NARRATIVE_URL"`
	NarrativeAPIKey    string        `env:"MENTORSIM_NARRATIVE_API_KEY"`
	NarrativeModel     string        `env:"MENTORSIM_NARRATIVE_MODEL"`
	NarrativeMaxTokens int           `env:"MENTORSIM_NARRATIVE_MAX_TOKENS" envDefault:"1024"`
	NarrativeTimeout   time.Duration `env:"MENTORSIM_NARRATIVE_TIMEOUT" envDefault:"30s"`

	DisableIndex bool `env:"MENTORSIM_DISABLE_INDEX"`
}

// LoadServer reads Server from the environment.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// NarrativeEnabled reports whether a narrative endpoint is configured.
func (s Server) NarrativeEnabled() bool {
	return s.NarrativeURL != "" && s.NarrativeAPIKey != ""
}
