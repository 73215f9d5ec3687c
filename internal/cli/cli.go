package cli

import (
	"path/filepath"

	"gitpilot/internal/config"
	"gitpilot/internal/domain"
)

// EnvConfig names the variable consulted for the config path when no flag is given.
const EnvConfig = "GITPILOT_CONFIG"

// Overrides carries command-line flags that take precedence over the config
// file and GITPILOT_* variables. Nil fields were not set on the command line.
type Overrides struct {
	Provider   *string
	Model      *string
	MaxTurns   *int
	DryRun     *bool
	LogLevel   *string
	Transcript *string
}

// ConfigPath picks the config file: the flag value, then $GITPILOT_CONFIG,
// then gitpilot.json in workDir.
func ConfigPath(flag, workDir string) string {
	if flag != "" {
		return flag
	}
	if p := osGetenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(workDir, config.DefaultFileName)
}

// LoadConfig resolves the effective configuration: defaults, then the file at
// path when it exists, then environment variables, then o.
func LoadConfig(path string, o Overrides) (*domain.Config, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, osGetenv); err != nil {
		return nil, err
	}
	o.apply(cfg)
	return cfg, nil
}

func (o Overrides) apply(cfg *domain.Config) {
	if o.Provider != nil {
		cfg.Agent.Provider = *o.Provider
	}
	if o.Model != nil {
		cfg.Agent.Model = *o.Model
	}
	if o.MaxTurns != nil {
		cfg.Agent.MaxTurns = *o.MaxTurns
	}
	if o.DryRun != nil {
		cfg.Agent.DryRun = *o.DryRun
	}
	if o.LogLevel != nil {
		cfg.Infra.LogLevel = *o.LogLevel
	}
	if o.Transcript != nil {
		cfg.Transcript = *o.Transcript
	}
}
