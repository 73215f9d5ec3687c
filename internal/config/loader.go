package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"gitpilot/internal/domain"
)

// DefaultFileName is the config file looked up in the working directory when --config is not given.
const DefaultFileName = "gitpilot.json"

// DefaultMaxTurns caps model turns for CLI runs unless overridden.
const DefaultMaxTurns = 50

// Environment overrides applied by ApplyEnv.
const (
	EnvProvider = "GITPILOT_PROVIDER"
	EnvModel    = "GITPILOT_MODEL"
	EnvMaxTurns = "GITPILOT_MAX_TURNS"
	EnvDryRun   = "GITPILOT_DRY_RUN"
)

// marshalIndent, writeFile and readFile are swapped in tests to force errors.
var (
	marshalIndent = json.MarshalIndent
	writeFile     = os.WriteFile
	readFile      = os.ReadFile
)

// Default returns the configuration used when no file is present.
func Default() *domain.Config {
	return &domain.Config{
		Agent: domain.AgentConfig{
			Provider: "gemini",
			MaxTurns: DefaultMaxTurns,
		},
		Infra: domain.InfraConfig{LogFormat: "text", LogLevel: "info"},
		Retry: domain.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 500,
			MaxBackoff:     30000,
			Multiplier:     2,
		},
	}
}

// WriteDefault writes Default() to path as indented JSON. Parent directories are not created.
func WriteDefault(path string) error {
	data, err := marshalIndent(Default(), "", "  ")
	if err != nil {
		return fmt.Errorf("config write: %w", err)
	}
	if err := writeFile(path, data, 0644); err != nil {
		return fmt.Errorf("config write: %w", err)
	}
	return nil
}

// Load reads path and decodes it over Default(), so keys absent from the file
// keep their defaults. The format follows the extension: .json, .yaml/.yml or .toml.
func Load(path string) (*domain.Config, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config load: unsupported format %q (use .json, .yaml or .toml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config parse %s: %w", path, err)
	}
	if cfg.Transcript != "" {
		cfg.Transcript = filepath.Clean(cfg.Transcript)
	}
	if cfg.Infra.LogFile != "" {
		cfg.Infra.LogFile = filepath.Clean(cfg.Infra.LogFile)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns Default() otherwise.
// Any other read or parse error is returned.
func LoadOrDefault(path string) (*domain.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// ApplyEnv overrides cfg with GITPILOT_* environment variables. getenv is
// usually os.Getenv. Malformed numbers and booleans are reported.
func ApplyEnv(cfg *domain.Config, getenv func(string) string) error {
	if cfg == nil || getenv == nil {
		return nil
	}
	if v := strings.TrimSpace(getenv(EnvProvider)); v != "" {
		cfg.Agent.Provider = v
	}
	if v := strings.TrimSpace(getenv(EnvModel)); v != "" {
		cfg.Agent.Model = v
	}
	if v := strings.TrimSpace(getenv(EnvMaxTurns)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s: expected a non-negative integer, got %q", EnvMaxTurns, v)
		}
		cfg.Agent.MaxTurns = n
	}
	if v := strings.TrimSpace(getenv(EnvDryRun)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: expected a boolean, got %q", EnvDryRun, v)
		}
		cfg.Agent.DryRun = b
	}
	return nil
}

// EnvSecrets resolves secret names such as "gemini_api_key" from the
// upper-cased environment variable (GEMINI_API_KEY). A missing variable yields "".
func EnvSecrets(getenv func(string) string) func(name string) (string, error) {
	return func(name string) (string, error) {
		return strings.TrimSpace(getenv(strings.ToUpper(name))), nil
	}
}
