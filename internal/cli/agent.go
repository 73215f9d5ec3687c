package cli

import (
	"fmt"
	"io"
	"log/slog"

	"gitpilot/internal/brain"
	"gitpilot/internal/config"
	"gitpilot/internal/domain"
	"gitpilot/internal/security"
	"gitpilot/internal/session"
	"gitpilot/internal/tooling"
)

// AgentDeps lets tests replace the filesystem and git runner the tools use.
// Zero values mean the real OS implementations.
type AgentDeps struct {
	FS     tooling.FileSystem
	Runner tooling.CommandRunner
}

// NewAgent wires a Brain for workDir from cfg: the path guard, the tool
// registry and dispatcher, the primary and fallback models, the token
// estimator and the optional transcript. Tool activity is reported to out.
func NewAgent(cfg *domain.Config, workDir string, out io.Writer, logger *slog.Logger, deps AgentDeps) (*brain.Brain, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.FS == nil {
		deps.FS = &tooling.OsFileSystem{}
	}
	if deps.Runner == nil {
		deps.Runner = &tooling.ExecCommandRunner{}
	}

	guard, err := security.NewPathGuard(workDir)
	if err != nil {
		return nil, err
	}
	registry, err := tooling.NewDefaultRegistry(guard, deps.FS, deps.Runner)
	if err != nil {
		return nil, fmt.Errorf("build tools: %w", err)
	}
	dispatcher := brain.NewToolDispatcher(registry)
	dispatcher.SetLogger(logger)

	secrets := config.EnvSecrets(osGetenv)
	model, err := newModel(&cfg.Agent, secrets, &cfg.Retry)
	if err != nil {
		return nil, err
	}

	opts := []brain.Option{
		brain.WithWorkDir(guard.Root()),
		brain.WithDryRun(cfg.Agent.DryRun),
		brain.WithMaxTurns(cfg.Agent.MaxTurns),
		brain.WithReporter(brain.NewConsoleReporter(out)),
		brain.WithLogger(logger),
	}
	if len(cfg.Agent.Fallbacks) > 0 {
		fallbacks, errs := newFallbackModels(cfg.Agent.Fallbacks, secrets, &cfg.Retry)
		for _, e := range errs {
			logger.Warn("fallback model skipped", "error", e)
		}
		if len(fallbacks) > 0 {
			opts = append(opts, brain.WithFallbacks(fallbacks...))
		}
	}
	if tok, err := newTokenizer(); err != nil {
		logger.Debug("token estimate disabled", "error", err)
	} else {
		opts = append(opts, brain.WithTokenizer(tok))
	}
	if cfg.Transcript != "" {
		store, err := session.NewTranscriptStore(cfg.Transcript)
		if err != nil {
			return nil, err
		}
		opts = append(opts, brain.WithTranscript(store))
	}
	return brain.NewBrain(model, dispatcher, opts...), nil
}
