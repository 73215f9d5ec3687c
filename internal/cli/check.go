package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"gitpilot/internal/domain"
	"gitpilot/internal/llm"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	ConfigPath string // empty means ConfigPath("", workDir)
	Fix        bool   // if true, write default config when missing
}

// RunCheck reports on the config file, the provider API key, the git binary
// and the working directory's repository. With Fix, a missing config file is
// created with defaults. Returns 0 when no problem was found, otherwise 1.
func RunCheck(opts CheckOptions, stdout, stderr io.Writer) int {
	note := func(section, message string) {
		fmt.Fprintf(stdout, "  [%s] %s\n", section, message)
	}
	problems := 0

	// 1. Working directory
	workDir, err := osGetwd()
	if err != nil {
		fmt.Fprintf(stderr, "  cannot determine working directory: %v\n", err)
		return 1
	}
	note("Workdir", workDir)

	// 2. Config
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = ConfigPath("", workDir)
	}
	cfg, err := LoadConfig(cfgPath, Overrides{})
	switch {
	case err != nil:
		note("Config", err.Error())
		return 1
	case fileExists(cfgPath):
		note("Config", fmt.Sprintf("Loaded %s.", cfgPath))
	case opts.Fix:
		if writeErr := configWriteDefault(cfgPath); writeErr != nil {
			fmt.Fprintf(stderr, "  failed to write default config: %v\n", writeErr)
			return 1
		}
		note("Config", fmt.Sprintf("Wrote default config to %s.", cfgPath))
	default:
		note("Config", fmt.Sprintf("No config at %s; using defaults. Run with --fix to create one.", cfgPath))
	}

	// 3. Provider and key
	problems += checkProvider(cfg, note)

	// 4. git
	if p, err := lookPath("git"); err != nil {
		note("Git", "git executable not found on PATH; run_git_command will fail.")
		problems++
	} else {
		note("Git", fmt.Sprintf("Using %s.", p))
	}
	note("Repo", describeRepo(workDir))

	if problems > 0 {
		fmt.Fprintf(stdout, "  Check found %d problem(s).\n", problems)
		return 1
	}
	fmt.Fprintln(stdout, "  Check complete.")
	return 0
}

func checkProvider(cfg *domain.Config, note func(section, message string)) int {
	provider := strings.ToLower(cfg.Agent.Provider)
	if provider == "" {
		provider = llm.ProviderGemini
	}
	model := cfg.Agent.Model
	if model == "" {
		model = "(provider default)"
	}
	note("Provider", fmt.Sprintf("%s model=%s maxTurns=%d dryRun=%t", provider, model, cfg.Agent.MaxTurns, cfg.Agent.DryRun))
	if !isKnownProvider(provider) {
		note("Provider", fmt.Sprintf("Unknown provider %q (use %s).", provider, strings.Join(llm.Providers, ", ")))
		return 1
	}
	if !llm.NeedsKey(provider) {
		return 0
	}
	env := strings.ToUpper(llm.SecretName(provider))
	if strings.TrimSpace(osGetenv(env)) == "" {
		note("API key", fmt.Sprintf("%s is not set.", env))
		return 1
	}
	note("API key", fmt.Sprintf("%s is set.", env))
	return 0
}

func isKnownProvider(p string) bool {
	for _, known := range llm.Providers {
		if p == known {
			return true
		}
	}
	return false
}

// describeRepo reports whether dir is inside a git repository and, if so,
// which branch is checked out.
func describeRepo(dir string) string {
	repo, err := gitPlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "Not a git repository; the agent can run `git init` when asked."
	}
	if err != nil {
		return fmt.Sprintf("Cannot open repository: %v", err)
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "Git repository with no commits yet."
	}
	if err != nil {
		return fmt.Sprintf("Git repository; HEAD unreadable: %v", err)
	}
	if head.Name().IsBranch() {
		return fmt.Sprintf("Git repository on branch %s.", head.Name().Short())
	}
	return fmt.Sprintf("Git repository at detached HEAD %s.", head.Hash().String()[:7])
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
