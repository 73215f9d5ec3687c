package cli

import (
	"os"
	"os/exec"

	"github.com/go-git/go-git/v5"

	"gitpilot/internal/config"
	"gitpilot/internal/domain"
	"gitpilot/internal/llm"
	"gitpilot/internal/tokenizer"
)

// Function variables for dependency injection in tests.
// Default values are the real implementations; tests may temporarily swap them.
var (
	osGetenv           = os.Getenv
	osGetwd            = os.Getwd
	lookPath           = exec.LookPath
	configWriteDefault = config.WriteDefault
	gitPlainOpen       = func(dir string) (*git.Repository, error) {
		return git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	}
	newModel          = llm.NewModel
	newFallbackModels = llm.NewFallbackModels
	newTokenizer      = func() (domain.Tokenizer, error) { return tokenizer.NewTikToken(tokenizer.DefaultEncoding) }
)
