package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gitpilot/internal/brain"
	"gitpilot/internal/cli"
	"gitpilot/internal/domain"
	"gitpilot/internal/security"
	"gitpilot/internal/tooling"
)

// fakeModel asks for its calls on the first turn, then answers.
type fakeModel struct {
	calls       []domain.ToolCall
	turns       int
	err         error
	instruction string
}

func (m *fakeModel) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ModelResponse, error) {
	m.turns++
	for _, turn := range req.Turns {
		if turn.Role == domain.RoleUser {
			m.instruction = turn.Text
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.turns == 1 && len(m.calls) > 0 {
		return &domain.ModelResponse{ToolCalls: m.calls}, nil
	}
	return &domain.ModelResponse{Text: "All done."}, nil
}

// setupApp isolates runApp in a temp working directory with a fake model.
// It returns the directory and the config the agent was built with.
func setupApp(t *testing.T, model domain.ChatModel) (string, *domain.Config) {
	t.Helper()
	dir := t.TempDir()
	for _, k := range []string{"GITPILOT_CONFIG", "GITPILOT_PROVIDER", "GITPILOT_MODEL", "GITPILOT_MAX_TURNS", "GITPILOT_DRY_RUN"} {
		t.Setenv(k, "")
	}
	origEUID, origWd, origBuild := euidGetter, getwd, buildAgent
	euidGetter = func() int { return 1000 }
	getwd = func() (string, error) { return dir, nil }
	got := &domain.Config{}
	buildAgent = func(cfg *domain.Config, workDir string, out io.Writer, logger *slog.Logger, _ cli.AgentDeps) (*brain.Brain, error) {
		*got = *cfg
		guard, err := security.NewPathGuard(workDir)
		if err != nil {
			return nil, err
		}
		reg, err := tooling.NewDefaultRegistry(guard, &tooling.OsFileSystem{}, &tooling.ExecCommandRunner{})
		if err != nil {
			return nil, err
		}
		return brain.NewBrain(model, brain.NewToolDispatcher(reg),
			brain.WithWorkDir(guard.Root()),
			brain.WithDryRun(cfg.Agent.DryRun),
			brain.WithMaxTurns(cfg.Agent.MaxTurns),
			brain.WithReporter(brain.NewConsoleReporter(out)),
			brain.WithLogger(logger),
		), nil
	}
	t.Cleanup(func() { euidGetter, getwd, buildAgent = origEUID, origWd, origBuild })
	return dir, got
}

func run(args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := runApp(append([]string{"gitpilot"}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeCall(path string) domain.ToolCall {
	return domain.ToolCall{ID: "1", Name: "write_file", Arguments: map[string]any{"path": path, "content": "hi"}}
}

// =============================================================================
// Version
// =============================================================================

func TestRootCommand_WhenVersionFlag_ShouldPrintBuildMetadata(t *testing.T) {
	out := &bytes.Buffer{}
	root := newRootCommand(newBuildMeta("1.0.8", "linux", "amd64"))
	root.SetOut(out)
	root.SetArgs([]string{"--version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "gitpilot 1.0.8 linux/amd64\n" {
		t.Errorf("unexpected version output %q", got)
	}
}

func TestRootCommand_WhenVersionShortFlag_ShouldPrintBuildMetadata(t *testing.T) {
	out := &bytes.Buffer{}
	root := newRootCommand(newBuildMeta("2.0.0", "darwin", "arm64"))
	root.SetOut(out)
	root.SetArgs([]string{"-V"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "2.0.0 darwin/arm64") {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestNewBuildMeta_WhenPlatformEmpty_ShouldUseRuntime(t *testing.T) {
	bm := newBuildMeta("x", "", "")
	if bm.GoOS == "" || bm.GoArch == "" {
		t.Errorf("expected runtime platform, got %+v", bm)
	}
}

func TestGetVersion_WhenLdflagSet_ShouldReturnIt(t *testing.T) {
	orig := version
	version = "9.9.9"
	defer func() { version = orig }()
	if got := getVersion(); got != "9.9.9" {
		t.Errorf("expected ldflag version, got %q", got)
	}
}

// =============================================================================
// runApp
// =============================================================================

func TestRunApp_WhenInstructionGiven_ShouldRunToolsAndPrintAnswer(t *testing.T) {
	dir, _ := setupApp(t, &fakeModel{calls: []domain.ToolCall{writeCall("hello.txt")}})

	code, out, errOut := run("create", "hello.txt")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "> write_file") || !strings.Contains(out, "All done.") {
		t.Errorf("expected reported call and answer, got %q", out)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "hello.txt")); err != nil || string(data) != "hi" {
		t.Errorf("expected file written, got %q %v", data, err)
	}
}

func TestRootCommand_WhenPositionalInstruction_ShouldReachRunE(t *testing.T) {
	setupApp(t, &fakeModel{})
	root := newRootCommand(newBuildMeta("1.0.0", "linux", "amd64"))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"list the files"})

	if err := root.Execute(); err != nil {
		t.Fatalf("expected instruction accepted, got %v", err)
	}
}

func TestRunApp_WhenInstructionUnquoted_ShouldJoinWordsForModel(t *testing.T) {
	model := &fakeModel{}
	_, cfg := setupApp(t, model)
	cfg.Agent.Provider = "unset"

	code, _, errOut := run("create", "hello.txt", "with", "a", "greeting")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if cfg.Agent.Provider == "unset" {
		t.Error("expected buildAgent to be called")
	}
	if model.instruction != "create hello.txt with a greeting" {
		t.Errorf("expected joined instruction, got %q", model.instruction)
	}
}

func TestRunApp_WhenInstructionStartsWithCheckAfterDashes_ShouldRunAgent(t *testing.T) {
	model := &fakeModel{}
	setupApp(t, model)

	code, out, errOut := run("--", "check", "the", "README")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if model.instruction != "check the README" || !strings.Contains(out, "All done.") {
		t.Errorf("expected agent run, got instruction %q output %q", model.instruction, out)
	}
}

func TestRunApp_WhenInstructionStartsWithCheckQuoted_ShouldRunAgent(t *testing.T) {
	model := &fakeModel{}
	setupApp(t, model)

	if code, _, errOut := run("check the README"); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if model.instruction != "check the README" {
		t.Errorf("unexpected instruction %q", model.instruction)
	}
}

func TestRunApp_WhenDryRun_ShouldNotWrite(t *testing.T) {
	dir, cfg := setupApp(t, &fakeModel{calls: []domain.ToolCall{writeCall("hello.txt")}})

	code, out, errOut := run("--dry-run", "create hello.txt")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if !cfg.Agent.DryRun {
		t.Error("expected dry run passed to agent")
	}
	if !strings.Contains(errOut, "Dry run") || !strings.Contains(out, "Dry run mode, command not executed.") {
		t.Errorf("expected dry run notice and placeholder, got %q / %q", out, errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, "hello.txt")); !os.IsNotExist(err) {
		t.Errorf("expected no file in dry run, got %v", err)
	}
}

func TestRunApp_WhenNoInstruction_ShouldExitOne(t *testing.T) {
	setupApp(t, &fakeModel{})
	code, _, errOut := run()
	if code != 1 || !strings.Contains(errOut, "instruction is required") {
		t.Errorf("expected usage error, got %d %q", code, errOut)
	}
}

func TestRunApp_WhenRunningAsRoot_ShouldExitTwo(t *testing.T) {
	setupApp(t, &fakeModel{})
	euidGetter = func() int { return 0 }

	code, _, errOut := run("do something")
	if code != 2 || !strings.Contains(errOut, "root") {
		t.Errorf("expected exit 2, got %d %q", code, errOut)
	}
}

func TestRunApp_WhenMaxTurnsExceeded_ShouldExitOne(t *testing.T) {
	loop := &loopModel{}
	setupApp(t, loop)

	code, _, errOut := run("--max-turns", "2", "never finish")
	if code != 1 || !strings.Contains(errOut, "maximum turns exceeded (2)") {
		t.Errorf("expected max turns error, got %d %q", code, errOut)
	}
	if loop.turns != 2 {
		t.Errorf("expected exactly 2 model turns, got %d", loop.turns)
	}
}

func TestRunApp_WhenMaxTurnsNegative_ShouldExitOne(t *testing.T) {
	setupApp(t, &fakeModel{})
	if code, _, _ := run("--max-turns", "-1", "x"); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
}

func TestRunApp_ShouldApplyFlagOverridesOverConfigFile(t *testing.T) {
	dir, cfg := setupApp(t, &fakeModel{})
	body := "agent:\n  provider: openai\n  model: gpt-4o\n  maxTurns: 7\n"
	path := filepath.Join(dir, "gitpilot.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, errOut := run("--config", path, "--model", "gpt-4o-mini", "hi")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if cfg.Agent.Provider != "openai" || cfg.Agent.Model != "gpt-4o-mini" || cfg.Agent.MaxTurns != 7 {
		t.Errorf("unexpected effective config %+v", cfg.Agent)
	}
}

func TestRunApp_WhenConfigInvalid_ShouldExitOne(t *testing.T) {
	dir, _ := setupApp(t, &fakeModel{})
	path := filepath.Join(dir, "gitpilot.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if code, _, errOut := run("hi"); code != 1 || !strings.Contains(errOut, "config parse") {
		t.Errorf("expected config error, got %d %q", code, errOut)
	}
}

func TestRunApp_WhenLogLevelInvalid_ShouldExitOne(t *testing.T) {
	setupApp(t, &fakeModel{})
	if code, _, errOut := run("--log-level", "loud", "hi"); code != 1 || !strings.Contains(errOut, "unknown log level") {
		t.Errorf("expected log level error, got %d %q", code, errOut)
	}
}

func TestRunApp_WhenInterrupted_ShouldReportInterrupted(t *testing.T) {
	setupApp(t, &fakeModel{err: context.Canceled})
	orig := signalContext
	signalContext = func(parent context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(parent)
		cancel()
		return ctx, cancel
	}
	defer func() { signalContext = orig }()

	if code, _, errOut := run("hi"); code != 1 || !strings.Contains(errOut, "interrupted") {
		t.Errorf("expected interrupted, got %d %q", code, errOut)
	}
}

func TestRunApp_CheckSubcommand_ShouldPassConfigAndFix(t *testing.T) {
	dir, _ := setupApp(t, &fakeModel{})
	path := filepath.Join(dir, "custom.json")

	code, out, _ := run("check", "--fix", "--config", path)
	if !strings.Contains(out, "Wrote default config to "+path) {
		t.Errorf("expected default config written, got %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file: %v", err)
	}
	if code != 0 && code != 1 {
		t.Errorf("unexpected exit code %d", code)
	}
}

// loopModel always asks for another tool call.
type loopModel struct{ turns int }

func (m *loopModel) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ModelResponse, error) {
	m.turns++
	return &domain.ModelResponse{ToolCalls: []domain.ToolCall{{Name: "get_current_directory"}}}, nil
}
