package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"gitpilot/internal/cli"
	"gitpilot/internal/logging"
	"gitpilot/internal/security"
	"gitpilot/internal/signals"
)

// buildMeta holds version and build metadata (injectable via ldflags).
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(version, goos, goarch string) buildMeta {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return buildMeta{Version: version, GoOS: goos, GoArch: goarch}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("gitpilot %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

// version is set at build time via ldflags, e.g.:
//
//	go build -ldflags "-X main.version=0.3.0" -o gitpilot ./cmd/gitpilot
var version string

// Test seams. Production leaves them at their defaults.
var (
	euidGetter    = security.EffectiveUIDGetter()
	getwd         = os.Getwd
	signalContext = signals.Context
	buildAgent    = cli.NewAgent
)

func getVersion() string {
	if version != "" {
		return version
	}
	b, err := os.ReadFile("VERSION")
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(string(b))
}

func newRootCommand(bm buildMeta) *cobra.Command {
	root := &cobra.Command{
		Use:   "gitpilot [flags] <instruction...>",
		Short: "Let a language model work on the current directory with file and git tools",
		Long: "gitpilot sends your instruction to a language model and runs the file and git\n" +
			"operations it asks for, confined to the current directory, until it answers.\n\n" +
			"An instruction that starts with the word \"check\" must be quoted or follow --,\n" +
			"e.g. gitpilot -- check the README for typos.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
				return nil
			}
			return runAgent(cmd, args)
		},
	}
	flags := root.Flags()
	flags.BoolP("version", "V", false, "print version and build metadata")
	flags.BoolP("dry-run", "n", false, "show the tool calls the model asks for without executing them")
	flags.Int("max-turns", 0, "stop after this many model turns (0 = no limit; default from config)")
	flags.String("provider", "", "reasoning service: gemini, openai, anthropic, openrouter or ollama")
	flags.String("model", "", "model name for the provider")
	flags.StringP("config", "c", "", "config file (.json, .yaml or .toml; default ./gitpilot.json)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("transcript", "", "append every conversation turn to this JSONL file")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check config, API key, git and the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fix, _ := cmd.Flags().GetBool("fix")
			cfgPath, _ := cmd.Flags().GetString("config")
			code := cli.RunCheck(cli.CheckOptions{ConfigPath: cfgPath, Fix: fix}, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if code != 0 {
				return exitCodeErr(code)
			}
			return nil
		},
	}
	checkCmd.Flags().Bool("fix", false, "write default config if missing")
	checkCmd.Flags().StringP("config", "c", "", "config file to check")
	root.AddCommand(checkCmd)

	return root
}

// overridesFromFlags returns only the flags the user actually set.
func overridesFromFlags(cmd *cobra.Command) cli.Overrides {
	var o cli.Overrides
	flags := cmd.Flags()
	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	o.Provider = str("provider")
	o.Model = str("model")
	o.LogLevel = str("log-level")
	o.Transcript = str("transcript")
	if flags.Changed("max-turns") {
		n, _ := flags.GetInt("max-turns")
		o.MaxTurns = &n
	}
	if flags.Changed("dry-run") {
		b, _ := flags.GetBool("dry-run")
		o.DryRun = &b
	}
	return o
}

func runAgent(cmd *cobra.Command, args []string) error {
	instruction := strings.TrimSpace(strings.Join(args, " "))
	if instruction == "" {
		return errors.New("an instruction is required, e.g. gitpilot \"create a README and commit it\"")
	}
	if n, _ := cmd.Flags().GetInt("max-turns"); n < 0 {
		return fmt.Errorf("--max-turns must not be negative, got %d", n)
	}
	if err := security.RequireNonRoot(euidGetter); err != nil {
		return err
	}
	workDir, err := getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}

	cfgFlag, _ := cmd.Flags().GetString("config")
	cfg, err := cli.LoadConfig(cli.ConfigPath(cfgFlag, workDir), overridesFromFlags(cmd))
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(cfg.Infra, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	agent, err := buildAgent(cfg, workDir, cmd.OutOrStdout(), logger, cli.AgentDeps{})
	if err != nil {
		return err
	}
	if agent.DryRun() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Dry run: tool calls are shown but not executed.")
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	_, err = agent.Run(ctx, instruction)
	if errors.Is(err, context.Canceled) {
		return errors.New("interrupted")
	}
	return err
}

// exitCodeErr carries an exit code for the process. When returned from a command, runApp exits with that code.
type exitCodeErr int

func (e exitCodeErr) Error() string { return fmt.Sprintf("exit %d", int(e)) }
func (e exitCodeErr) ExitCode() int { return int(e) }

// runApp runs the root command with the given args and returns the exit code (0, 1, or 2).
func runApp(args []string, stdout, stderr io.Writer) int {
	bm := newBuildMeta(getVersion(), "", "")
	root := newRootCommand(bm)
	root.SetArgs(args[1:])
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if errors.Is(err, security.ErrRunningAsRoot) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		var ec interface{ ExitCode() int }
		if errors.As(err, &ec) {
			return ec.ExitCode()
		}
		fmt.Fprintln(stderr, "gitpilot:", err)
		return 1
	}
	return 0
}
