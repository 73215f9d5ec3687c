package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gitpilot/internal/domain"
	"gitpilot/internal/session"
	"gitpilot/internal/tokenizer"
)

// ErrMaxTurnsExceeded is returned by Run when the model keeps requesting tools
// past the configured turn cap.
var ErrMaxTurnsExceeded = errors.New("brain: maximum turns exceeded")

// dryRunStatus is the placeholder payload every tool call receives in dry-run mode.
const dryRunStatus = "Dry run mode, command not executed."

// newID and now are package-level so tests can make turns deterministic.
var (
	newID = uuid.NewString
	now   = time.Now
)

// Option is a functional option for configuring Brain.
type Option func(*Brain)

// WithWorkDir sets the working directory named in the system preamble.
func WithWorkDir(dir string) Option {
	return func(b *Brain) { b.workDir = dir }
}

// WithDryRun makes every tool call return a placeholder instead of executing.
func WithDryRun(dryRun bool) Option {
	return func(b *Brain) { b.dryRun = dryRun }
}

// WithMaxTurns caps the number of model turns per Run. Zero (the default)
// means no cap; negative values are treated as zero.
func WithMaxTurns(n int) Option {
	return func(b *Brain) {
		if n > 0 {
			b.maxTurns = n
		}
	}
}

// WithReporter sets the audit reporter. If r is nil it is ignored.
func WithReporter(r Reporter) Option {
	return func(b *Brain) {
		if r != nil {
			b.reporter = r
		}
	}
}

// WithLogger sets a structured logger for the Brain. If l is nil it is ignored
// and the default slog logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(b *Brain) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTokenizer enables a per-turn conversation size estimate in debug logs.
func WithTokenizer(t domain.Tokenizer) Option {
	return func(b *Brain) {
		if t != nil {
			b.tokenizer = t
		}
	}
}

// WithTranscript mirrors every appended turn to an audit store.
func WithTranscript(s domain.TranscriptStore) Option {
	return func(b *Brain) {
		if s != nil {
			b.transcript = s
		}
	}
}

// WithFallbacks adds fallback models that are tried in order if the primary
// model fails. Nil entries are silently skipped.
func WithFallbacks(models ...domain.ChatModel) Option {
	return func(b *Brain) {
		for _, m := range models {
			if m != nil {
				b.fallbacks = append(b.fallbacks, m)
			}
		}
	}
}

// Brain runs the tool-calling loop: it asks the model what to do, executes
// the requested tools through the dispatcher and feeds results back until the
// model answers with plain text.
type Brain struct {
	model      domain.ChatModel
	fallbacks  []domain.ChatModel // optional; tried in order when model fails
	dispatcher *ToolDispatcher
	workDir    string
	dryRun     bool
	maxTurns   int // 0 means unbounded
	reporter   Reporter
	logger     *slog.Logger
	tokenizer  domain.Tokenizer       // optional
	transcript domain.TranscriptStore // optional
}

// NewBrain returns a Brain that uses the given model and dispatcher. Neither
// may be nil.
func NewBrain(model domain.ChatModel, dispatcher *ToolDispatcher, opts ...Option) *Brain {
	if model == nil {
		panic("brain: model must not be nil")
	}
	if dispatcher == nil {
		panic("brain: dispatcher must not be nil")
	}
	b := &Brain{
		model:      model,
		dispatcher: dispatcher,
		reporter:   nopReporter{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DryRun reports whether tool calls are simulated.
func (b *Brain) DryRun() bool { return b.dryRun }

// Run drives one invocation to completion and returns the model's final
// answer. Tool failures are fed back to the model; model failures (after
// fallbacks) abort the run.
func (b *Brain) Run(ctx context.Context, instruction string) (string, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", errors.New("brain: instruction must not be empty")
	}

	conv := session.NewConversation()
	b.record(conv,
		domain.Turn{ID: newID(), Role: domain.RoleSystem, Text: systemPreamble(b.workDir, instruction), Timestamp: now()},
		domain.Turn{ID: newID(), Role: domain.RoleUser, Text: instruction, Timestamp: now()},
	)
	tools := b.dispatcher.FormatToolsForLLM()

	for turn := 1; ; turn++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if b.maxTurns > 0 && turn > b.maxTurns {
			return "", fmt.Errorf("%w (%d)", ErrMaxTurnsExceeded, b.maxTurns)
		}
		b.logSize(conv, turn)

		resp, err := b.completeWithFailover(ctx, domain.ChatRequest{Turns: conv.Turns(), Tools: tools})
		if err != nil {
			return "", err
		}
		if resp == nil {
			return "", errors.New("brain: model returned no response")
		}

		calls := make([]domain.ToolCall, len(resp.ToolCalls))
		for i, c := range resp.ToolCalls {
			if c.ID == "" {
				c.ID = newID()
			}
			calls[i] = c
		}
		b.record(conv, domain.Turn{ID: newID(), Role: domain.RoleModel, Text: resp.Text, ToolCalls: calls, Timestamp: now()})

		if len(calls) == 0 {
			b.logger.Info("run complete", "turns", turn, "dry_run", b.dryRun)
			b.reporter.Answer(resp.Text)
			return resp.Text, nil
		}

		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			b.reporter.ToolCall(call)
			result := b.execute(ctx, call)
			b.reporter.ToolResult(call, result)
			b.record(conv, domain.Turn{
				ID:   newID(),
				Role: domain.RoleTool,
				Response: &domain.ToolResponse{
					CallID: call.ID,
					Name:   call.Name,
					Result: result,
				},
				Timestamp: now(),
			})
		}
	}
}

// execute dispatches one call, or synthesizes the placeholder in dry-run mode.
func (b *Brain) execute(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	if b.dryRun {
		b.logger.Debug("dry run: skipping tool", "tool", call.Name, "call_id", call.ID)
		return domain.ToolResult{Data: map[string]string{"status": dryRunStatus}}
	}
	start := time.Now()
	result := b.dispatcher.Execute(ctx, call)
	b.logger.Debug("tool executed",
		"tool", call.Name,
		"call_id", call.ID,
		"error", result.Error,
		"duration", time.Since(start),
	)
	return result
}

// completeWithFailover tries the primary model, then each fallback in order.
// Returns the first successful response, or an aggregated error if all fail.
func (b *Brain) completeWithFailover(ctx context.Context, req domain.ChatRequest) (*domain.ModelResponse, error) {
	resp, err := b.model.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	// No fallbacks configured: return primary error directly.
	if len(b.fallbacks) == 0 {
		return nil, err
	}

	errs := []error{err}
	for i, fb := range b.fallbacks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		b.logger.Warn("model failed, trying fallback",
			"fallback_index", i,
			"error", err,
		)

		resp, fbErr := fb.Complete(ctx, req)
		if fbErr == nil {
			return resp, nil
		}
		errs = append(errs, fbErr)
		err = fbErr
	}

	return nil, fmt.Errorf("brain: all %d models failed: %w", len(errs), errors.Join(errs...))
}

// record appends turns to the conversation and mirrors them to the transcript.
// Transcript failures are logged, never fatal.
func (b *Brain) record(conv *session.Conversation, turns ...domain.Turn) {
	conv.Append(turns...)
	if b.transcript == nil {
		return
	}
	for _, t := range turns {
		if err := b.transcript.Append(t); err != nil {
			b.logger.Warn("transcript append failed", "turn_id", t.ID, "error", err)
		}
	}
}

func (b *Brain) logSize(conv *session.Conversation, turn int) {
	if b.tokenizer == nil {
		return
	}
	tokens, err := tokenizer.CountTurns(b.tokenizer, conv.Turns())
	if err != nil {
		b.logger.Debug("token estimate failed", "error", err)
		return
	}
	b.logger.Debug("requesting model turn", "turn", turn, "turns_in_conversation", conv.Len(), "estimated_tokens", tokens)
}

// systemPreamble states the working directory and the user's goal.
func systemPreamble(workDir, goal string) string {
	if workDir == "" {
		workDir = "."
	}
	var sb strings.Builder
	sb.WriteString("You are gitpilot, an assistant that completes tasks in a single project directory by calling tools.\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workDir)
	fmt.Fprintf(&sb, "Goal: %s\n\n", goal)
	sb.WriteString("All paths are relative to the working directory. Paths outside it are refused. ")
	sb.WriteString("Call one tool at a time, inspect its result, and continue until the goal is met. ")
	sb.WriteString("When you are done, reply with a short summary and no tool calls.")
	return sb.String()
}
