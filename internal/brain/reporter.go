package brain

import (
	"fmt"
	"io"
	"sync"

	"gitpilot/internal/domain"
)

// Reporter receives every intended tool call, its result and the final
// answer, in that order, so an operator can audit a run. Dry runs and real
// runs report the same call sequence.
type Reporter interface {
	ToolCall(call domain.ToolCall)
	ToolResult(call domain.ToolCall, result domain.ToolResult)
	Answer(text string)
}

// ConsoleReporter prints the audit trail as plain text.
type ConsoleReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleReporter returns a reporter writing to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (r *ConsoleReporter) ToolCall(call domain.ToolCall) {
	r.printf("> %s %s\n", call.Name, call.ArgumentsJSON())
}

func (r *ConsoleReporter) ToolResult(call domain.ToolCall, result domain.ToolResult) {
	if result.IsError() {
		r.printf("< %s error: %s\n", call.Name, result.Error)
		return
	}
	r.printf("< %s %s\n", call.Name, result.Text())
}

func (r *ConsoleReporter) Answer(text string) {
	r.printf("\n%s\n", text)
}

func (r *ConsoleReporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, args...)
}

// nopReporter discards everything.
type nopReporter struct{}

func (nopReporter) ToolCall(domain.ToolCall)                      {}
func (nopReporter) ToolResult(domain.ToolCall, domain.ToolResult) {}
func (nopReporter) Answer(string)                                 {}
