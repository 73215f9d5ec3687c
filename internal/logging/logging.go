package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"gitpilot/internal/domain"
)

// openFile is swapped in tests to force log file errors.
var openFile = func(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// ParseLevel maps debug, info, warn/warning and error (any case) to a slog level.
// An empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New builds the process logger. The console handler writes to w as text or
// JSON per cfg.LogFormat; when cfg.LogFile is set, records also fan out to that
// file as JSON. The returned close func releases the file and is never nil.
func New(cfg domain.InfraConfig, w io.Writer) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "", "text":
		console = slog.NewTextHandler(w, opts)
	case "json":
		console = slog.NewJSONHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q (use text or json)", cfg.LogFormat)
	}

	if cfg.LogFile == "" {
		return slog.New(console), func() error { return nil }, nil
	}
	f, err := openFile(cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := slogmulti.Fanout(console, slog.NewJSONHandler(f, opts))
	return slog.New(handler), f.Close, nil
}
