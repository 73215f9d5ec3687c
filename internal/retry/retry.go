package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"gitpilot/internal/domain"
)

// =============================================================================
// Config
// =============================================================================

// Config controls retry behaviour for reasoning-service calls.
type Config struct {
	MaxRetries     int           `json:"maxRetries"`     // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration `json:"initialBackoff"` // Delay before first retry
	MaxBackoff     time.Duration `json:"maxBackoff"`     // Upper bound on backoff duration
	Multiplier     float64       `json:"multiplier"`     // Backoff multiplier (e.g. 2.0 for exponential)
}

// DefaultConfig returns sensible retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Validate checks that all Config fields are within acceptable ranges.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("retry: MaxRetries must be >= 0")
	}
	if c.InitialBackoff <= 0 {
		return errors.New("retry: InitialBackoff must be > 0")
	}
	if c.MaxBackoff <= 0 {
		return errors.New("retry: MaxBackoff must be > 0")
	}
	if c.Multiplier < 1.0 {
		return errors.New("retry: Multiplier must be >= 1.0")
	}
	return nil
}

// =============================================================================
// Error Classification
// =============================================================================

// statusCoder is implemented by errors that carry an HTTP status code.
type statusCoder interface {
	StatusCode() int
}

// retryableStatusCodes are HTTP status codes that indicate a transient failure.
var retryableStatusCodes = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true, 529: true}

// IsRetryable returns true when err represents a transient failure that may
// succeed on retry (429, 5xx, timeout, connection refused, EOF).
// Context errors (Canceled, DeadlineExceeded) are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return retryableStatusCodes[sc.StatusCode()]
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	for code := range retryableStatusCodes {
		if strings.Contains(msg, fmt.Sprintf("api: %d", code)) {
			return true
		}
	}
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF")
}

// =============================================================================
// RetryableModel (Decorator)
// =============================================================================

// RetryableModel wraps a ChatModel with retry-on-transient-error logic.
type RetryableModel struct {
	inner     domain.ChatModel
	config    Config
	logger    *slog.Logger
	sleepFunc func(ctx context.Context, d time.Duration) error // injectable for testing
}

// NewRetryableModel returns a decorator that retries Complete calls on
// transient errors. inner must not be nil.
func NewRetryableModel(inner domain.ChatModel, cfg Config) *RetryableModel {
	if inner == nil {
		panic("retry: inner model must not be nil")
	}
	return &RetryableModel{
		inner:     inner,
		config:    cfg,
		logger:    slog.Default(),
		sleepFunc: sleepContext,
	}
}

// Complete calls the inner model and retries on transient errors with
// exponential backoff. Returns the first successful response, or the last
// error after retries are exhausted.
func (m *RetryableModel) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ModelResponse, error) {
	var lastErr error
	backoff := m.config.InitialBackoff

	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		resp, err := m.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
		if attempt == m.config.MaxRetries {
			break
		}

		m.logger.Warn("model call failed, retrying",
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if err := m.sleepFunc(ctx, backoff); err != nil {
			return nil, err
		}

		next := time.Duration(float64(backoff) * m.config.Multiplier)
		if next > m.config.MaxBackoff {
			next = m.config.MaxBackoff
		}
		backoff = next
	}

	return nil, fmt.Errorf("retries exhausted after %d attempts: %w", m.config.MaxRetries+1, lastErr)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Compile-time check that RetryableModel implements ChatModel.
var _ domain.ChatModel = (*RetryableModel)(nil)
