package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"gitpilot/internal/domain"
)

// writeFunc is used to write content so tests can inject a failing implementation.
type writeFunc func(f *os.File, data []byte) (int, error)

// marshalFunc is the JSON marshaling function; tests may replace it to force errors.
type marshalFunc func(v any) ([]byte, error)

// TranscriptStore appends conversation turns to a JSONL file (one JSON object
// per line). It is an audit trail only: nothing is ever read back into a run.
type TranscriptStore struct {
	path      string
	mu        sync.Mutex
	writeFn   writeFunc   // nil means use f.Write
	marshalFn marshalFunc // nil means use json.Marshal
}

// NewTranscriptStore returns a TranscriptStore writing to the given JSONL path.
func NewTranscriptStore(path string) (*TranscriptStore, error) {
	if path == "" {
		return nil, errors.New("transcript: path must not be empty")
	}
	return &TranscriptStore{path: path}, nil
}

// Path returns the file the transcript is written to.
func (s *TranscriptStore) Path() string { return s.path }

// Append serializes a Turn to JSON and appends it as a single line, creating
// the file and its parent directory on first use.
func (s *TranscriptStore) Append(turn domain.Turn) error {
	marshal := json.Marshal
	if s.marshalFn != nil {
		marshal = s.marshalFn
	}
	data, err := marshal(turn)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	var writeErr error
	if s.writeFn != nil {
		_, writeErr = s.writeFn(f, data)
	} else {
		_, writeErr = f.Write(data)
	}
	closeErr := f.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// Ensure TranscriptStore implements domain.TranscriptStore.
var _ domain.TranscriptStore = (*TranscriptStore)(nil)
