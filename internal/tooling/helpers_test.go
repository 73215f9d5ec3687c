package tooling

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gitpilot/internal/domain"
	"gitpilot/internal/security"
)

// newTestGuard returns a guard rooted at a fresh temporary directory.
func newTestGuard(t *testing.T) *security.PathGuard {
	t.Helper()
	g, err := security.NewPathGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewPathGuard: %v", err)
	}
	return g
}

// writeTestFile creates root/rel with content, creating parents.
func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// callTool marshals args and invokes tool.Call.
func callTool(t *testing.T, tool SchemaTool, args any) (*domain.ToolResult, error) {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return tool.Call(context.Background(), raw)
}

// =============================================================================
// mockFileSystem: in-memory FileSystem with error injection
// =============================================================================

type mockFileSystem struct {
	entries      []DirEntry
	files        map[string][]byte
	stat         DirEntry
	readDirErr   error
	readFileErr  error
	writeErr     error
	statErr      error
	renameErr    error
	removeErr    error
	removeAllErr error
	mkdirErr     error

	written map[string][]byte
	renamed [2]string
	removed []string
}

func (m *mockFileSystem) ReadDir(path string) ([]DirEntry, error) {
	return m.entries, m.readDirErr
}

func (m *mockFileSystem) ReadFile(path string) ([]byte, error) {
	if m.readFileErr != nil {
		return nil, m.readFileErr
	}
	return m.files[filepath.Base(path)], nil
}

func (m *mockFileSystem) WriteFile(path string, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if m.written == nil {
		m.written = make(map[string][]byte)
	}
	m.written[path] = data
	return nil
}

func (m *mockFileSystem) Stat(path string) (DirEntry, error) { return m.stat, m.statErr }

func (m *mockFileSystem) Rename(src, dst string) error {
	m.renamed = [2]string{src, dst}
	return m.renameErr
}

func (m *mockFileSystem) Remove(path string) error {
	m.removed = append(m.removed, path)
	return m.removeErr
}

func (m *mockFileSystem) RemoveAll(path string) error {
	m.removed = append(m.removed, path)
	return m.removeAllErr
}

func (m *mockFileSystem) MkdirAll(path string) error { return m.mkdirErr }
