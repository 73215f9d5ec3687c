package tooling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"

	"gitpilot/internal/domain"
	"gitpilot/internal/security"
)

// fsTool is embedded by every filesystem tool. All paths are confined by guard.
type fsTool struct {
	guard *security.PathGuard
	fs    FileSystem
}

// BinaryContentError reports file content in a recognised binary format.
type BinaryContentError struct {
	Extension string
	MIME      string
}

func (e *BinaryContentError) Error() string {
	return fmt.Sprintf("detected binary %s (%s) content", e.Extension, e.MIME)
}

// textContent converts file bytes to text. Formats filetype recognises are
// refused with a *BinaryContentError; other invalid UTF-8 sequences are
// replaced with U+FFFD.
func textContent(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	if kind, _ := filetype.Match(data); kind != filetype.Unknown {
		return "", &BinaryContentError{Extension: kind.Extension, MIME: kind.MIME.Value}
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}

// =============================================================================
// list_files
// =============================================================================

// ListFilesInput is the input for list_files.
type ListFilesInput struct {
	Path string `json:"path" jsonschema_description:"Directory to list. Relative paths are resolved against the working directory."`
}

// ListFilesTool lists one directory without recursing. Directories carry a trailing slash.
type ListFilesTool struct{ fsTool }

func NewListFilesTool(guard *security.PathGuard, fs FileSystem) *ListFilesTool {
	return &ListFilesTool{fsTool{guard: guard, fs: fs}}
}

func (t *ListFilesTool) Name() string { return "list_files" }

func (t *ListFilesTool) Description() string {
	return "Lists the files and directories directly inside a directory (not recursive). Directory names end with '/'."
}

func (t *ListFilesTool) Definition() string { return GenerateSchema(ListFilesInput{}) }

func (t *ListFilesTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var input ListFilesInput
	if err := decodeInput(args, &input); err != nil {
		return nil, err
	}
	resolved, err := t.guard.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	entries, err := t.fs.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		names = append(names, name)
	}
	return &domain.ToolResult{
		Data: names,
		Metadata: map[string]string{
			"operation": "list_files",
			"path":      resolved,
			"count":     strconv.Itoa(len(names)),
		},
	}, nil
}

// =============================================================================
// read_file
// =============================================================================

// ReadFileInput is the input for read_file.
type ReadFileInput struct {
	Path string `json:"path" jsonschema_description:"File to read."`
}

// ReadFileTool returns the text contents of a file.
type ReadFileTool struct{ fsTool }

func NewReadFileTool(guard *security.PathGuard, fs FileSystem) *ReadFileTool {
	return &ReadFileTool{fsTool{guard: guard, fs: fs}}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Reads a file and returns its contents as text."
}

func (t *ReadFileTool) Definition() string { return GenerateSchema(ReadFileInput{}) }

func (t *ReadFileTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var input ReadFileInput
	if err := decodeInput(args, &input); err != nil {
		return nil, err
	}
	resolved, err := t.guard.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	data, err := t.fs.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	text, err := textContent(data)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s as text: %w", input.Path, err)
	}
	return &domain.ToolResult{
		Data: text,
		Metadata: map[string]string{
			"operation": "read_file",
			"path":      input.Path,
			"bytes":     strconv.Itoa(len(data)),
		},
	}, nil
}

// =============================================================================
// write_file
// =============================================================================

// WriteFileInput is the input for write_file.
type WriteFileInput struct {
	Path    string `json:"path" jsonschema_description:"File to create or overwrite."`
	Content string `json:"content" jsonschema_description:"Full text content to write."`
}

// WriteFileTool creates or overwrites a file, creating missing parent directories.
type WriteFileTool struct{ fsTool }

func NewWriteFileTool(guard *security.PathGuard, fs FileSystem) *WriteFileTool {
	return &WriteFileTool{fsTool{guard: guard, fs: fs}}
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Writes text content to a file, creating it or replacing its existing content."
}

func (t *WriteFileTool) Definition() string { return GenerateSchema(WriteFileInput{}) }

func (t *WriteFileTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var input WriteFileInput
	if err := decodeInput(args, &input); err != nil {
		return nil, err
	}
	resolved, err := t.guard.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	if err := t.fs.MkdirAll(filepath.Dir(resolved)); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := t.fs.WriteFile(resolved, []byte(input.Content)); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	return &domain.ToolResult{
		Data: fmt.Sprintf("Successfully wrote %d bytes to %s", len(input.Content), input.Path),
		Metadata: map[string]string{
			"operation":     "write_file",
			"path":          input.Path,
			"bytes_written": strconv.Itoa(len(input.Content)),
		},
	}, nil
}

// =============================================================================
// move_file
// =============================================================================

// MoveFileInput is the input for move_file.
type MoveFileInput struct {
	Source      string `json:"source" jsonschema_description:"Existing file or directory to move."`
	Destination string `json:"destination" jsonschema_description:"New path."`
}

// MoveFileTool renames or moves a file. Both paths are confined independently.
// Destination directories created for a move that then fails are removed again.
type MoveFileTool struct{ fsTool }

func NewMoveFileTool(guard *security.PathGuard, fs FileSystem) *MoveFileTool {
	return &MoveFileTool{fsTool{guard: guard, fs: fs}}
}

func (t *MoveFileTool) Name() string { return "move_file" }

func (t *MoveFileTool) Description() string {
	return "Moves or renames a file from source to destination."
}

func (t *MoveFileTool) Definition() string { return GenerateSchema(MoveFileInput{}) }

func (t *MoveFileTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var input MoveFileInput
	if err := decodeInput(args, &input); err != nil {
		return nil, err
	}
	src, err := t.guard.Resolve(input.Source)
	if err != nil {
		return nil, err
	}
	dst, err := t.guard.Resolve(input.Destination)
	if err != nil {
		return nil, err
	}
	if src == t.guard.Root() {
		return nil, fmt.Errorf("refusing to move the working directory itself")
	}
	created := t.missingDirs(filepath.Dir(dst))
	if err := t.fs.MkdirAll(filepath.Dir(dst)); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := t.fs.Rename(src, dst); err != nil {
		for _, dir := range created {
			_ = t.fs.Remove(dir)
		}
		return nil, fmt.Errorf("failed to move file: %w", err)
	}
	return &domain.ToolResult{
		Data: fmt.Sprintf("Moved %s to %s", input.Source, input.Destination),
		Metadata: map[string]string{
			"operation":   "move_file",
			"source":      input.Source,
			"destination": input.Destination,
		},
	}, nil
}

// missingDirs lists the directories from dir up to the root that do not exist
// yet, deepest first.
func (t *MoveFileTool) missingDirs(dir string) []string {
	var missing []string
	for dir != t.guard.Root() && security.Within(t.guard.Root(), dir) {
		if _, err := t.fs.Stat(dir); !errors.Is(err, fs.ErrNotExist) {
			break
		}
		missing = append(missing, dir)
		dir = filepath.Dir(dir)
	}
	return missing
}

// =============================================================================
// delete_file
// =============================================================================

// DeleteFileInput is the input for delete_file.
type DeleteFileInput struct {
	Path string `json:"path" jsonschema_description:"File to delete. Directories are refused."`
}

// DeleteFileTool removes a single file.
type DeleteFileTool struct{ fsTool }

func NewDeleteFileTool(guard *security.PathGuard, fs FileSystem) *DeleteFileTool {
	return &DeleteFileTool{fsTool{guard: guard, fs: fs}}
}

func (t *DeleteFileTool) Name() string { return "delete_file" }

func (t *DeleteFileTool) Description() string {
	return "Deletes a single file. Use delete_directory for directories."
}

func (t *DeleteFileTool) Definition() string { return GenerateSchema(DeleteFileInput{}) }

func (t *DeleteFileTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var input DeleteFileInput
	if err := decodeInput(args, &input); err != nil {
		return nil, err
	}
	resolved, err := t.guard.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	info, err := t.fs.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to delete file: %w", err)
	}
	if info.IsDir {
		return nil, fmt.Errorf("%s is a directory; use delete_directory", input.Path)
	}
	if err := t.fs.Remove(resolved); err != nil {
		return nil, fmt.Errorf("failed to delete file: %w", err)
	}
	return &domain.ToolResult{
		Data: fmt.Sprintf("Deleted file %s", input.Path),
		Metadata: map[string]string{
			"operation": "delete_file",
			"path":      input.Path,
		},
	}, nil
}
