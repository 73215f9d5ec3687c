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

	"gitpilot/internal/domain"
	"gitpilot/internal/security"
)

// treeIndent is the indentation added per nesting level in list_directory_tree.
const treeIndent = "  "

// =============================================================================
// create_directory
// =============================================================================

// CreateDirectoryInput is the input for create_directory.
type CreateDirectoryInput struct {
	Path string `json:"path" jsonschema_description:"Directory to create. Missing parents are created too."`
}

// CreateDirectoryTool creates a directory and any missing parents.
type CreateDirectoryTool struct{ fsTool }

func NewCreateDirectoryTool(guard *security.PathGuard, fs FileSystem) *CreateDirectoryTool {
	return &CreateDirectoryTool{fsTool{guard: guard, fs: fs}}
}

func (t *CreateDirectoryTool) Name() string { return "create_directory" }

func (t *CreateDirectoryTool) Description() string {
	return "Creates a directory, including any missing parent directories."
}

func (t *CreateDirectoryTool) Definition() string { return GenerateSchema(CreateDirectoryInput{}) }

func (t *CreateDirectoryTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var input CreateDirectoryInput
	if err := decodeInput(args, &input); err != nil {
		return nil, err
	}
	resolved, err := t.guard.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	if err := t.fs.MkdirAll(resolved); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &domain.ToolResult{
		Data: fmt.Sprintf("Created directory %s", input.Path),
		Metadata: map[string]string{
			"operation": "create_directory",
			"path":      input.Path,
		},
	}, nil
}

// =============================================================================
// delete_directory
// =============================================================================

// DeleteDirectoryInput is the input for delete_directory.
type DeleteDirectoryInput struct {
	Path string `json:"path" jsonschema_description:"Directory to delete together with everything inside it."`
}

// DeleteDirectoryTool removes a directory tree. A missing directory is not an error.
type DeleteDirectoryTool struct{ fsTool }

func NewDeleteDirectoryTool(guard *security.PathGuard, fs FileSystem) *DeleteDirectoryTool {
	return &DeleteDirectoryTool{fsTool{guard: guard, fs: fs}}
}

func (t *DeleteDirectoryTool) Name() string { return "delete_directory" }

func (t *DeleteDirectoryTool) Description() string {
	return "Deletes a directory and all of its contents. Succeeds if the directory does not exist."
}

func (t *DeleteDirectoryTool) Definition() string { return GenerateSchema(DeleteDirectoryInput{}) }

func (t *DeleteDirectoryTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var input DeleteDirectoryInput
	if err := decodeInput(args, &input); err != nil {
		return nil, err
	}
	resolved, err := t.guard.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	if resolved == t.guard.Root() {
		return nil, fmt.Errorf("refusing to delete the working directory itself")
	}
	info, err := t.fs.Stat(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &domain.ToolResult{
			Data: fmt.Sprintf("Directory %s does not exist; nothing to delete", input.Path),
			Metadata: map[string]string{
				"operation": "delete_directory",
				"path":      input.Path,
				"existed":   "false",
			},
		}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to delete directory: %w", err)
	case !info.IsDir:
		return nil, fmt.Errorf("%s is not a directory; use delete_file", input.Path)
	}
	if err := t.fs.RemoveAll(resolved); err != nil {
		return nil, fmt.Errorf("failed to delete directory: %w", err)
	}
	return &domain.ToolResult{
		Data: fmt.Sprintf("Deleted directory %s", input.Path),
		Metadata: map[string]string{
			"operation": "delete_directory",
			"path":      input.Path,
			"existed":   "true",
		},
	}, nil
}

// =============================================================================
// list_directory_tree
// =============================================================================

// DirectoryTreeInput is the input for list_directory_tree.
type DirectoryTreeInput struct {
	Path string `json:"path" jsonschema_description:"Directory whose full tree is listed."`
}

// DirectoryTreeTool lists a directory recursively: at each level directories
// come first then files, each sorted by name; directories end with "/" and
// nested entries are indented two spaces per level.
type DirectoryTreeTool struct{ fsTool }

func NewDirectoryTreeTool(guard *security.PathGuard, fs FileSystem) *DirectoryTreeTool {
	return &DirectoryTreeTool{fsTool{guard: guard, fs: fs}}
}

func (t *DirectoryTreeTool) Name() string { return "list_directory_tree" }

func (t *DirectoryTreeTool) Description() string {
	return "Lists a directory recursively as an indented tree. Directory names end with '/'; each nesting level adds two spaces of indentation."
}

func (t *DirectoryTreeTool) Definition() string { return GenerateSchema(DirectoryTreeInput{}) }

func (t *DirectoryTreeTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var input DirectoryTreeInput
	if err := decodeInput(args, &input); err != nil {
		return nil, err
	}
	resolved, err := t.guard.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	lines := []string{}
	if err := t.walk(ctx, resolved, 0, &lines); err != nil {
		return nil, fmt.Errorf("failed to list directory tree: %w", err)
	}
	return &domain.ToolResult{
		Data: lines,
		Metadata: map[string]string{
			"operation": "list_directory_tree",
			"path":      input.Path,
			"entries":   strconv.Itoa(len(lines)),
		},
	}, nil
}

func (t *DirectoryTreeTool) walk(ctx context.Context, dir string, depth int, lines *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := t.fs.ReadDir(dir)
	if err != nil {
		return err
	}
	prefix := strings.Repeat(treeIndent, depth)
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		*lines = append(*lines, prefix+e.Name+"/")
		if err := t.walk(ctx, filepath.Join(dir, e.Name), depth+1, lines); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		*lines = append(*lines, prefix+e.Name)
	}
	return nil
}

// =============================================================================
// read_directory_files
// =============================================================================

// ReadDirectoryFilesInput is the input for read_directory_files.
type ReadDirectoryFilesInput struct {
	Path string `json:"path" jsonschema_description:"Directory whose regular files are read (not recursive)."`
}

// ReadDirectoryFilesTool returns filename -> content for every regular file
// directly inside a directory. Subdirectories and other entries are skipped.
// Recognised binary files map to a placeholder naming their kind.
type ReadDirectoryFilesTool struct{ fsTool }

func NewReadDirectoryFilesTool(guard *security.PathGuard, fs FileSystem) *ReadDirectoryFilesTool {
	return &ReadDirectoryFilesTool{fsTool{guard: guard, fs: fs}}
}

func (t *ReadDirectoryFilesTool) Name() string { return "read_directory_files" }

func (t *ReadDirectoryFilesTool) Description() string {
	return "Reads every file directly inside a directory and returns a mapping of file name to text content. Subdirectories are skipped; binary files are shown as a placeholder."
}

func (t *ReadDirectoryFilesTool) Definition() string { return GenerateSchema(ReadDirectoryFilesInput{}) }

func (t *ReadDirectoryFilesTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	var input ReadDirectoryFilesInput
	if err := decodeInput(args, &input); err != nil {
		return nil, err
	}
	resolved, err := t.guard.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	entries, err := t.fs.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	files := make(map[string]string)
	for _, e := range entries {
		if !e.Regular {
			continue
		}
		data, err := t.fs.ReadFile(filepath.Join(resolved, e.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name, err)
		}
		text, err := textContent(data)
		var binErr *BinaryContentError
		if errors.As(err, &binErr) {
			text = fmt.Sprintf("<binary %s content omitted>", binErr.Extension)
		}
		files[e.Name] = text
	}
	return &domain.ToolResult{
		Data: files,
		Metadata: map[string]string{
			"operation": "read_directory_files",
			"path":      input.Path,
			"files":     strconv.Itoa(len(files)),
		},
	}, nil
}

// =============================================================================
// get_current_directory
// =============================================================================

// CurrentDirectoryInput is the (empty) input for get_current_directory.
type CurrentDirectoryInput struct{}

// CurrentDirectoryTool reports the working directory every path is confined to.
type CurrentDirectoryTool struct {
	guard *security.PathGuard
}

func NewCurrentDirectoryTool(guard *security.PathGuard) *CurrentDirectoryTool {
	return &CurrentDirectoryTool{guard: guard}
}

func (t *CurrentDirectoryTool) Name() string { return "get_current_directory" }

func (t *CurrentDirectoryTool) Description() string {
	return "Returns the absolute path of the working directory. All paths are relative to it."
}

func (t *CurrentDirectoryTool) Definition() string { return GenerateSchema(CurrentDirectoryInput{}) }

func (t *CurrentDirectoryTool) Call(ctx context.Context, args json.RawMessage) (*domain.ToolResult, error) {
	return &domain.ToolResult{
		Data:     t.guard.Root(),
		Metadata: map[string]string{"operation": "get_current_directory"},
	}, nil
}
