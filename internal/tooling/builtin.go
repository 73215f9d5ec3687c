package tooling

import (
	"fmt"

	"gitpilot/internal/security"
)

// NewDefaultRegistry builds the fixed tool catalog offered to the model. Every
// filesystem tool shares guard, so all of them are confined to the same root.
func NewDefaultRegistry(guard *security.PathGuard, fs FileSystem, runner CommandRunner) (*ToolRegistry, error) {
	if guard == nil {
		return nil, fmt.Errorf("tool registry: path guard must not be nil")
	}
	if fs == nil {
		fs = &OsFileSystem{}
	}
	if runner == nil {
		runner = &ExecCommandRunner{}
	}
	reg := NewToolRegistry()
	for _, tool := range []SchemaTool{
		NewGitCommandTool(guard, runner),
		NewListFilesTool(guard, fs),
		NewReadFileTool(guard, fs),
		NewWriteFileTool(guard, fs),
		NewMoveFileTool(guard, fs),
		NewDeleteFileTool(guard, fs),
		NewCreateDirectoryTool(guard, fs),
		NewDeleteDirectoryTool(guard, fs),
		NewDirectoryTreeTool(guard, fs),
		NewReadDirectoryFilesTool(guard, fs),
		NewCurrentDirectoryTool(guard),
	} {
		if err := reg.Register(tool); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
