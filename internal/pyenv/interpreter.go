package pyenv

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kluctl/go-embed-python/python"
)

// Interpreter builds commands running a Python interpreter.
type Interpreter interface {
	Command(ctx context.Context, args ...string) (*exec.Cmd, error)
}

// Executable is an interpreter found on disk.
type Executable struct {
	Path string
}

// Command implements Interpreter.
func (e Executable) Command(ctx context.Context, args ...string) (*exec.Cmd, error) {
	if e.Path == "" {
		return nil, fmt.Errorf("no interpreter path configured")
	}
	return exec.CommandContext(ctx, e.Path, args...), nil
}

// Embedded is the interpreter bundled into the binary. It is extracted once
// under its runtime directory and reused across runs.
type Embedded struct {
	ep *python.EmbeddedPython
}

// NewEmbedded extracts the bundled interpreter into dir.
func NewEmbedded(dir string) (*Embedded, error) {
	ep, err := python.NewEmbeddedPythonWithTmpDir(dir, true)
	if err != nil {
		return nil, fmt.Errorf("failed to extract embedded python: %w", err)
	}
	return &Embedded{ep: ep}, nil
}

// Command implements Interpreter.
func (e *Embedded) Command(ctx context.Context, args ...string) (*exec.Cmd, error) {
	base, err := e.ep.PythonCmd(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create python command: %w", err)
	}
	cmd := exec.CommandContext(ctx, base.Path, base.Args[1:]...)
	cmd.Env = base.Env
	cmd.Dir = base.Dir
	return cmd, nil
}

// Environment is a provisioned virtual environment.
type Environment struct {
	Dir           string
	Python        string
	PythonVersion string
}

// Command runs the environment's interpreter. Environment satisfies the
// probe's interpreter contract.
func (e *Environment) Command(ctx context.Context, args ...string) (*exec.Cmd, error) {
	return exec.CommandContext(ctx, e.Python, args...), nil
}

// VenvName is the directory name used for pkg's environment.
func VenvName(pkg string) string {
	return "temp_venv_" + strings.ReplaceAll(pkg, "-", "_")
}

// VenvPython is the interpreter path inside a virtual environment.
func VenvPython(dir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(dir, "Scripts", "python.exe")
	}
	return filepath.Join(dir, "bin", "python")
}
