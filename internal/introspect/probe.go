package introspect

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

//go:embed probe.py
var probeScript []byte

var (
	// ErrMissingObject indicates a dump referencing an object it does not describe.
	ErrMissingObject = errors.New("object missing from graph")

	// ErrProbeFailed indicates the interpreter could not import or describe the package.
	ErrProbeFailed = errors.New("reflection probe failed")
)

// Interpreter builds commands that run a Python interpreter.
type Interpreter interface {
	Command(ctx context.Context, args ...string) (*exec.Cmd, error)
}

// Probe captures the object graph of an installed package.
type Probe struct {
	interp     Interpreter
	relativeTo string
	logger     *slog.Logger
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithRelativeTo sets the directory source file paths are made relative to.
// Without it paths are relative to the interpreter's working directory.
func WithRelativeTo(dir string) ProbeOption {
	return func(p *Probe) {
		p.relativeTo = dir
	}
}

// WithLogger sets the probe logger.
func WithLogger(logger *slog.Logger) ProbeOption {
	return func(p *Probe) {
		p.logger = logger
	}
}

// NewProbe creates a probe running under interp.
func NewProbe(interp Interpreter, opts ...ProbeOption) *Probe {
	p := &Probe{
		interp: interp,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capture imports pkg in the interpreter and returns its object graph. When the
// interpreter rejects the entry file the graph carries the syntax error and
// no objects.
func (p *Probe) Capture(ctx context.Context, pkg string) (*Graph, error) {
	var extra []string
	if p.relativeTo != "" {
		extra = append(extra, "--relative-to", p.relativeTo)
	}

	p.logger.Info("probing package", "package", pkg)
	var g *Graph
	err := p.run(ctx, "--package", pkg, extra, func(f *os.File) error {
		var err error
		g, err = ParseGraph(f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if issue := g.EntrySyntaxError(); issue != nil {
		p.logger.Warn("entry file rejected by interpreter",
			"package", pkg, "file", g.EntryFile, "line", issue.Line, "message", issue.Message)
		return g, nil
	}
	p.logger.Info("captured object graph", "package", pkg, "objects", len(g.Objects))
	return g, nil
}

// CheckSyntax compiles path with the interpreter's own parser. It returns nil
// when the interpreter accepts the file.
func (p *Probe) CheckSyntax(ctx context.Context, path string) (*SyntaxIssue, error) {
	var check SyntaxCheck
	err := p.run(ctx, "--check-syntax", path, nil, func(f *os.File) error {
		if err := json.NewDecoder(f).Decode(&check); err != nil {
			return fmt.Errorf("failed to decode syntax check: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return check.Error, nil
}

// run executes the probe script in the given mode and hands its output file
// to read. The output path is always the fourth script argument.
func (p *Probe) run(ctx context.Context, mode, target string, extra []string, read func(*os.File) error) error {
	tmpDir, err := os.MkdirTemp("", "pykg-probe-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	scriptPath := filepath.Join(tmpDir, "probe.py")
	if err := os.WriteFile(scriptPath, probeScript, 0644); err != nil {
		return fmt.Errorf("failed to write probe script: %w", err)
	}
	outPath := filepath.Join(tmpDir, "out.json")

	args := append([]string{scriptPath, mode, target, "--output", outPath}, extra...)
	cmd, err := p.interp.Command(ctx, args...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter command: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v: %s", ErrProbeFailed, target, err, strings.TrimSpace(stderr.String()))
	}

	f, err := os.Open(outPath)
	if err != nil {
		return fmt.Errorf("failed to open probe output: %w", err)
	}
	defer f.Close()
	return read(f)
}

// SaveGraph writes a captured graph so a later run can replay it.
func SaveGraph(path string, g *Graph) error {
	data, err := marshalGraph(g)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write dump: %w", err)
	}
	return nil
}

// LoadGraph reads a graph written by SaveGraph or by the probe itself.
func LoadGraph(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump: %w", err)
	}
	defer f.Close()
	return ParseGraph(f)
}
