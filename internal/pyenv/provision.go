// Package pyenv provisions the isolated Python environment a package is
// installed into before it is introspected.
//
// One virtual environment is kept per package under the configured root and
// reused by later runs. Concurrent runs for the same package are serialised
// with a file lock next to the environment directory.
package pyenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 250 * time.Millisecond

// Config controls provisioning.
type Config struct {
	// VenvRoot is the directory holding one environment per package.
	VenvRoot string

	// Python is the interpreter used to create environments. Empty selects
	// the embedded interpreter.
	Python string

	// UpgradeBuildTools upgrades pip, setuptools and wheel before installing.
	UpgradeBuildTools bool

	// PreferBinary passes --prefer-binary to pip.
	PreferBinary bool

	// LockTimeout bounds the wait for another run holding the same
	// environment. Zero waits until the context is done.
	LockTimeout time.Duration
}

// Provisioner creates environments and installs packages into them.
type Provisioner struct {
	cfg    Config
	base   Interpreter
	logger *slog.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithBaseInterpreter sets the interpreter used to create environments,
// overriding Config.Python.
func WithBaseInterpreter(i Interpreter) Option {
	return func(p *Provisioner) {
		p.base = i
	}
}

// WithLogger sets the provisioner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// NewProvisioner creates a provisioner.
func NewProvisioner(cfg Config, opts ...Option) *Provisioner {
	p := &Provisioner{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ensure returns an environment with pkg installed, creating the
// environment first when it does not exist. version may be empty for the
// latest release.
func (p *Provisioner) Ensure(ctx context.Context, pkg, version string) (*Environment, error) {
	if pkg == "" {
		return nil, ErrNoPackage
	}
	if err := os.MkdirAll(p.cfg.VenvRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create venv root: %w", err)
	}

	dir, err := filepath.Abs(filepath.Join(p.cfg.VenvRoot, VenvName(pkg)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve venv path: %w", err)
	}

	unlock, err := p.lock(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	env := &Environment{Dir: dir, Python: VenvPython(dir)}
	if _, err := os.Stat(env.Python); err == nil {
		p.logger.Info("reusing virtual environment", "dir", dir)
	} else {
		if err := p.create(ctx, dir); err != nil {
			return nil, err
		}
	}

	out, err := run(ctx, env, "-c", "import platform; print(platform.python_version())")
	if err != nil {
		return nil, fmt.Errorf("failed to query interpreter version: %w", err)
	}
	env.PythonVersion = strings.TrimSpace(out)

	if p.cfg.UpgradeBuildTools {
		p.logger.Info("upgrading build tools", "dir", dir)
		if out, err := run(ctx, env, "-m", "pip", "install", "--upgrade", "pip", "setuptools", "wheel"); err != nil {
			return nil, &InstallError{Spec: "pip setuptools wheel", Output: out, Err: err}
		}
	}

	resolved := ResolveVersion(pkg, version, env.PythonVersion)
	if resolved != version {
		p.logger.Warn("substituting package version",
			"package", pkg, "requested", version, "installing", latest(resolved), "python", env.PythonVersion)
	}

	spec := Spec(pkg, resolved)
	args := []string{"-m", "pip", "install"}
	if p.cfg.PreferBinary {
		args = append(args, "--prefer-binary")
	}
	args = append(args, spec)

	p.logger.Info("installing package", "spec", spec)
	if out, err := run(ctx, env, args...); err != nil {
		return nil, &InstallError{Spec: spec, Output: out, Err: err}
	}
	return env, nil
}

func (p *Provisioner) create(ctx context.Context, dir string) error {
	base, err := p.BaseInterpreter()
	if err != nil {
		return err
	}
	p.logger.Info("creating virtual environment", "dir", dir)
	if out, err := run(ctx, base, "-m", "venv", dir); err != nil {
		return fmt.Errorf("failed to create virtual environment: %w: %s", err, out)
	}
	return nil
}

// BaseInterpreter returns the interpreter environments are created from:
// the one set by WithBaseInterpreter, then Config.Python, then the embedded
// runtime.
func (p *Provisioner) BaseInterpreter() (Interpreter, error) {
	if p.base != nil {
		return p.base, nil
	}
	if p.cfg.Python != "" {
		return Executable{Path: p.cfg.Python}, nil
	}
	return NewEmbedded(filepath.Join(p.cfg.VenvRoot, ".runtime"))
}

// lock takes the per-environment file lock.
func (p *Provisioner) lock(ctx context.Context, dir string) (func(), error) {
	if p.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.LockTimeout)
		defer cancel()
	}

	fl := flock.New(dir + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrVenvBusy, dir)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrVenvBusy, dir)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			p.logger.Warn("failed to release venv lock", "dir", dir, "error", err)
		}
	}, nil
}

// run executes args on interp and returns the combined output.
func run(ctx context.Context, interp Interpreter, args ...string) (string, error) {
	cmd, err := interp.Command(ctx, args...)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err = cmd.Run()
	return buf.String(), err
}

func latest(version string) string {
	if version == "" {
		return "latest"
	}
	return version
}
