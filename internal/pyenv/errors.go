package pyenv

import (
	"errors"
	"fmt"
)

var (
	// ErrVenvBusy indicates another process holds the environment lock.
	ErrVenvBusy = errors.New("virtual environment is locked by another process")

	// ErrNoPackage indicates an empty package name.
	ErrNoPackage = errors.New("package name is required")
)

// InstallError reports a failed package installation. Output holds the
// combined installer output.
type InstallError struct {
	Spec   string
	Output string
	Err    error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to install %s: %v", e.Spec, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}
