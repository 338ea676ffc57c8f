package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/pykg/internal/walker"
)

var (
	// ErrInvalidDuplicatePolicy indicates an unknown duplicate policy
	ErrInvalidDuplicatePolicy = errors.New("invalid duplicate policy")

	// ErrInvalidExcludePattern indicates an exclude glob that does not compile
	ErrInvalidExcludePattern = errors.New("invalid exclude pattern")

	// ErrEmptyOutputDir indicates a missing output directory
	ErrEmptyOutputDir = errors.New("empty output directory")

	// ErrEmptyVenvRoot indicates a missing venv root
	ErrEmptyVenvRoot = errors.New("empty venv root")

	// ErrInvalidLockTimeout indicates a negative lock timeout
	ErrInvalidLockTimeout = errors.New("invalid lock timeout")

	// ErrInvalidNamespace indicates an unusable Turtle namespace
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrInvalidPreview indicates a non-positive description preview length
	ErrInvalidPreview = errors.New("invalid description preview")

	// ErrEmptyName indicates a missing library or default module name
	ErrEmptyName = errors.New("empty name")

	// ErrInvalidNeo4jURL indicates an unsupported Neo4j URL scheme
	ErrInvalidNeo4jURL = errors.New("invalid neo4j url")
)

var neo4jSchemes = []string{"neo4j://", "neo4j+s://", "neo4j+ssc://", "bolt://", "bolt+s://", "bolt+ssc://"}

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateEnvironment(&cfg.Environment); err != nil {
		errs = append(errs, err)
	}
	if err := validateExtract(&cfg.Extract); err != nil {
		errs = append(errs, err)
	}
	if err := validateGraph(&cfg.Graph); err != nil {
		errs = append(errs, err)
	}
	if err := validateNeo4j(&cfg.Neo4j); err != nil {
		errs = append(errs, err)
	}

	return joinErrors(errs)
}

func validateEnvironment(cfg *EnvironmentConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.VenvRoot) == "" {
		errs = append(errs, ErrEmptyVenvRoot)
	}
	if cfg.LockTimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("%w: lock_timeout_sec cannot be negative, got %d", ErrInvalidLockTimeout, cfg.LockTimeoutSec))
	}

	return joinErrors(errs)
}

func validateExtract(cfg *ExtractConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.OutputDir) == "" {
		errs = append(errs, ErrEmptyOutputDir)
	}

	switch walker.DuplicatePolicy(cfg.DuplicatePolicy) {
	case walker.DuplicatesAsAliases, walker.DuplicatesCollapse:
	default:
		errs = append(errs, fmt.Errorf("%w: must be '%s' or '%s', got '%s'",
			ErrInvalidDuplicatePolicy, walker.DuplicatesAsAliases, walker.DuplicatesCollapse, cfg.DuplicatePolicy))
	}

	for _, p := range cfg.ExcludeModules {
		if _, err := glob.Compile(p, '.'); err != nil {
			errs = append(errs, fmt.Errorf("%w: '%s': %v", ErrInvalidExcludePattern, p, err))
		}
	}

	return joinErrors(errs)
}

func validateGraph(cfg *GraphConfig) error {
	var errs []error

	if !strings.HasSuffix(cfg.Namespace, "#") && !strings.HasSuffix(cfg.Namespace, "/") {
		errs = append(errs, fmt.Errorf("%w: must end with '#' or '/', got '%s'", ErrInvalidNamespace, cfg.Namespace))
	}
	if cfg.DescriptionPreview <= 0 {
		errs = append(errs, fmt.Errorf("%w: must be positive, got %d", ErrInvalidPreview, cfg.DescriptionPreview))
	}
	if strings.TrimSpace(cfg.LibraryName) == "" {
		errs = append(errs, fmt.Errorf("%w: library_name", ErrEmptyName))
	}
	if strings.TrimSpace(cfg.DefaultModule) == "" {
		errs = append(errs, fmt.Errorf("%w: default_module", ErrEmptyName))
	}

	return joinErrors(errs)
}

// validateNeo4j only checks the URL shape. A partial connection (for example
// a URL without a password) is not an error: remote mirroring is skipped.
func validateNeo4j(cfg *Neo4jConfig) error {
	if cfg.URL == "" {
		return nil
	}
	for _, scheme := range neo4jSchemes {
		if strings.HasPrefix(cfg.URL, scheme) {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported scheme in '%s'", ErrInvalidNeo4jURL, cfg.URL)
}

// joinErrors combines multiple errors into a single error with clear
// formatting. The sentinels stay reachable through errors.Is.
func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return &validationError{errs: errs}
}

type validationError struct {
	errs []error
}

func (e *validationError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e *validationError) Unwrap() []error {
	return e.errs
}
