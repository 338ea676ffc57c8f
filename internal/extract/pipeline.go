// Package extract runs one package extraction end to end: provision the
// environment, capture the object graph, resolve the export surface, walk,
// annotate and write the two documents.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mvp-joe/pykg/internal/api"
	"github.com/mvp-joe/pykg/internal/exports"
	"github.com/mvp-joe/pykg/internal/introspect"
	"github.com/mvp-joe/pykg/internal/pyenv"
	"github.com/mvp-joe/pykg/internal/walker"
)

var (
	// ErrNoPackage indicates a request without a package name or dump.
	ErrNoPackage = errors.New("package name is required")

	// ErrNoProvisioner indicates a live extraction without an environment provisioner.
	ErrNoProvisioner = errors.New("no environment provisioner configured")
)

// Provisioner installs a package into an interpreter environment.
type Provisioner interface {
	Ensure(ctx context.Context, pkg, version string) (*pyenv.Environment, error)
}

// Request describes one extraction.
type Request struct {
	Package   string
	Version   string
	OutputDir string

	// DumpPath replays a previously captured object graph instead of
	// provisioning and probing.
	DumpPath string

	// SaveDump, when set, stores the captured object graph for replay.
	SaveDump string

	// EntryFile overrides the package entry file recorded by the probe.
	EntryFile string
}

// Result summarises one extraction.
type Result struct {
	RunID        string
	Package      string
	Records      []*api.Record
	Exports      exports.Set
	Aliases      map[string][]string
	InitOnlyPath string
	AllPath      string
}

// Pipeline wires the extraction stages together.
type Pipeline struct {
	provisioner  Provisioner
	resolver     *exports.Resolver
	walker       *walker.Walker
	probeOpts    []introspect.ProbeOption
	syntaxInterp func() (introspect.Interpreter, error)
	progress     ProgressReporter
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProvisioner sets the environment provisioner used for live runs.
func WithProvisioner(p Provisioner) Option {
	return func(pl *Pipeline) {
		pl.provisioner = p
	}
}

// WithProbeOptions passes options to the reflection probe.
func WithProbeOptions(opts ...introspect.ProbeOption) Option {
	return func(pl *Pipeline) {
		pl.probeOpts = append(pl.probeOpts, opts...)
	}
}

// WithSyntaxInterpreter sets where replayed runs find an interpreter to vet
// an entry file the dump did not check, such as an EntryFile override.
// Without it those runs rely on tree-sitter alone.
func WithSyntaxInterpreter(fn func() (introspect.Interpreter, error)) Option {
	return func(pl *Pipeline) {
		pl.syntaxInterp = fn
	}
}

// WithProgress sets the progress reporter.
func WithProgress(r ProgressReporter) Option {
	return func(pl *Pipeline) {
		pl.progress = r
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(pl *Pipeline) {
		pl.logger = logger
	}
}

// New creates a pipeline walking with w.
func New(w *walker.Walker, opts ...Option) *Pipeline {
	pl := &Pipeline{
		resolver: exports.NewResolver(),
		walker:   w,
		progress: NoOpProgressReporter{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Run executes req. A ResolutionError from the entry file aborts the run
// before any document is written; degraded introspection never does. The
// target interpreter decides whether the entry file is valid Python when one
// is available, and tree-sitter otherwise.
func (pl *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.New().String()
	logger := pl.logger.With("run", runID)

	g, live, err := pl.capture(ctx, req, logger)
	if err != nil {
		return nil, err
	}
	pkg := req.Package
	if pkg == "" {
		pkg = g.Package
	}
	if pkg == "" {
		return nil, ErrNoPackage
	}
	pl.progress.OnCaptured(len(g.Objects))

	if req.SaveDump != "" {
		if err := introspect.SaveGraph(req.SaveDump, g); err != nil {
			return nil, err
		}
		logger.Info("saved object graph", "path", req.SaveDump)
	}

	entry := req.EntryFile
	if entry == "" {
		entry = g.EntryFile
		if issue := g.EntrySyntaxError(); issue != nil {
			return nil, exports.NewSyntaxError(entry, issue)
		}
	}
	resolver, err := pl.resolverFor(entry, g, live, logger)
	if err != nil {
		return nil, err
	}
	symbols, err := resolver.ResolveFile(ctx, entry)
	if err != nil {
		return nil, err
	}
	exports.MergeDynamic(symbols, g)
	pl.progress.OnExportsResolved(len(symbols))
	logger.Debug("resolved export symbols", "count", len(symbols), "symbols", symbols.Names())

	walked, err := pl.walker.Walk(g)
	if err != nil {
		return nil, err
	}
	exported := walker.Annotate(walked.Records, symbols)
	pl.progress.OnWalked(len(walked.Records), exported)
	logger.Info("collected records", "records", len(walked.Records), "exported", exported)

	initOnlyPath, allPath := api.DocumentPaths(req.OutputDir, pkg, req.Version)
	if err := api.WriteDocument(initOnlyPath, api.NewDocument(api.ExportedOnly(walked.Records))); err != nil {
		return nil, err
	}
	if err := api.WriteDocument(allPath, api.NewDocument(walked.Records)); err != nil {
		return nil, err
	}
	pl.progress.OnWritten(initOnlyPath, allPath)
	logger.Info("wrote documents", "init_only", initOnlyPath, "all", allPath)

	return &Result{
		RunID:        runID,
		Package:      pkg,
		Records:      walked.Records,
		Exports:      symbols,
		Aliases:      walked.Aliases,
		InitOnlyPath: initOnlyPath,
		AllPath:      allPath,
	}, nil
}

// capture loads or probes the object graph. The returned probe is nil for
// replayed dumps.
func (pl *Pipeline) capture(ctx context.Context, req Request, logger *slog.Logger) (*introspect.Graph, *introspect.Probe, error) {
	if req.DumpPath != "" {
		g, err := introspect.LoadGraph(req.DumpPath)
		if err != nil {
			return nil, nil, err
		}
		if req.Package != "" && g.Package != "" && g.Package != req.Package {
			logger.Warn("dump was captured for a different package", "dump", g.Package, "requested", req.Package)
		}
		return g, nil, nil
	}

	if req.Package == "" {
		return nil, nil, ErrNoPackage
	}
	if pl.provisioner == nil {
		return nil, nil, ErrNoProvisioner
	}

	env, err := pl.provisioner.Ensure(ctx, req.Package, req.Version)
	if err != nil {
		return nil, nil, err
	}
	pl.progress.OnProvisioned(env.Python, env.Dir)

	opts := append([]introspect.ProbeOption{introspect.WithLogger(logger)}, pl.probeOpts...)
	probe := introspect.NewProbe(env, opts...)
	g, err := probe.Capture(ctx, req.Package)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to capture %s: %w", req.Package, err)
	}
	return g, probe, nil
}

// resolverFor returns a resolver that has the interpreter vet entry, unless
// the capture already did or no interpreter is available.
func (pl *Pipeline) resolverFor(entry string, g *introspect.Graph, live *introspect.Probe, logger *slog.Logger) (*exports.Resolver, error) {
	if entry == g.EntryFile && g.EntrySyntax != nil {
		return pl.resolver, nil
	}
	if live != nil {
		return exports.NewResolver(exports.WithSyntaxChecker(live)), nil
	}
	if pl.syntaxInterp == nil {
		logger.Debug("no interpreter for syntax check, relying on tree-sitter", "entry", entry)
		return pl.resolver, nil
	}
	interp, err := pl.syntaxInterp()
	if err != nil {
		return nil, fmt.Errorf("failed to locate interpreter for syntax check: %w", err)
	}
	checker := introspect.NewProbe(interp, introspect.WithLogger(logger))
	return exports.NewResolver(exports.WithSyntaxChecker(checker)), nil
}
