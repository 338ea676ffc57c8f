package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pykg/internal/config"
	"github.com/mvp-joe/pykg/internal/extract"
	"github.com/mvp-joe/pykg/internal/introspect"
	"github.com/mvp-joe/pykg/internal/pyenv"
	"github.com/mvp-joe/pykg/internal/walker"
)

var (
	extractPackage   string
	extractVersion   string
	extractOutputDir string
	extractFromDump  string
	extractSaveDump  string
	extractEntryFile string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the API records of a Python package",
	Long: `Extract installs a package into temp_venv_<package>, imports it, and records
every module, class, function and method reachable from the package root.

Two documents are written to the output directory:
  <package>_<version>_api_init_only.json   records exposed by __init__.py
  <package>_<version>_api_all.json         every record

Examples:
  # Extract the latest flask
  pykg extract --package flask

  # Extract a pinned version into ./out and keep the raw object graph
  pykg extract --package flask --version 3.0.2 --output-dir out --save-dump flask.dump.json

  # Replay a saved object graph without touching Python
  pykg extract --from-dump flask.dump.json --entry-file site-packages/flask/__init__.py
`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractPackage, "package", "p", "", "package name, e.g. numpy or flask")
	extractCmd.Flags().StringVar(&extractVersion, "version", "", "package version, e.g. 2.2.5 (default latest)")
	extractCmd.Flags().StringVarP(&extractOutputDir, "output-dir", "o", "", "directory for the JSON documents (default from config)")
	extractCmd.Flags().StringVar(&extractFromDump, "from-dump", "", "replay a saved object graph instead of probing a live package")
	extractCmd.Flags().StringVar(&extractSaveDump, "save-dump", "", "save the captured object graph to this path")
	extractCmd.Flags().StringVar(&extractEntryFile, "entry-file", "", "override the package __init__.py used for export resolution")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if extractPackage == "" && extractFromDump == "" {
		return fmt.Errorf("either --package or --from-dump is required")
	}

	outputDir := extractOutputDir
	if outputDir == "" {
		outputDir = cfg.Extract.OutputDir
	}

	pl, err := newPipeline(cfg, NewCLIProgressReporter(cmd.ErrOrStderr(), quiet), slog.Default())
	if err != nil {
		return err
	}

	res, err := pl.Run(ctx, extract.Request{
		Package:   extractPackage,
		Version:   extractVersion,
		OutputDir: outputDir,
		DumpPath:  extractFromDump,
		SaveDump:  extractSaveDump,
		EntryFile: extractEntryFile,
	})
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	slog.Debug("extraction finished", "run", res.RunID, "aliases", len(res.Aliases))
	return nil
}

// newPipeline wires the extraction pipeline from configuration.
func newPipeline(c *config.Config, progress extract.ProgressReporter, logger *slog.Logger) (*extract.Pipeline, error) {
	w, err := walker.New(
		walker.WithDuplicatePolicy(walker.DuplicatePolicy(c.Extract.DuplicatePolicy)),
		walker.WithExcludes(c.Extract.ExcludeModules...),
		walker.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create walker: %w", err)
	}

	provisioner := pyenv.NewProvisioner(pyenv.Config{
		VenvRoot:          c.Environment.VenvRoot,
		Python:            c.Environment.Python,
		UpgradeBuildTools: c.Environment.UpgradeBuildTools,
		PreferBinary:      c.Environment.PreferBinary,
		LockTimeout:       time.Duration(c.Environment.LockTimeoutSec) * time.Second,
	}, pyenv.WithLogger(logger))

	syntaxInterpreter := func() (introspect.Interpreter, error) {
		return provisioner.BaseInterpreter()
	}
	return extract.New(w,
		extract.WithProvisioner(provisioner),
		extract.WithSyntaxInterpreter(syntaxInterpreter),
		extract.WithProgress(progress),
		extract.WithLogger(logger),
	), nil
}
