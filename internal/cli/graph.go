package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pykg/internal/api"
	"github.com/mvp-joe/pykg/internal/graph"
	"github.com/mvp-joe/pykg/internal/store"
	"github.com/mvp-joe/pykg/internal/watcher"
)

var (
	graphInput       string
	graphTurtleOut   string
	graphSnapshotDir string
	graphSQLiteOut   string
	graphLibraryName string
	graphNeo4jURL    string
	graphNeo4jUser   string
	graphNeo4jPass   string
	graphNeo4jDB     string
	graphDryRun      bool
	graphWatch       bool
)

// openNeo4j is replaced in tests.
var openNeo4j = func(ctx context.Context, c store.Neo4jConfig) (store.Store, error) {
	return store.NewNeo4jStore(ctx, c)
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build a knowledge graph from an extracted API document",
	Long: `Graph reads a document written by "pykg extract" and builds a typed graph of
Library, Script, Module, Class, API, Parameter, ReturnValue and Description
entities.

The graph can be written as Turtle, as a JSON snapshot, into a SQLite file,
and merged into Neo4j. Local outputs are written first; a Neo4j failure does
not remove them. Neo4j is only used when url, user and password are all set.

Examples:
  # Turtle only
  pykg graph --input API_output/flask_3.0.2_api_init_only.json --ttl-out kg/flask.ttl

  # Turtle plus Neo4j
  pykg graph --input flask_3.0.2_api_init_only.json --ttl-out flask.ttl \
    --neo4j-url bolt://localhost:7687 --neo4j-user neo4j --neo4j-pass secret \
    --library-name "Flask 3.0.2"

  # Rebuild whenever the document changes
  pykg graph --input flask_api_all.json --sqlite-out flask.db --watch
`,
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringVarP(&graphInput, "input", "i", "", "extracted API document (required)")
	graphCmd.Flags().StringVar(&graphTurtleOut, "ttl-out", "", "write the graph as Turtle to this path")
	graphCmd.Flags().StringVar(&graphSnapshotDir, "graph-dir", "", "write a <library>.graph.json snapshot into this directory")
	graphCmd.Flags().StringVar(&graphSQLiteOut, "sqlite-out", "", "merge the graph into this SQLite database")
	graphCmd.Flags().StringVar(&graphLibraryName, "library-name", "", "name of the Library entity, e.g. 'Flask 3.0.2' (default from config)")
	graphCmd.Flags().StringVar(&graphNeo4jURL, "neo4j-url", "", "Neo4j url, e.g. bolt://localhost:7687")
	graphCmd.Flags().StringVar(&graphNeo4jUser, "neo4j-user", "", "Neo4j user")
	graphCmd.Flags().StringVar(&graphNeo4jPass, "neo4j-pass", "", "Neo4j password")
	graphCmd.Flags().StringVar(&graphNeo4jDB, "neo4j-database", "", "Neo4j database (default server default)")
	graphCmd.Flags().BoolVar(&graphDryRun, "dry-run", false, "mirror into memory and print node and relationship counts")
	graphCmd.Flags().BoolVarP(&graphWatch, "watch", "w", false, "rebuild when the input document changes")
	_ = graphCmd.MarkFlagRequired("input")
}

// graphJob is one build of the graph command.
type graphJob struct {
	Input       string
	LibraryName string
	TurtleOut   string
	Turtle      graph.TurtleOptions
	SnapshotDir string
	SQLiteOut   string
	DryRun      bool

	// Neo4j is nil when no complete connection was given.
	Neo4j *store.Neo4jConfig
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	job := graphJob{
		Input:       graphInput,
		LibraryName: firstNonEmpty(graphLibraryName, cfg.Graph.LibraryName),
		TurtleOut:   graphTurtleOut,
		Turtle: graph.TurtleOptions{
			Namespace:          cfg.Graph.Namespace,
			DescriptionPreview: cfg.Graph.DescriptionPreview,
		},
		SnapshotDir: graphSnapshotDir,
		SQLiteOut:   graphSQLiteOut,
		DryRun:      graphDryRun,
	}
	if c, ok := store.ConnectionFromFlags(
		firstNonEmpty(graphNeo4jURL, cfg.Neo4j.URL),
		firstNonEmpty(graphNeo4jUser, cfg.Neo4j.User),
		firstNonEmpty(graphNeo4jPass, cfg.Neo4j.Password),
		firstNonEmpty(graphNeo4jDB, cfg.Neo4j.Database),
	); ok {
		job.Neo4j = &c
	} else if graphNeo4jURL != "" || cfg.Neo4j.URL != "" {
		slog.Warn("neo4j url set without user and password; skipping remote write")
	}

	builder := graph.NewBuilder(
		graph.WithFallbackModules(cfg.Graph.FallbackModules),
		graph.WithDefaultModule(cfg.Graph.DefaultModule),
		graph.WithLogger(slog.Default()),
	)
	progress := NewCLIProgressReporter(cmd.ErrOrStderr(), quiet)
	out := cmd.OutOrStdout()

	if _, err := job.run(ctx, builder, progress, out); err != nil {
		if !graphWatch {
			return err
		}
		slog.Error("graph build failed", "error", err)
	}
	if !graphWatch {
		return nil
	}

	return watchInput(ctx, job.Input, func() {
		if _, err := job.run(ctx, builder, progress, out); err != nil {
			slog.Error("graph rebuild failed", "error", err)
		}
	})
}

// run builds the graph and writes every requested output. Local outputs are
// written before Neo4j is contacted.
func (j graphJob) run(ctx context.Context, builder *graph.Builder, progress store.ProgressReporter, out io.Writer) (*graph.Graph, error) {
	doc, err := api.ReadDocument(j.Input)
	if err != nil {
		return nil, err
	}

	gr, err := builder.Build(doc.Data, j.LibraryName)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	slog.Info("graph built", "records", len(doc.Data), "entities", len(gr.Entities()), "relations", len(gr.Relations()))

	if j.TurtleOut != "" {
		if err := graph.SaveTurtle(j.TurtleOut, gr, j.Turtle); err != nil {
			return gr, err
		}
		fmt.Fprintf(out, "✓ Turtle written to %s\n", j.TurtleOut)
	}

	if j.SnapshotDir != "" {
		snapshots, err := graph.NewSnapshotStore(j.SnapshotDir)
		if err != nil {
			return gr, err
		}
		path, err := snapshots.Save(gr)
		if err != nil {
			return gr, err
		}
		fmt.Fprintf(out, "✓ Snapshot written to %s\n", path)
	}

	if j.SQLiteOut != "" {
		s, err := store.OpenSQLite(ctx, j.SQLiteOut)
		if err != nil {
			return gr, err
		}
		if err := mirrorAndClose(ctx, gr, s, progress); err != nil {
			return gr, err
		}
		fmt.Fprintf(out, "✓ SQLite written to %s\n", j.SQLiteOut)
	}

	if j.DryRun {
		mem := store.NewMemoryStore()
		if err := mirrorAndClose(ctx, gr, mem, progress); err != nil {
			return gr, err
		}
		fmt.Fprintf(out, "Dry run: %s nodes, %s relationships\n",
			formatNumber(mem.NodeCount()), formatNumber(mem.RelationshipCount()))
	}

	if j.Neo4j != nil {
		s, err := openNeo4j(ctx, *j.Neo4j)
		if err != nil {
			return gr, err
		}
		if err := mirrorAndClose(ctx, gr, s, progress); err != nil {
			return gr, err
		}
		fmt.Fprintf(out, "✓ Neo4j updated at %s\n", j.Neo4j.URL)
	}

	return gr, nil
}

func mirrorAndClose(ctx context.Context, gr *graph.Graph, s store.Store, progress store.ProgressReporter) error {
	err := store.Mirror(ctx, gr, s, progress)
	return errors.Join(err, s.Close(ctx))
}

// watchInput calls rebuild after every debounced change to path until ctx
// is cancelled.
func watchInput(ctx context.Context, path string, rebuild func()) error {
	fw, err := watcher.New([]string{path}, watcher.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer fw.Stop()

	slog.Info("watching for changes", "input", path)
	fw.Start(ctx, func(files []string) {
		slog.Info("input changed, rebuilding", "files", files)
		rebuild()
	})

	<-ctx.Done()
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
