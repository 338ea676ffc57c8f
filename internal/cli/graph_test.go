package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mvp-joe/pykg/internal/api"
	"github.com/mvp-joe/pykg/internal/graph"
	"github.com/mvp-joe/pykg/internal/search"
	"github.com/mvp-joe/pykg/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for graph and search commands:
// - a graph job writes Turtle, snapshot and SQLite outputs from a document
// - dry run mirrors into memory and prints counts
// - a Neo4j failure is reported after local outputs are written
// - a missing input document fails before anything is written
// - search over a document returns matching records and prints them
// - the progress reporter is silent when quiet
// - formatNumber inserts separators

func writeSampleDocument(t *testing.T, dir string) string {
	t.Helper()

	params := api.NewParameters()
	params.Set("self", api.ParamInfo{})
	params.Set("host", api.ParamInfo{IsOptional: true})

	records := []*api.Record{
		api.NewRecord("flask", api.KindModule, api.RecordOptions{
			Doc:        "A microframework.",
			ModuleName: api.Str("flask"),
			SourceFile: api.Str("flask/__init__.py"),
		}),
		api.NewRecord("flask.Flask", api.KindClass, api.RecordOptions{
			Doc:        "The flask object implements a WSGI application.",
			ModuleName: api.Str("flask.app"),
			SourceFile: api.Str("flask/app.py"),
		}),
		api.NewRecord("flask.Flask.run", api.KindMemberFunction, api.RecordOptions{
			Doc:         "Runs the application.\n:return: None",
			Signature:   api.Str("(self, host=None)"),
			Parameters:  params,
			OwningClass: api.Str("flask.Flask"),
			ModuleName:  api.Str("flask.app"),
			SourceFile:  api.Str("flask/app.py"),
		}),
	}
	for _, r := range records {
		r.MarkExported()
	}

	path := filepath.Join(dir, "flask_3.0.2_api_init_only.json")
	require.NoError(t, api.WriteDocument(path, api.NewDocument(records)))
	return path
}

func TestGraphJob_LocalOutputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	job := graphJob{
		Input:       writeSampleDocument(t, dir),
		LibraryName: "Flask 3.0.2",
		TurtleOut:   filepath.Join(dir, "kg", "flask.ttl"),
		SnapshotDir: filepath.Join(dir, "snapshot"),
		SQLiteOut:   filepath.Join(dir, "flask.db"),
	}

	var out bytes.Buffer
	gr, err := job.run(context.Background(), graph.NewBuilder(), store.NoOpProgressReporter{}, &out)
	require.NoError(t, err)
	require.NotNil(t, gr)

	ttl, err := os.ReadFile(job.TurtleOut)
	require.NoError(t, err)
	assert.Contains(t, string(ttl), `"Flask 3.0.2"^^xsd:string`)

	snapshots, err := graph.NewSnapshotStore(job.SnapshotDir)
	require.NoError(t, err)
	data, err := snapshots.Load(job.LibraryName)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, len(gr.Entities()), data.Metadata.EntityCount)

	s, err := store.OpenSQLite(context.Background(), job.SQLiteOut)
	require.NoError(t, err)
	defer s.Close(context.Background())
	nodes, rels, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(gr.Entities()), nodes)
	assert.Equal(t, len(gr.Relations()), rels)

	assert.Contains(t, out.String(), "Turtle written")
	assert.Contains(t, out.String(), "SQLite written")
}

func TestGraphJob_DryRun(t *testing.T) {
	t.Parallel()

	job := graphJob{Input: writeSampleDocument(t, t.TempDir()), LibraryName: "Flask", DryRun: true}

	var out bytes.Buffer
	gr, err := job.run(context.Background(), graph.NewBuilder(), nil, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Dry run:")
	assert.Contains(t, out.String(), formatNumber(len(gr.Entities()))+" nodes")
}

type unreachableStore struct{}

func (unreachableStore) Name() string { return "neo4j bolt://nowhere" }
func (unreachableStore) MergeNode(context.Context, store.Node) error {
	return errors.New("connection refused")
}
func (unreachableStore) MergeRelationship(context.Context, store.Relationship) error {
	return errors.New("connection refused")
}
func (unreachableStore) Close(context.Context) error { return nil }

func TestGraphJob_RemoteFailureKeepsLocalOutputs(t *testing.T) {
	original := openNeo4j
	openNeo4j = func(context.Context, store.Neo4jConfig) (store.Store, error) {
		return unreachableStore{}, nil
	}
	t.Cleanup(func() { openNeo4j = original })

	dir := t.TempDir()
	neo, ok := store.ConnectionFromFlags("bolt://nowhere", "neo4j", "secret", "")
	require.True(t, ok)
	job := graphJob{
		Input:       writeSampleDocument(t, dir),
		LibraryName: "Flask",
		TurtleOut:   filepath.Join(dir, "flask.ttl"),
		Neo4j:       &neo,
	}

	_, err := job.run(context.Background(), graph.NewBuilder(), nil, &bytes.Buffer{})
	require.Error(t, err)
	var writeErr *store.WriteError
	assert.True(t, errors.As(err, &writeErr))

	_, statErr := os.Stat(job.TurtleOut)
	assert.NoError(t, statErr)
}

func TestGraphJob_MissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	job := graphJob{
		Input:     filepath.Join(dir, "missing.json"),
		TurtleOut: filepath.Join(dir, "out.ttl"),
	}
	_, err := job.run(context.Background(), graph.NewBuilder(), nil, &bytes.Buffer{})
	require.Error(t, err)

	_, statErr := os.Stat(job.TurtleOut)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSearchDocument(t *testing.T) {
	t.Parallel()

	path := writeSampleDocument(t, t.TempDir())

	results, err := searchDocument(context.Background(), path, "application", &search.Options{Kind: api.KindMemberFunction})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "flask.Flask.run", results[0].ID)

	var out bytes.Buffer
	require.NoError(t, printResults(&out, results, false))
	assert.Contains(t, out.String(), "flask.Flask.run(self, host=None)")

	out.Reset()
	require.NoError(t, printResults(&out, results, true))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out.String()), "["))

	out.Reset()
	require.NoError(t, printResults(&out, nil, false))
	assert.Contains(t, out.String(), "No matching records")
}

func TestCLIProgressReporter_Quiet(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := NewCLIProgressReporter(&out, true)
	p.OnProvisioned("python", "venv")
	p.OnCaptured(10)
	p.OnWalked(3, 1)
	p.OnMirrorStart("memory", 5)
	p.OnMirrorProgress(5)
	p.OnMirrorComplete()
	assert.Empty(t, out.String())

	p = NewCLIProgressReporter(&out, false)
	p.OnWalked(1234, 12)
	assert.Contains(t, out.String(), "Collected 1,234 records (12 exported)")
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "-12,345", formatNumber(-12345))
}
