package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mvp-joe/pykg/internal/api"
	"github.com/mvp-joe/pykg/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for property-graph mirroring:
// - relation names convert to upper snake case
// - nodes carry the natural key as "name" plus entity properties, with the
//   full description text
// - mirroring twice leaves the same node and relationship counts (memory
//   and SQLite)
// - SQLite merges properties on conflict and survives reopening the file
// - store failures surface as *WriteError naming the store
// - remote connection requires url, user and password together
// - Cypher is built only from validated identifiers

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()

	params := api.NewParameters()
	params.Set("self", api.ParamInfo{})
	params.Set("debug", api.ParamInfo{IsOptional: true})

	longDoc := "Run the application.\nDetails that go well past any preview length. " +
		"Details that go well past any preview length. Details that go well past any preview length. " +
		"Details that go well past any preview length. Details that go well past any preview length.\n:returns: nothing"

	records := []*api.Record{
		api.NewRecord("flask.Flask", api.KindClass, api.RecordOptions{
			Doc:        "The app.",
			ModuleName: api.Str("flask.app"),
			SourceFile: api.Str("flask/app.py"),
		}),
		api.NewRecord("flask.Flask.run", api.KindMemberFunction, api.RecordOptions{
			Doc:         longDoc,
			Parameters:  params,
			OwningClass: api.Str("flask.Flask"),
			ModuleName:  api.Str("flask.app"),
			SourceFile:  api.Str("flask/app.py"),
		}),
	}
	gr, err := graph.NewBuilder().Build(records, "Flask 3.0.2")
	require.NoError(t, err)
	return gr
}

func TestRelationshipType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "HAS_SCRIPT", RelationshipType(graph.RelHasScript))
	assert.Equal(t, "CONTAIN_MODULE", RelationshipType(graph.RelContainModule))
	assert.Equal(t, "INCLUDE", RelationshipType(graph.RelInclude))
	assert.Equal(t, "HAS_RETURN_VALUE", RelationshipType(graph.RelHasReturnValue))
}

func TestMirror_MemoryIdempotent(t *testing.T) {
	t.Parallel()

	gr := sampleGraph(t)
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, Mirror(ctx, gr, s, nil))
	nodes, rels := s.NodeCount(), s.RelationshipCount()
	assert.Equal(t, len(gr.Entities()), nodes)
	assert.Equal(t, len(gr.Relations()), rels)

	require.NoError(t, Mirror(ctx, gr, s, nil))
	assert.Equal(t, nodes, s.NodeCount())
	assert.Equal(t, rels, s.RelationshipCount())

	desc, ok := s.Node("Description", "flask.Flask.run_desc")
	require.True(t, ok)
	assert.Equal(t, "flask.Flask.run_desc", desc["name"])
	doc, _ := gr.Entity(graph.LabelDescription, "flask.Flask.run_desc")
	assert.Equal(t, doc.Text, desc["content"])
	assert.Greater(t, len(desc["content"].(string)), graph.DefaultDescriptionPreview)

	param, ok := s.Node("Parameter", "flask.Flask.run_debug")
	require.True(t, ok)
	assert.Equal(t, true, param["optional"])

	assert.Contains(t, s.Relationships(), Relationship{
		FromLabel: "Class", FromName: "flask.Flask", Type: "HAS_METHOD", ToLabel: "API", ToName: "flask.Flask.run",
	})
}

type progressRecorder struct {
	store string
	total int
	last  int
	done  bool
}

func (p *progressRecorder) OnMirrorStart(store string, total int) { p.store, p.total = store, total }
func (p *progressRecorder) OnMirrorProgress(done int)             { p.last = done }
func (p *progressRecorder) OnMirrorComplete()                     { p.done = true }

func TestMirror_Progress(t *testing.T) {
	t.Parallel()

	gr := sampleGraph(t)
	rec := &progressRecorder{}
	require.NoError(t, Mirror(context.Background(), gr, NewMemoryStore(), rec))

	assert.Equal(t, "memory", rec.store)
	assert.Equal(t, len(gr.Entities())+len(gr.Relations()), rec.total)
	assert.Equal(t, rec.total, rec.last)
	assert.True(t, rec.done)
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQLiteWithDB(context.Background(), db)
	require.NoError(t, err)
	return s
}

func TestMirror_SQLiteIdempotent(t *testing.T) {
	t.Parallel()

	gr := sampleGraph(t)
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, Mirror(ctx, gr, s, nil))
	nodes, rels, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(gr.Entities()), nodes)
	assert.Equal(t, len(gr.Relations()), rels)

	require.NoError(t, Mirror(ctx, gr, s, nil))
	nodes2, rels2, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, nodes, nodes2)
	assert.Equal(t, rels, rels2)

	props, err := s.NodeProps(ctx, "Parameter", "flask.Flask.run_debug")
	require.NoError(t, err)
	assert.Equal(t, true, props["optional"])
	assert.Equal(t, "flask.Flask.run_debug", props["name"])
}

func TestSQLite_MergeNodeUpdatesProps(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.MergeNode(ctx, Node{Label: "Module", Name: "m", Props: map[string]any{"name": "m", "a": "1"}}))
	require.NoError(t, s.MergeNode(ctx, Node{Label: "Module", Name: "m", Props: map[string]any{"b": "2"}}))

	props, err := s.NodeProps(ctx, "Module", "m")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "m", "a": "1", "b": "2"}, props)

	nodes, _, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, nodes)
}

func TestSQLite_FileReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kg.db")
	ctx := context.Background()
	gr := sampleGraph(t)

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, Mirror(ctx, gr, s, nil))
	require.NoError(t, s.Close(ctx))

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close(ctx)
	require.NoError(t, Mirror(ctx, gr, s, nil))

	nodes, rels, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(gr.Entities()), nodes)
	assert.Equal(t, len(gr.Relations()), rels)
}

type failingStore struct {
	*MemoryStore
}

func (f failingStore) Name() string { return "flaky" }

func (f failingStore) MergeRelationship(context.Context, Relationship) error {
	return errors.New("connection reset")
}

func TestMirror_WriteError(t *testing.T) {
	t.Parallel()

	err := Mirror(context.Background(), sampleGraph(t), failingStore{NewMemoryStore()}, nil)
	require.Error(t, err)

	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "flaky", we.Store)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestConnectionFromFlags(t *testing.T) {
	t.Parallel()

	cfg, ok := ConnectionFromFlags("bolt://localhost:7687", "neo4j", "secret", "")
	assert.True(t, ok)
	assert.Equal(t, "bolt://localhost:7687", cfg.URL)

	for _, args := range [][3]string{
		{"", "neo4j", "secret"},
		{"bolt://localhost:7687", "", "secret"},
		{"bolt://localhost:7687", "neo4j", ""},
		{"", "", ""},
	} {
		_, ok := ConnectionFromFlags(args[0], args[1], args[2], "")
		assert.False(t, ok, "%v", args)
	}
}

func TestCypherQueries(t *testing.T) {
	t.Parallel()

	q, err := mergeNodeQuery("Class")
	require.NoError(t, err)
	assert.Equal(t, "MERGE (n:`Class` {name: $name}) SET n += $props", q)

	q, err = mergeRelationshipQuery(Relationship{FromLabel: "Class", Type: "HAS_METHOD", ToLabel: "API"})
	require.NoError(t, err)
	assert.Equal(t, "MATCH (a:`Class` {name: $from}), (b:`API` {name: $to}) MERGE (a)-[:`HAS_METHOD`]->(b)", q)

	_, err = mergeNodeQuery("Class`) DETACH DELETE n //")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}
