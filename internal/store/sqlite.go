package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

const createNodesTable = `
CREATE TABLE IF NOT EXISTS nodes (
	label TEXT NOT NULL,
	name  TEXT NOT NULL,
	props TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (label, name)
)`

const createRelationshipsTable = `
CREATE TABLE IF NOT EXISTS relationships (
	from_label TEXT NOT NULL,
	from_name  TEXT NOT NULL,
	type       TEXT NOT NULL,
	to_label   TEXT NOT NULL,
	to_name    TEXT NOT NULL,
	PRIMARY KEY (from_label, from_name, type, to_label, to_name),
	FOREIGN KEY (from_label, from_name) REFERENCES nodes(label, name),
	FOREIGN KEY (to_label, to_name) REFERENCES nodes(label, name)
)`

// SQLiteStore keeps the property graph in two SQLite tables.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	ownsDB bool
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, &WriteError{Store: "sqlite " + path, Op: "open database", Err: err}
	}
	// single writer
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db, path: path, ownsDB: true}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteWithDB uses an existing connection. The caller owns its lifecycle.
func NewSQLiteWithDB(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, path: "shared", ownsDB: false}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	for _, stmt := range []string{"PRAGMA foreign_keys = ON", createNodesTable, createRelationshipsTable} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &WriteError{Store: s.Name(), Op: "create schema", Err: err}
		}
	}
	return nil
}

func (s *SQLiteStore) Name() string {
	return "sqlite " + s.path
}

// MergeNode implements Store. Properties are merged into the stored ones.
func (s *SQLiteStore) MergeNode(ctx context.Context, n Node) error {
	if err := validIdentifier(n.Label); err != nil {
		return err
	}
	props, err := json.Marshal(n.Props)
	if err != nil {
		return fmt.Errorf("failed to encode properties: %w", err)
	}

	_, err = sq.Insert("nodes").
		Columns("label", "name", "props").
		Values(n.Label, n.Name, string(props)).
		Suffix("ON CONFLICT(label, name) DO UPDATE SET props = json_patch(nodes.props, excluded.props)").
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert node: %w", err)
	}
	return nil
}

// MergeRelationship implements Store.
func (s *SQLiteStore) MergeRelationship(ctx context.Context, r Relationship) error {
	if err := validIdentifier(r.Type); err != nil {
		return err
	}
	_, err := sq.Insert("relationships").
		Columns("from_label", "from_name", "type", "to_label", "to_name").
		Values(r.FromLabel, r.FromName, r.Type, r.ToLabel, r.ToName).
		Suffix("ON CONFLICT DO NOTHING").
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}
	return nil
}

// Close closes the connection if this store opened it.
func (s *SQLiteStore) Close(context.Context) error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// Counts returns the number of stored nodes and relationships.
func (s *SQLiteStore) Counts(ctx context.Context) (nodes, relationships int, err error) {
	if err := sq.Select("COUNT(*)").From("nodes").RunWith(s.db).QueryRowContext(ctx).Scan(&nodes); err != nil {
		return 0, 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	if err := sq.Select("COUNT(*)").From("relationships").RunWith(s.db).QueryRowContext(ctx).Scan(&relationships); err != nil {
		return 0, 0, fmt.Errorf("failed to count relationships: %w", err)
	}
	return nodes, relationships, nil
}

// NodeProps returns the stored properties of a node.
func (s *SQLiteStore) NodeProps(ctx context.Context, label, name string) (map[string]any, error) {
	var raw string
	err := sq.Select("props").
		From("nodes").
		Where(sq.Eq{"label": label, "name": name}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read node: %w", err)
	}

	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	return props, nil
}
