package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	// SnapshotSuffix ends every snapshot file name.
	SnapshotSuffix = ".graph.json"

	// SnapshotVersion is the current snapshot format version.
	SnapshotVersion = "1.0"
)

// SnapshotStore keeps one JSON snapshot per library in a directory.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates dir when needed.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// Path returns the snapshot file of library.
func (s *SnapshotStore) Path(library string) string {
	return filepath.Join(s.dir, Sanitize(library)+SnapshotSuffix)
}

// Exists reports whether library has a snapshot.
func (s *SnapshotStore) Exists(library string) bool {
	_, err := os.Stat(s.Path(library))
	return err == nil
}

// Save replaces the snapshot of gr's library and returns its path. Readers
// see either the previous snapshot or the new one, never a partial file.
func (s *SnapshotStore) Save(gr *Graph) (string, error) {
	data := gr.Data()
	data.Metadata = GraphMetadata{
		Version:       SnapshotVersion,
		GeneratedAt:   time.Now().UTC(),
		Library:       gr.Library(),
		EntityCount:   len(data.Entities),
		RelationCount: len(data.Relations),
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	path := s.Path(gr.Library())
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return path, nil
}

// Load returns the snapshot of library, or nil when there is none.
func (s *SnapshotStore) Load(library string) (*GraphData, error) {
	raw, err := os.ReadFile(s.Path(library))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var data GraphData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &data, nil
}

// LoadGraph rebuilds the graph of library from its snapshot.
func (s *SnapshotStore) LoadGraph(library string) (*Graph, error) {
	data, err := s.Load(library)
	if err != nil || data == nil {
		return nil, err
	}
	return FromData(data)
}
