package store

import (
	"context"
	"fmt"
	"sync"
)

type nodeKey struct {
	label, name string
}

// MemoryStore keeps merged nodes and relationships in process.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[nodeKey]map[string]any
	rels  map[Relationship]struct{}
	order []Relationship
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[nodeKey]map[string]any),
		rels:  make(map[Relationship]struct{}),
	}
}

func (m *MemoryStore) Name() string {
	return "memory"
}

// MergeNode implements Store.
func (m *MemoryStore) MergeNode(_ context.Context, n Node) error {
	if err := validIdentifier(n.Label); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := nodeKey{n.Label, n.Name}
	props, ok := m.nodes[key]
	if !ok {
		props = make(map[string]any)
		m.nodes[key] = props
	}
	for k, v := range n.Props {
		props[k] = v
	}
	props["name"] = n.Name
	return nil
}

// MergeRelationship implements Store.
func (m *MemoryStore) MergeRelationship(_ context.Context, r Relationship) error {
	if err := validIdentifier(r.Type); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[nodeKey{r.FromLabel, r.FromName}]; !ok {
		return fmt.Errorf("no %s node %q", r.FromLabel, r.FromName)
	}
	if _, ok := m.nodes[nodeKey{r.ToLabel, r.ToName}]; !ok {
		return fmt.Errorf("no %s node %q", r.ToLabel, r.ToName)
	}
	if _, ok := m.rels[r]; ok {
		return nil
	}
	m.rels[r] = struct{}{}
	m.order = append(m.order, r)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close(context.Context) error {
	return nil
}

// NodeCount returns the number of distinct nodes.
func (m *MemoryStore) NodeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}

// RelationshipCount returns the number of distinct relationships.
func (m *MemoryStore) RelationshipCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rels)
}

// Node returns a copy of the properties of the node keyed by label and name.
func (m *MemoryStore) Node(label, name string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	props, ok := m.nodes[nodeKey{label, name}]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, true
}

// Relationships returns relationships in first-merge order.
func (m *MemoryStore) Relationships() []Relationship {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Relationship(nil), m.order...)
}
