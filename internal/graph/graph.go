package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
)

const relationAttr = "type"

// Graph is a knowledge graph built from API records. Entities are unique
// per (label, key); relationships are unique per (from, to).
type Graph struct {
	library   string
	entities  []*Entity
	relations []Relationship
	byKey     map[Label]map[string]*Entity
	tokens    map[string]bool
	g         graph.Graph[string, *Entity]
}

// Stats counts entities per label and relationships per type.
type Stats struct {
	Entities  map[Label]int    `json:"entities"`
	Relations map[Relation]int `json:"relations"`
}

func newGraph(library string) *Graph {
	return &Graph{
		library: library,
		byKey:   make(map[Label]map[string]*Entity),
		tokens:  make(map[string]bool),
		g:       graph.New(func(e *Entity) string { return e.ID }, graph.Directed()),
	}
}

// Library returns the library display name.
func (gr *Graph) Library() string {
	return gr.library
}

// Entities returns entities in creation order.
func (gr *Graph) Entities() []*Entity {
	return gr.entities
}

// Relations returns relationships in creation order.
func (gr *Graph) Relations() []Relationship {
	return gr.relations
}

// Entity looks up an entity by label and natural key.
func (gr *Graph) Entity(label Label, key string) (*Entity, bool) {
	e, ok := gr.byKey[label][key]
	return e, ok
}

// ByID looks up an entity by its token.
func (gr *Graph) ByID(id string) (*Entity, bool) {
	e, err := gr.g.Vertex(id)
	if err != nil {
		return nil, false
	}
	return e, true
}

// ensure returns the entity for (label, key), creating it when missing.
// text and props only apply on creation.
func (gr *Graph) ensure(label Label, key, text string, props map[string]any) *Entity {
	if e, ok := gr.byKey[label][key]; ok {
		return e
	}
	if gr.byKey[label] == nil {
		gr.byKey[label] = make(map[string]*Entity)
	}

	e := &Entity{
		ID:    gr.token(label, key),
		Label: label,
		Key:   key,
		Text:  text,
		Props: props,
	}
	gr.byKey[label][key] = e
	gr.entities = append(gr.entities, e)
	// token is unique, so the vertex cannot already exist
	_ = gr.g.AddVertex(e)
	return e
}

// token derives a unique identifier for a new entity. Distinct keys that
// sanitise to the same token get a numeric suffix.
func (gr *Graph) token(label Label, key string) string {
	base := string(label) + "_" + Sanitize(key)
	id := base
	for n := 2; gr.tokens[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	gr.tokens[id] = true
	return id
}

// relate adds a relationship unless one already joins the two entities.
func (gr *Graph) relate(from, to *Entity, rel Relation) error {
	err := gr.g.AddEdge(from.ID, to.ID, graph.EdgeAttribute(relationAttr, string(rel)))
	if errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to relate %s to %s: %w", from.ID, to.ID, err)
	}
	gr.relations = append(gr.relations, Relationship{From: from.ID, To: to.ID, Type: rel})
	return nil
}

// Neighbors returns the targets of id's outgoing relationships of type rel,
// sorted by id. An empty rel matches every type.
func (gr *Graph) Neighbors(id string, rel Relation) ([]*Entity, error) {
	adjacency, err := gr.g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to read adjacency: %w", err)
	}
	edges, ok := adjacency[id]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q: %w", id, graph.ErrVertexNotFound)
	}

	var out []*Entity
	for target, edge := range edges {
		if rel != "" && edge.Properties.Attributes[relationAttr] != string(rel) {
			continue
		}
		if e, ok := gr.ByID(target); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Stats counts the graph contents.
func (gr *Graph) Stats() Stats {
	s := Stats{
		Entities:  make(map[Label]int),
		Relations: make(map[Relation]int),
	}
	for _, e := range gr.entities {
		s.Entities[e.Label]++
	}
	for _, r := range gr.relations {
		s.Relations[r.Type]++
	}
	return s
}

// Data returns the serialisable form of the graph.
func (gr *Graph) Data() *GraphData {
	data := &GraphData{
		Metadata:  GraphMetadata{Library: gr.library},
		Entities:  make([]Entity, 0, len(gr.entities)),
		Relations: append([]Relationship{}, gr.relations...),
	}
	for _, e := range gr.entities {
		data.Entities = append(data.Entities, *e)
	}
	return data
}

// FromData rebuilds a graph from its serialised form.
func FromData(data *GraphData) (*Graph, error) {
	gr := newGraph(data.Metadata.Library)
	for i := range data.Entities {
		e := data.Entities[i]
		if gr.tokens[e.ID] {
			return nil, fmt.Errorf("duplicate entity id %q", e.ID)
		}
		if gr.byKey[e.Label] == nil {
			gr.byKey[e.Label] = make(map[string]*Entity)
		}
		gr.tokens[e.ID] = true
		gr.byKey[e.Label][e.Key] = &e
		gr.entities = append(gr.entities, &e)
		_ = gr.g.AddVertex(&e)
	}
	for _, r := range data.Relations {
		from, ok := gr.ByID(r.From)
		if !ok {
			return nil, fmt.Errorf("relation from unknown entity %q", r.From)
		}
		to, ok := gr.ByID(r.To)
		if !ok {
			return nil, fmt.Errorf("relation to unknown entity %q", r.To)
		}
		if err := gr.relate(from, to, r.Type); err != nil {
			return nil, err
		}
	}
	return gr, nil
}
