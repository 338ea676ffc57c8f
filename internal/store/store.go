// Package store mirrors a knowledge graph into property-graph stores.
//
// Nodes are merged by label plus natural key (the "name" property) and
// relationships by their endpoints and type, so mirroring the same graph any
// number of times leaves the store in the same state as mirroring it once.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/mvp-joe/pykg/internal/graph"
)

// ErrInvalidIdentifier indicates a label or relationship type that cannot
// be used as a store identifier.
var ErrInvalidIdentifier = errors.New("invalid store identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Node is a store node keyed by Label and Name.
type Node struct {
	Label string
	Name  string
	Props map[string]any
}

// Relationship is a store relationship between two keyed nodes.
type Relationship struct {
	FromLabel string
	FromName  string
	Type      string
	ToLabel   string
	ToName    string
}

// Store is a property-graph target supporting merge-by-key writes.
type Store interface {
	// Name identifies the store in errors and logs.
	Name() string

	// MergeNode creates the node or updates its properties.
	MergeNode(ctx context.Context, n Node) error

	// MergeRelationship creates the relationship unless it exists. Both
	// endpoints must already be merged.
	MergeRelationship(ctx context.Context, r Relationship) error

	// Close releases the store's resources.
	Close(ctx context.Context) error
}

// WriteError reports a failed store write.
type WriteError struct {
	Store string
	Op    string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: failed to %s: %v", e.Store, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// RelationshipType converts a graph relation to the store's upper snake
// case form, e.g. hasScript → HAS_SCRIPT.
func RelationshipType(rel graph.Relation) string {
	var b strings.Builder
	for i, r := range string(rel) {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// NodeFor converts an entity into a store node. The natural key becomes the
// "name" property; descriptions keep their full text.
func NodeFor(e *graph.Entity) Node {
	props := make(map[string]any, len(e.Props)+1)
	for k, v := range e.Props {
		props[k] = v
	}
	props["name"] = e.Key
	return Node{Label: string(e.Label), Name: e.Key, Props: props}
}

func validIdentifier(s string) error {
	if !identifierPattern.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return nil
}
