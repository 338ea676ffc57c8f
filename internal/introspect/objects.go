// Package introspect describes the live object graph of a loaded Python
// package.
//
// The graph is captured by a reflection probe (probe.py) running inside the
// package's interpreter. Each object is keyed by its runtime identity, so two
// attribute paths leading to the same object share one Object entry. The probe
// only reports facts; traversal and classification policy live in the walker.
package introspect

import (
	"encoding/json"
	"fmt"
	"io"
)

// Category is the reflective category of an object.
type Category string

const (
	CategoryModule   Category = "module"
	CategoryClass    Category = "class"
	CategoryFunction Category = "function"
	CategoryOther    Category = "other"
)

// Param is one declared parameter of a function.
type Param struct {
	Name       string `json:"name"`
	HasDefault bool   `json:"has_default"`
}

// Member is a named attribute pointing at another object.
type Member struct {
	Name string `json:"name"`
	Ref  string `json:"ref"`
}

// Object holds the reflective facts captured for one runtime object.
// Nil pointers mean the fact was unavailable or its retrieval failed.
type Object struct {
	ID         string            `json:"-"`
	Category   Category          `json:"category"`
	Name       *string           `json:"name"`
	Module     *string           `json:"module"`
	Doc        string            `json:"doc"`
	Signature  *string           `json:"signature"`
	Parameters []Param           `json:"parameters"`
	Source     *string           `json:"source"`
	File       *string           `json:"file"`
	Members    []Member          `json:"members"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// QualifiedName returns the object's __name__, or "" when it has none.
func (o *Object) QualifiedName() string {
	if o.Name == nil {
		return ""
	}
	return *o.Name
}

// Source gives the walker access to a described object graph.
type Source interface {
	// Root returns the package's root module.
	Root() *Object

	// Object resolves an object by identity.
	Object(id string) (*Object, bool)
}

// SyntaxIssue is a syntax error reported by the interpreter's own parser.
// Line and Column are 1-indexed.
type SyntaxIssue struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// SyntaxCheck is the outcome of compiling a source file. A nil Error means
// the interpreter accepted the file.
type SyntaxCheck struct {
	Error *SyntaxIssue `json:"error"`
}

// Graph is the described object graph of one loaded package.
type Graph struct {
	Package    string             `json:"package"`
	RootID     string             `json:"root"`
	EntryFile  string             `json:"entry_file"`
	DynamicAll []string           `json:"dynamic_all"`
	Objects    map[string]*Object `json:"objects"`

	// EntrySyntax is nil for dumps captured without a syntax check.
	EntrySyntax *SyntaxCheck `json:"entry_syntax,omitempty"`
}

// Root returns the root module object.
func (g *Graph) Root() *Object {
	return g.Objects[g.RootID]
}

// Object resolves an object by identity.
func (g *Graph) Object(id string) (*Object, bool) {
	obj, ok := g.Objects[id]
	return obj, ok && obj != nil
}

// EntrySyntaxError returns the syntax error of the entry file, if the
// capture checked it and the interpreter rejected it.
func (g *Graph) EntrySyntaxError() *SyntaxIssue {
	if g.EntrySyntax == nil {
		return nil
	}
	return g.EntrySyntax.Error
}

// HasDynamicAll reports whether the live root module exposed a list, tuple
// or set __all__.
func (g *Graph) HasDynamicAll() bool {
	return g.DynamicAll != nil
}

// ParseGraph decodes a probe dump.
func ParseGraph(r io.Reader) (*Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to decode object graph: %w", err)
	}
	if err := g.index(); err != nil {
		return nil, err
	}
	return &g, nil
}

// index assigns ids and checks that the root resolves.
func (g *Graph) index() error {
	if g.Objects == nil {
		g.Objects = map[string]*Object{}
	}
	for id, obj := range g.Objects {
		if obj != nil {
			obj.ID = id
		}
	}
	// an entry file that does not compile cannot be imported, so the dump
	// carries the syntax error and no objects
	if g.Root() == nil && g.EntrySyntaxError() == nil {
		return fmt.Errorf("%w: root %q", ErrMissingObject, g.RootID)
	}
	return nil
}

// NewGraph creates an empty graph for pkg whose root object is root.
func NewGraph(pkg string, root *Object) *Graph {
	g := &Graph{
		Package: pkg,
		RootID:  root.ID,
		Objects: map[string]*Object{},
	}
	g.Add(root)
	return g
}

// Add registers obj under its ID, replacing any previous entry.
func (g *Graph) Add(obj *Object) *Object {
	g.Objects[obj.ID] = obj
	return obj
}

func marshalGraph(g *Graph) ([]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode object graph: %w", err)
	}
	return data, nil
}
