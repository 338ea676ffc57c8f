// Package graph builds a typed knowledge graph from API records.
//
// One pass over the records produces the entity/relationship set; the
// Turtle document, the JSON snapshot and the property-graph mirror are all
// derived from that set without revisiting the package.
package graph

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mvp-joe/pykg/internal/api"
)

const (
	// DefaultLibraryName is used when no library name is given.
	DefaultLibraryName = "MyLibrary"

	// DefaultModule receives classes without module attribution and no
	// fallback mapping.
	DefaultModule = "UnknownModule"
)

// DefaultFallbackModules returns the class-to-module mapping shipped as the
// configuration default. It covers the Flask application classes, which are
// commonly re-exported without module attribution.
func DefaultFallbackModules() map[string]string {
	return map[string]string{
		"Flask": "flask.app",
		"App":   "flask.app",
	}
}

// Builder builds knowledge graphs from records.
type Builder struct {
	fallbackModules map[string]string
	defaultModule   string
	logger          *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithFallbackModules maps class short names to the module assigned when a
// class record carries no module attribution.
func WithFallbackModules(m map[string]string) BuilderOption {
	return func(b *Builder) {
		for class, module := range m {
			b.fallbackModules[class] = module
		}
	}
}

// WithDefaultModule sets the module for unattributed classes that have no
// fallback mapping.
func WithDefaultModule(module string) BuilderOption {
	return func(b *Builder) {
		if module != "" {
			b.defaultModule = module
		}
	}
}

// WithLogger sets the builder logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a graph builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		fallbackModules: make(map[string]string),
		defaultModule:   DefaultModule,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates the knowledge graph of records under a single library
// entity named library.
func (b *Builder) Build(records []*api.Record, library string) (*Graph, error) {
	if library == "" {
		library = DefaultLibraryName
	}
	gr := newGraph(library)
	lib := gr.ensure(LabelLibrary, library, library, nil)

	for _, r := range records {
		if err := b.add(gr, lib, r); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", r.ID, err)
		}
	}

	b.logger.Info("built knowledge graph",
		"library", library, "entities", len(gr.entities), "relations", len(gr.relations))
	return gr, nil
}

func (b *Builder) add(gr *Graph, lib *Entity, r *api.Record) error {
	var script *Entity
	if file := api.Deref(r.SourceFile); file != "" {
		script = gr.ensure(LabelScript, file, file, nil)
		if err := gr.relate(lib, script, RelHasScript); err != nil {
			return err
		}
	}

	var module *Entity
	if name := api.Deref(r.ModuleName); name != "" {
		var err error
		if module, err = b.module(gr, script, name); err != nil {
			return err
		}
	}

	// owner receives the description
	var owner *Entity
	switch r.Kind {
	case api.KindClass:
		if module == nil {
			var err error
			if module, err = b.module(gr, script, b.FallbackModule(r.LastSegment())); err != nil {
				return err
			}
		}
		owner = gr.ensure(LabelClass, r.ID, r.ID, nil)
		if err := gr.relate(module, owner, RelInclude); err != nil {
			return err
		}

	case api.KindFunction, api.KindMemberFunction:
		owner = gr.ensure(LabelAPI, r.ID, r.ID, nil)
		if r.Kind == api.KindMemberFunction && r.OwningClass != nil {
			cls := gr.ensure(LabelClass, *r.OwningClass, *r.OwningClass, nil)
			if err := gr.relate(cls, owner, RelHasMethod); err != nil {
				return err
			}
		} else if module != nil {
			if err := gr.relate(module, owner, RelHasMethod); err != nil {
				return err
			}
		}
		if err := b.addCallable(gr, owner, r); err != nil {
			return err
		}

	case api.KindModule:
		owner = module
	}

	if r.Doc != "" && owner != nil {
		desc := gr.ensure(LabelDescription, r.ID+"_desc", r.Doc, map[string]any{"content": r.Doc})
		if err := gr.relate(owner, desc, RelHasDescription); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) addCallable(gr *Graph, fn *Entity, r *api.Record) error {
	if r.ReturnsDoc != nil {
		ret := gr.ensure(LabelReturnValue, r.ID+"_ret", *r.ReturnsDoc, map[string]any{"content": *r.ReturnsDoc})
		if err := gr.relate(fn, ret, RelHasReturnValue); err != nil {
			return err
		}
	}
	if r.Parameters == nil {
		return nil
	}
	for pair := r.Parameters.Oldest(); pair != nil; pair = pair.Next() {
		text := fmt.Sprintf("%s (optional=%t)", pair.Key, pair.Value.IsOptional)
		param := gr.ensure(LabelParameter, r.ID+"_"+pair.Key, text, map[string]any{"optional": pair.Value.IsOptional})
		if err := gr.relate(fn, param, RelHasParameter); err != nil {
			return err
		}
	}
	return nil
}

// module returns the module entity for name, contained in script when the
// record has one.
func (b *Builder) module(gr *Graph, script *Entity, name string) (*Entity, error) {
	module := gr.ensure(LabelModule, name, name, nil)
	if script != nil {
		if err := gr.relate(script, module, RelContainModule); err != nil {
			return nil, err
		}
	}
	return module, nil
}

// FallbackModule returns the module assigned to an unattributed class.
// Lower-cased keys also match; an exact match wins.
func (b *Builder) FallbackModule(className string) string {
	if m, ok := b.fallbackModules[className]; ok {
		return m
	}
	if m, ok := b.fallbackModules[strings.ToLower(className)]; ok {
		return m
	}
	return b.defaultModule
}
