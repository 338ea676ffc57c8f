package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvp-joe/pykg/internal/graph"
)

// ProgressReporter receives mirror progress.
type ProgressReporter interface {
	OnMirrorStart(store string, total int)
	OnMirrorProgress(done int)
	OnMirrorComplete()
}

// NoOpProgressReporter reports nothing.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnMirrorStart(store string, total int) {}
func (NoOpProgressReporter) OnMirrorProgress(done int)             {}
func (NoOpProgressReporter) OnMirrorComplete()                     {}

// Mirror merges every entity and then every relationship of gr into s.
// The first failure stops the mirror and is returned as a *WriteError.
func Mirror(ctx context.Context, gr *graph.Graph, s Store, progress ProgressReporter) error {
	if progress == nil {
		progress = NoOpProgressReporter{}
	}

	entities := gr.Entities()
	relations := gr.Relations()
	progress.OnMirrorStart(s.Name(), len(entities)+len(relations))

	done := 0
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.MergeNode(ctx, NodeFor(e)); err != nil {
			return writeError(s, fmt.Sprintf("merge %s %q", e.Label, e.Key), err)
		}
		done++
		progress.OnMirrorProgress(done)
	}

	for _, r := range relations {
		if err := ctx.Err(); err != nil {
			return err
		}
		from, ok := gr.ByID(r.From)
		if !ok {
			return writeError(s, "resolve relation source", fmt.Errorf("unknown entity %q", r.From))
		}
		to, ok := gr.ByID(r.To)
		if !ok {
			return writeError(s, "resolve relation target", fmt.Errorf("unknown entity %q", r.To))
		}

		rel := Relationship{
			FromLabel: string(from.Label),
			FromName:  from.Key,
			Type:      RelationshipType(r.Type),
			ToLabel:   string(to.Label),
			ToName:    to.Key,
		}
		if err := s.MergeRelationship(ctx, rel); err != nil {
			return writeError(s, fmt.Sprintf("merge %s %q -> %q", rel.Type, from.Key, to.Key), err)
		}
		done++
		progress.OnMirrorProgress(done)
	}

	progress.OnMirrorComplete()
	return nil
}

func writeError(s Store, op string, err error) error {
	var we *WriteError
	if errors.As(err, &we) {
		return we
	}
	return &WriteError{Store: s.Name(), Op: op, Err: err}
}
