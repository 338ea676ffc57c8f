// Package walker turns a described object graph into API records.
//
// The walk starts at the package root module and visits submodules, classes,
// functions and class methods. Records are identified by the attribute path
// they were discovered through, so an object re-exposed under several names
// yields several records unless the collapse policy is selected.
package walker

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/pykg/internal/api"
	"github.com/mvp-joe/pykg/internal/introspect"
)

// DuplicatePolicy decides what happens when one object is reached through
// more than one attribute path.
type DuplicatePolicy string

const (
	// DuplicatesAsAliases emits one record per path and remembers the
	// additional paths as aliases of the first.
	DuplicatesAsAliases DuplicatePolicy = "aliases"

	// DuplicatesCollapse emits only the first path; later paths become aliases.
	DuplicatesCollapse DuplicatePolicy = "collapse"
)

// ErrNoRoot indicates a source without a root module.
var ErrNoRoot = errors.New("object graph has no root module")

// Result is the output of one walk.
type Result struct {
	Records []*api.Record

	// Aliases maps the first record id of an object to the other paths it
	// was reached through.
	Aliases map[string][]string
}

// Walker walks object graphs.
type Walker struct {
	policy   DuplicatePolicy
	excludes []glob.Glob
	logger   *slog.Logger
}

// Option configures a Walker.
type Option func(*Walker) error

// WithDuplicatePolicy selects how duplicate objects are recorded.
func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(w *Walker) error {
		switch policy {
		case DuplicatesAsAliases, DuplicatesCollapse:
			w.policy = policy
			return nil
		case "":
			return nil
		default:
			return fmt.Errorf("unknown duplicate policy %q", policy)
		}
	}
}

// WithExcludes skips submodules whose dotted name matches any pattern.
// Patterns use '.' as the separator, e.g. "pkg.tests.**".
func WithExcludes(patterns ...string) Option {
	return func(w *Walker) error {
		for _, p := range patterns {
			g, err := glob.Compile(p, '.')
			if err != nil {
				return fmt.Errorf("invalid exclude pattern %q: %w", p, err)
			}
			w.excludes = append(w.excludes, g)
		}
		return nil
	}
}

// WithLogger sets the walker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) error {
		w.logger = logger
		return nil
	}
}

// New creates a walker.
func New(opts ...Option) (*Walker, error) {
	w := &Walker{
		policy: DuplicatesAsAliases,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// walkContext owns all state of one walk.
type walkContext struct {
	src         introspect.Source
	rootSegment string
	visited     map[string]bool
	canonical   map[string]string
	aliases     map[string][]string
	records     []*api.Record
}

// Walk returns the records of every reachable module, class, function and
// method, in discovery order.
func (w *Walker) Walk(src introspect.Source) (*Result, error) {
	root := src.Root()
	if root == nil {
		return nil, ErrNoRoot
	}

	wc := &walkContext{
		src:         src,
		rootSegment: api.RootSegment(moduleName(root)),
		visited:     make(map[string]bool),
		canonical:   make(map[string]string),
		aliases:     make(map[string][]string),
	}
	w.visitModule(wc, root)

	w.logger.Debug("walk complete", "records", len(wc.records), "modules", len(wc.visited))
	return &Result{Records: wc.records, Aliases: wc.aliases}, nil
}

func (w *Walker) visitModule(wc *walkContext, mod *introspect.Object) {
	name := moduleName(mod)
	if wc.visited[name] {
		return
	}
	wc.visited[name] = true

	w.emit(wc, name, mod, nil)

	for _, m := range sortedMembers(mod.Members) {
		member, ok := wc.src.Object(m.Ref)
		if !ok {
			w.logger.Debug("member not described", "module", name, "member", m.Name)
			continue
		}
		fullID := name + "." + m.Name

		switch member.Category {
		case introspect.CategoryModule:
			sub := moduleName(member)
			if api.RootSegment(sub) != wc.rootSegment || w.excluded(sub) {
				continue
			}
			w.visitModule(wc, member)
		case introspect.CategoryClass:
			w.visitClass(wc, fullID, member)
		case introspect.CategoryFunction:
			w.emit(wc, fullID, member, nil)
		}
	}
}

// visitClass records the class and every function reachable on it,
// inherited ones included.
func (w *Walker) visitClass(wc *walkContext, classID string, cls *introspect.Object) {
	if !w.emit(wc, classID, cls, nil) {
		return
	}
	for _, m := range sortedMembers(cls.Members) {
		member, ok := wc.src.Object(m.Ref)
		if !ok || member.Category != introspect.CategoryFunction {
			continue
		}
		owner := classID
		w.emit(wc, classID+"."+m.Name, member, &owner)
	}
}

// emit records obj under id. It returns false when the collapse policy
// suppressed the record.
func (w *Walker) emit(wc *walkContext, id string, obj *introspect.Object, owner *string) bool {
	if first, seen := wc.canonical[obj.ID]; seen && first != id {
		wc.aliases[first] = append(wc.aliases[first], id)
		if w.policy == DuplicatesCollapse {
			return false
		}
	} else if !seen {
		wc.canonical[obj.ID] = id
	}

	for field, msg := range obj.Errors {
		w.logger.Debug("introspection degraded", "id", id, "field", field, "error", msg)
	}

	wc.records = append(wc.records, Classify(id, obj, owner))
	return true
}

func (w *Walker) excluded(module string) bool {
	for _, g := range w.excludes {
		if g.Match(module) {
			return true
		}
	}
	return false
}

func moduleName(mod *introspect.Object) string {
	if name := mod.QualifiedName(); name != "" {
		return name
	}
	return "unknown"
}

func sortedMembers(members []introspect.Member) []introspect.Member {
	out := make([]introspect.Member, len(members))
	copy(out, members)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
