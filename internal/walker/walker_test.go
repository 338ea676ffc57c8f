package walker

import (
	"testing"

	"github.com/mvp-joe/pykg/internal/api"
	"github.com/mvp-joe/pykg/internal/exports"
	"github.com/mvp-joe/pykg/internal/introspect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for APIWalker:
// - records are emitted in sorted member order, modules once per name
// - submodules outside the root's first segment are not entered
// - inherited methods appear under every class exposing them, with
//   owning_class set to the class being visited
// - re-exposed objects yield one record per path under the alias policy
// - the collapse policy emits one record per object and records aliases
// - compiled objects without source are emitted, classified correctly
// - reflection failures degrade fields without dropping records
// - exclude globs skip matching submodules
// - Annotate marks by last segment, including documented false positives

func str(s string) *string { return &s }

type fixture struct {
	g *introspect.Graph
}

func newFixture() *fixture {
	root := &introspect.Object{ID: "pkg", Category: introspect.CategoryModule, Name: str("pkg"), Doc: "Root package.", File: str("pkg/__init__.py")}
	return &fixture{g: introspect.NewGraph("pkg", root)}
}

func (f *fixture) add(obj *introspect.Object) *introspect.Object {
	return f.g.Add(obj)
}

func (f *fixture) link(parent *introspect.Object, name string, child *introspect.Object) {
	parent.Members = append(parent.Members, introspect.Member{Name: name, Ref: child.ID})
}

// samplePackage builds:
//
//	pkg
//	  Widget -> pkg.core.Widget (same object)
//	  core   -> module pkg.core
//	  helper -> function
//	  np     -> module numpy (third party)
//	pkg.core
//	  Base   (run)
//	  Widget (run inherited from Base, build)
//	  CType  compiled class without source
//	  pkg    -> back-reference to the root
func samplePackage() *fixture {
	f := newFixture()
	root := f.g.Root()

	core := f.add(&introspect.Object{ID: "core", Category: introspect.CategoryModule, Name: str("pkg.core"), File: str("pkg/core.py")})
	numpy := f.add(&introspect.Object{ID: "numpy", Category: introspect.CategoryModule, Name: str("numpy")})
	helper := f.add(&introspect.Object{
		ID: "helper", Category: introspect.CategoryFunction, Name: str("helper"), Module: str("pkg"),
		Doc: "Help.\n:returns: nothing", Signature: str("(x, y=2)"),
		Parameters: []introspect.Param{{Name: "x"}, {Name: "y", HasDefault: true}},
		Source:     str("def helper(x, y=2): ..."), File: str("pkg/__init__.py"),
	})
	run := f.add(&introspect.Object{
		ID: "run", Category: introspect.CategoryFunction, Name: str("run"), Module: str("pkg.core"),
		Signature: str("(self)"), Parameters: []introspect.Param{{Name: "self"}},
	})
	build := f.add(&introspect.Object{
		ID: "build", Category: introspect.CategoryFunction, Name: str("build"), Module: str("pkg.core"),
		Doc: "Deprecated builder.",
	})
	base := f.add(&introspect.Object{ID: "base", Category: introspect.CategoryClass, Name: str("Base"), Module: str("pkg.core")})
	widget := f.add(&introspect.Object{ID: "widget", Category: introspect.CategoryClass, Name: str("Widget"), Module: str("pkg.core"), Doc: "A widget."})
	ctype := f.add(&introspect.Object{
		ID: "ctype", Category: introspect.CategoryClass, Name: str("CType"), Module: str("pkg._native"),
		Errors: map[string]string{"source": "TypeError('built-in class')", "file": "TypeError()"},
	})

	f.link(root, "helper", helper)
	f.link(root, "core", core)
	f.link(root, "np", numpy)
	f.link(root, "Widget", widget)

	f.link(core, "Widget", widget)
	f.link(core, "Base", base)
	f.link(core, "CType", ctype)
	f.link(core, "pkg", root)

	f.link(base, "run", run)
	f.link(widget, "run", run)
	f.link(widget, "build", build)
	return f
}

func ids(records []*api.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func find(t *testing.T, records []*api.Record, id string) *api.Record {
	t.Helper()
	for _, r := range records {
		if r.ID == id {
			return r
		}
	}
	require.Failf(t, "record not found", "id %s", id)
	return nil
}

func walk(t *testing.T, src introspect.Source, opts ...Option) *Result {
	t.Helper()
	w, err := New(opts...)
	require.NoError(t, err)
	res, err := w.Walk(src)
	require.NoError(t, err)
	return res
}

func TestWalk_OrderAndContainment(t *testing.T) {
	t.Parallel()

	res := walk(t, samplePackage().g)

	assert.Equal(t, []string{
		"pkg",
		"pkg.Widget",
		"pkg.Widget.build",
		"pkg.Widget.run",
		"pkg.core",
		"pkg.core.Base",
		"pkg.core.Base.run",
		"pkg.core.CType",
		"pkg.core.Widget",
		"pkg.core.Widget.build",
		"pkg.core.Widget.run",
		"pkg.helper",
	}, ids(res.Records))
}

func TestWalk_OwningClassIsVisitedClass(t *testing.T) {
	t.Parallel()

	res := walk(t, samplePackage().g)

	for _, id := range []string{"pkg.core.Base.run", "pkg.core.Widget.run", "pkg.Widget.run"} {
		r := find(t, res.Records, id)
		assert.Equal(t, api.KindMemberFunction, r.Kind)
		require.NotNil(t, r.OwningClass)
		assert.Equal(t, id[:len(id)-len(".run")], *r.OwningClass)
	}
}

func TestWalk_RecordFields(t *testing.T) {
	t.Parallel()

	res := walk(t, samplePackage().g)

	root := find(t, res.Records, "pkg")
	assert.Equal(t, api.KindModule, root.Kind)
	assert.Equal(t, "pkg", api.Deref(root.ModuleName))
	assert.Equal(t, "()", root.Signature)
	assert.Equal(t, 0, root.Parameters.Len())

	helper := find(t, res.Records, "pkg.helper")
	assert.Equal(t, api.KindFunction, helper.Kind)
	assert.Nil(t, helper.OwningClass)
	assert.Equal(t, "(x, y=2)", helper.Signature)
	require.NotNil(t, helper.ReturnsDoc)
	assert.Equal(t, ":returns: nothing", *helper.ReturnsDoc)
	y, ok := helper.Parameters.Get("y")
	require.True(t, ok)
	assert.True(t, y.IsOptional)
	assert.Equal(t, "x", helper.Parameters.Oldest().Key)

	build := find(t, res.Records, "pkg.core.Widget.build")
	assert.True(t, build.IsDeprecated)
	assert.Equal(t, "()", build.Signature)
}

func TestWalk_CompiledObjectKept(t *testing.T) {
	t.Parallel()

	res := walk(t, samplePackage().g)

	ctype := find(t, res.Records, "pkg.core.CType")
	assert.Equal(t, api.KindClass, ctype.Kind)
	assert.Nil(t, ctype.SourceText)
	assert.Nil(t, ctype.SourceFile)
	assert.Equal(t, "pkg._native", api.Deref(ctype.ModuleName))
}

func TestWalk_AliasPolicyKeepsEveryPath(t *testing.T) {
	t.Parallel()

	res := walk(t, samplePackage().g)

	assert.ElementsMatch(t, []string{"pkg.core.Widget"}, res.Aliases["pkg.Widget"])
	assert.ElementsMatch(t, []string{"pkg.core.Base.run", "pkg.core.Widget.run"}, res.Aliases["pkg.Widget.run"])
}

func TestWalk_CollapsePolicy(t *testing.T) {
	t.Parallel()

	res := walk(t, samplePackage().g, WithDuplicatePolicy(DuplicatesCollapse))

	assert.Equal(t, []string{
		"pkg",
		"pkg.Widget",
		"pkg.Widget.build",
		"pkg.Widget.run",
		"pkg.core",
		"pkg.core.Base",
		"pkg.core.CType",
		"pkg.helper",
	}, ids(res.Records))
	assert.Equal(t, []string{"pkg.core.Widget"}, res.Aliases["pkg.Widget"])
	assert.Equal(t, []string{"pkg.core.Base.run"}, res.Aliases["pkg.Widget.run"])
}

func TestWalk_Excludes(t *testing.T) {
	t.Parallel()

	res := walk(t, samplePackage().g, WithExcludes("pkg.core"))
	assert.Equal(t, []string{"pkg", "pkg.Widget", "pkg.Widget.build", "pkg.Widget.run", "pkg.helper"}, ids(res.Records))
}

func TestWalk_DanglingMemberSkipped(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.link(f.g.Root(), "ghost", &introspect.Object{ID: "ghost"})

	res := walk(t, f.g)
	assert.Equal(t, []string{"pkg"}, ids(res.Records))
}

func TestNew_RejectsBadOptions(t *testing.T) {
	t.Parallel()

	_, err := New(WithDuplicatePolicy("sometimes"))
	assert.Error(t, err)

	_, err = New(WithExcludes("pkg.["))
	assert.Error(t, err)
}

func TestWalk_NoRoot(t *testing.T) {
	t.Parallel()

	w, err := New()
	require.NoError(t, err)
	_, err = w.Walk(&introspect.Graph{RootID: "x", Objects: map[string]*introspect.Object{}})
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestClassify_Unknown(t *testing.T) {
	t.Parallel()

	r := Classify("pkg.VERSION", &introspect.Object{ID: "v", Category: introspect.CategoryOther}, nil)
	assert.Equal(t, api.KindUnknown, r.Kind)
	assert.Equal(t, 0, r.Parameters.Len())
}

func TestAnnotate_LastSegment(t *testing.T) {
	t.Parallel()

	res := walk(t, samplePackage().g)
	marked := Annotate(res.Records, exports.NewSet("Widget", "run"))

	assert.Equal(t, 5, marked)
	assert.True(t, find(t, res.Records, "pkg.Widget").DeclaredInExportList)
	assert.True(t, find(t, res.Records, "pkg.core.Widget").DeclaredInExportList)
	// name collision: methods called "run" are marked too
	assert.True(t, find(t, res.Records, "pkg.core.Base.run").DeclaredInExportList)
	assert.False(t, find(t, res.Records, "pkg.helper").DeclaredInExportList)

	for _, r := range res.Records {
		if r.DeclaredInExportList {
			assert.True(t, exports.NewSet("Widget", "run").Has(r.LastSegment()))
		}
	}
}

func TestAnnotate_AliasScenario(t *testing.T) {
	t.Parallel()

	// entry file: `from .core import Widget as W` and `__all__ = ["W", "helper"]`
	symbols := exports.NewSet("core", "Widget", "W", "helper")
	res := walk(t, samplePackage().g)
	Annotate(res.Records, symbols)

	// pkg.Widget is marked through the original name picked up from the
	// from-import, not through the alias W.
	assert.True(t, find(t, res.Records, "pkg.Widget").DeclaredInExportList)
	assert.True(t, find(t, res.Records, "pkg.core").DeclaredInExportList)
	assert.True(t, find(t, res.Records, "pkg.helper").DeclaredInExportList)
	assert.False(t, find(t, res.Records, "pkg.core.Base").DeclaredInExportList)
}
