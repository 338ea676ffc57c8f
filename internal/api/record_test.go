package api

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Record:
// - NewRecord derives is_deprecated case-insensitively
// - NewRecord defaults signature to "()" when absent
// - Parameters are dropped for non-callable kinds
// - owning_class is only kept for member functions
// - returns/raises sections are extracted line by line
// - Parameter order survives a JSON round trip
// - MarshalJSON emits exactly the documented field set
// - Documents round-trip through WriteDocument/ReadDocument
// - ExportedOnly filters on declared_in_export_list

func TestNewRecord_DerivesDeprecation(t *testing.T) {
	t.Parallel()

	r := NewRecord("pkg.old", KindFunction, RecordOptions{Doc: "This is DEPRECATED, use new."})
	assert.True(t, r.IsDeprecated)

	r = NewRecord("pkg.new", KindFunction, RecordOptions{Doc: "Fresh."})
	assert.False(t, r.IsDeprecated)

	r = NewRecord("pkg.none", KindFunction, RecordOptions{})
	assert.False(t, r.IsDeprecated)
}

func TestNewRecord_DefaultSignature(t *testing.T) {
	t.Parallel()

	r := NewRecord("pkg.f", KindFunction, RecordOptions{})
	assert.Equal(t, "()", r.Signature)
	assert.Nil(t, r.SourceText)

	sig := "(a, b=1)"
	r = NewRecord("pkg.f", KindFunction, RecordOptions{Signature: &sig})
	assert.Equal(t, "(a, b=1)", r.Signature)
}

func TestNewRecord_ParametersOnlyForCallables(t *testing.T) {
	t.Parallel()

	params := NewParameters()
	params.Set("x", ParamInfo{})

	fn := NewRecord("pkg.f", KindFunction, RecordOptions{Parameters: params})
	assert.Equal(t, 1, fn.Parameters.Len())

	cls := NewRecord("pkg.C", KindClass, RecordOptions{Parameters: params})
	assert.Equal(t, 0, cls.Parameters.Len())
}

func TestNewRecord_OwningClassOnlyForMembers(t *testing.T) {
	t.Parallel()

	owner := "pkg.C"
	m := NewRecord("pkg.C.run", KindMemberFunction, RecordOptions{OwningClass: &owner})
	require.NotNil(t, m.OwningClass)
	assert.Equal(t, "pkg.C", *m.OwningClass)

	f := NewRecord("pkg.run", KindFunction, RecordOptions{OwningClass: &owner})
	assert.Nil(t, f.OwningClass)
}

func TestExtractDocSection(t *testing.T) {
	t.Parallel()

	doc := "Do a thing.\n\n  :param x: the x\n  :Returns: a value\n  :raises ValueError: when bad\n:return: again"
	ret := ExtractDocSection(doc, ReturnMarkers)
	require.NotNil(t, ret)
	assert.Equal(t, ":Returns: a value\n:return: again", *ret)

	raises := ExtractDocSection(doc, RaiseMarkers)
	require.NotNil(t, raises)
	assert.Equal(t, ":raises ValueError: when bad", *raises)

	assert.Nil(t, ExtractDocSection("plain text", ReturnMarkers))
	assert.Nil(t, ExtractDocSection("", ReturnMarkers))
}

func TestRecord_ParameterOrderSurvivesJSON(t *testing.T) {
	t.Parallel()

	params := NewParameters()
	for _, name := range []string{"self", "zeta", "alpha", "kwargs"} {
		params.Set(name, ParamInfo{IsOptional: name == "alpha"})
	}
	r := NewRecord("pkg.C.m", KindMemberFunction, RecordOptions{Parameters: params})

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))

	var names []string
	for pair := decoded.Parameters.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	assert.Equal(t, []string{"self", "zeta", "alpha", "kwargs"}, names)

	alpha, ok := decoded.Parameters.Get("alpha")
	require.True(t, ok)
	assert.True(t, alpha.IsOptional)
}

func TestRecord_JSONFieldSet(t *testing.T) {
	t.Parallel()

	r := NewRecord("pkg", KindModule, RecordOptions{ModuleName: Str("pkg")})
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	expected := []string{
		"id", "kind", "doc", "is_deprecated", "source_text", "signature",
		"parameters", "returns_doc", "raises_doc", "owning_class",
		"declared_in_export_list", "module_name", "source_file",
	}
	assert.Len(t, fields, len(expected))
	for _, key := range expected {
		assert.Contains(t, fields, key)
	}
	assert.Nil(t, fields["source_text"])
	assert.Equal(t, "module", fields["kind"])
}

func TestDocument_RoundTrip(t *testing.T) {
	t.Parallel()

	a := NewRecord("pkg.a", KindFunction, RecordOptions{Doc: "naïve café"})
	b := NewRecord("pkg.b", KindFunction, RecordOptions{})
	b.MarkExported()

	path := filepath.Join(t.TempDir(), "out", "doc.json")
	require.NoError(t, WriteDocument(path, NewDocument([]*Record{a, b})))

	doc, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Count)
	require.Len(t, doc.Data, 2)
	assert.Equal(t, "naïve café", doc.Data[0].Doc)
	assert.True(t, doc.Data[1].DeclaredInExportList)

	exported := ExportedOnly(doc.Data)
	require.Len(t, exported, 1)
	assert.Equal(t, "pkg.b", exported[0].ID)
}

func TestDocumentPaths(t *testing.T) {
	t.Parallel()

	initOnly, all := DocumentPaths("out", "flask", "")
	assert.Equal(t, filepath.Join("out", "flask_latest_api_init_only.json"), initOnly)
	assert.Equal(t, filepath.Join("out", "flask_latest_api_all.json"), all)

	initOnly, _ = DocumentPaths("out", "numpy", "2.2.3")
	assert.Equal(t, filepath.Join("out", "numpy_2.2.3_api_init_only.json"), initOnly)
}

func TestSegments(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Widget", LastSegment("pkg.core.Widget"))
	assert.Equal(t, "pkg", LastSegment("pkg"))
	assert.Equal(t, "pkg", RootSegment("pkg.core.Widget"))
	assert.Equal(t, "pkg", RootSegment("pkg"))
}
