package api

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind is the semantic category of a discovered symbol.
type Kind string

const (
	KindModule         Kind = "module"
	KindClass          Kind = "class"
	KindFunction       Kind = "function"
	KindMemberFunction Kind = "member_function"
	KindUnknown        Kind = "unknown"
)

// IsCallable reports whether records of this kind carry parameters.
func (k Kind) IsCallable() bool {
	return k == KindFunction || k == KindMemberFunction
}

// DefaultSignature is used when a signature cannot be introspected.
const DefaultSignature = "()"

// ParamInfo describes one parameter of a function or method.
type ParamInfo struct {
	IsOptional bool `json:"is_optional"`
}

// Parameters maps parameter names to their metadata in declaration order.
type Parameters = orderedmap.OrderedMap[string, ParamInfo]

// NewParameters returns an empty ordered parameter map.
func NewParameters() *Parameters {
	return orderedmap.New[string, ParamInfo]()
}

// Record describes one discovered module, class, function or method.
//
// Kind is fixed at construction. The only field mutated afterwards is
// DeclaredInExportList, and only from false to true via MarkExported.
type Record struct {
	ID                   string      `json:"id"`
	Kind                 Kind        `json:"kind"`
	Doc                  string      `json:"doc"`
	IsDeprecated         bool        `json:"is_deprecated"`
	SourceText           *string     `json:"source_text"`
	Signature            string      `json:"signature"`
	Parameters           *Parameters `json:"parameters"`
	ReturnsDoc           *string     `json:"returns_doc"`
	RaisesDoc            *string     `json:"raises_doc"`
	OwningClass          *string     `json:"owning_class"`
	DeclaredInExportList bool        `json:"declared_in_export_list"`
	ModuleName           *string     `json:"module_name"`
	SourceFile           *string     `json:"source_file"`
}

// RecordOptions carries the introspected facts used to build a Record.
type RecordOptions struct {
	Doc         string
	SourceText  *string
	Signature   *string
	Parameters  *Parameters
	OwningClass *string
	ModuleName  *string
	SourceFile  *string
}

// NewRecord builds a record, deriving the deprecation flag and the
// returns/raises sections from the documentation text.
func NewRecord(id string, kind Kind, opts RecordOptions) *Record {
	sig := DefaultSignature
	if opts.Signature != nil && *opts.Signature != "" {
		sig = *opts.Signature
	}

	params := NewParameters()
	if kind.IsCallable() && opts.Parameters != nil {
		for pair := opts.Parameters.Oldest(); pair != nil; pair = pair.Next() {
			params.Set(pair.Key, pair.Value)
		}
	}

	var owner *string
	if kind == KindMemberFunction {
		owner = opts.OwningClass
	}

	return &Record{
		ID:           id,
		Kind:         kind,
		Doc:          opts.Doc,
		IsDeprecated: IsDeprecatedDoc(opts.Doc),
		SourceText:   opts.SourceText,
		Signature:    sig,
		Parameters:   params,
		ReturnsDoc:   ExtractDocSection(opts.Doc, ReturnMarkers),
		RaisesDoc:    ExtractDocSection(opts.Doc, RaiseMarkers),
		OwningClass:  owner,
		ModuleName:   opts.ModuleName,
		SourceFile:   opts.SourceFile,
	}
}

// MarkExported flags the record as part of the declared export surface.
func (r *Record) MarkExported() {
	r.DeclaredInExportList = true
}

// LastSegment returns the final dotted segment of the record id.
func (r *Record) LastSegment() string {
	return LastSegment(r.ID)
}

// LastSegment returns the final dotted segment of a qualified name.
func LastSegment(id string) string {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[i+1:]
	}
	return id
}

// RootSegment returns the first dotted segment of a qualified name.
func RootSegment(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
