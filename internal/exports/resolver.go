// Package exports approximates the declared public surface of a Python
// package.
//
// The static pass parses the package entry file with tree-sitter and reads
// top-level import statements and literal __all__ assignments. Nested or
// conditional statements are not analysed. The dynamic pass merges whatever
// __all__ the live module exposes. The two results are unioned.
package exports

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mvp-joe/pykg/internal/introspect"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// SyntaxChecker compiles a file with the target interpreter's parser. It
// returns nil when the interpreter accepts the file.
type SyntaxChecker interface {
	CheckSyntax(ctx context.Context, path string) (*introspect.SyntaxIssue, error)
}

// Resolver parses package entry files.
type Resolver struct {
	language *sitter.Language
	checker  SyntaxChecker
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSyntaxChecker makes checker the authority on whether an entry file is
// valid. Tree-sitter recovers from constructs the interpreter rejects, such
// as Python 2 print statements.
func WithSyntaxChecker(checker SyntaxChecker) ResolverOption {
	return func(r *Resolver) {
		r.checker = checker
	}
}

// NewResolver creates a resolver for Python sources.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{language: sitter.NewLanguage(python.Language())}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveFile parses the entry file at path without executing it.
func (r *Resolver) ResolveFile(ctx context.Context, path string) (Set, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry file: %w", err)
	}
	if r.checker != nil {
		issue, err := r.checker.CheckSyntax(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to check syntax of %s: %w", path, err)
		}
		if issue != nil {
			return nil, NewSyntaxError(path, issue)
		}
	}
	return r.ResolveSource(ctx, path, source)
}

// ResolveSource parses source (reported as file in errors).
func (r *Resolver) ResolveSource(ctx context.Context, file string, source []byte) (Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(r.language); err != nil {
		return nil, fmt.Errorf("failed to set parser language: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, &ResolutionError{File: file, Line: 1, Column: 1, Err: ErrSyntax}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		resErr := &ResolutionError{File: file, Line: 1, Column: 1, Err: ErrSyntax}
		if bad := firstSyntaxError(root); bad != nil {
			pos := bad.StartPosition()
			resErr.Line = int(pos.Row) + 1
			resErr.Column = int(pos.Column) + 1
		}
		return nil, resErr
	}

	symbols := NewSet()
	for _, stmt := range namedChildren(root) {
		switch stmt.Kind() {
		case "import_statement":
			addImport(stmt, source, symbols)
		case "import_from_statement", "future_import_statement":
			addFromImport(stmt, source, symbols)
		case "expression_statement":
			addLiteralAll(stmt, source, symbols)
		}
	}
	return symbols, nil
}

// MergeDynamic unions the live module's __all__ into symbols.
func MergeDynamic(symbols Set, g *introspect.Graph) {
	if g == nil || !g.HasDynamicAll() {
		return
	}
	for _, name := range g.DynamicAll {
		symbols.Add(name)
	}
}

// addImport handles `import a.b [as c]`: each contributes its root segment.
func addImport(stmt *sitter.Node, source []byte, symbols Set) {
	for _, child := range namedChildren(stmt) {
		switch child.Kind() {
		case "dotted_name":
			symbols.Add(rootSegment(nodeText(child, source)))
		case "aliased_import":
			symbols.Add(rootSegment(nodeText(child.ChildByFieldName("name"), source)))
		}
	}
}

// addFromImport handles `from x.y import a [as b], c`. The module's root
// segment is added (relative dots stripped), then each imported name and its
// alias when present.
func addFromImport(stmt *sitter.Node, source []byte, symbols Set) {
	moduleNode := stmt.ChildByFieldName("module_name")
	if stmt.Kind() == "future_import_statement" {
		symbols.Add("__future__")
	} else if moduleNode != nil {
		switch moduleNode.Kind() {
		case "dotted_name":
			symbols.Add(rootSegment(nodeText(moduleNode, source)))
		case "relative_import":
			if dotted := findChildByKind(moduleNode, "dotted_name"); dotted != nil {
				symbols.Add(rootSegment(nodeText(dotted, source)))
			}
		}
	}

	for _, child := range namedChildren(stmt) {
		if moduleNode != nil && child.StartByte() == moduleNode.StartByte() && child.EndByte() == moduleNode.EndByte() {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			symbols.Add(nodeText(child, source))
		case "aliased_import":
			symbols.Add(nodeText(child.ChildByFieldName("name"), source))
			symbols.Add(nodeText(child.ChildByFieldName("alias"), source))
		}
	}
}

// addLiteralAll handles `__all__ = [...]` and `__all__ = (...)` where the
// right-hand side is a literal sequence. Only string elements count;
// anything computed is ignored.
func addLiteralAll(stmt *sitter.Node, source []byte, symbols Set) {
	children := namedChildren(stmt)
	if len(children) != 1 || children[0].Kind() != "assignment" {
		return
	}
	assign := children[0]
	if assign.ChildByFieldName("type") != nil {
		return
	}

	left := assign.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" || nodeText(left, source) != "__all__" {
		return
	}

	right := assign.ChildByFieldName("right")
	if right == nil {
		return
	}
	switch right.Kind() {
	case "list", "tuple", "expression_list":
	default:
		return
	}

	for _, elt := range namedChildren(right) {
		if value, ok := stringLiteral(elt, source); ok {
			symbols.Add(value)
		}
	}
}

// stringLiteral returns the value of a plain (non-bytes, non-f) string
// literal, including implicitly concatenated ones.
func stringLiteral(node *sitter.Node, source []byte) (string, bool) {
	switch node.Kind() {
	case "string":
		return plainString(node, source)
	case "concatenated_string":
		var b strings.Builder
		for _, part := range namedChildren(node) {
			s, ok := plainString(part, source)
			if !ok {
				return "", false
			}
			b.WriteString(s)
		}
		return b.String(), true
	}
	return "", false
}

func plainString(node *sitter.Node, source []byte) (string, bool) {
	if node.Kind() != "string" {
		return "", false
	}

	var prefix string
	if start := findChildByKind(node, "string_start"); start != nil {
		prefix = strings.ToLower(strings.TrimRight(nodeText(start, source), `'"`))
	}
	if strings.ContainsAny(prefix, "bf") {
		return "", false
	}
	raw := strings.Contains(prefix, "r")

	var b strings.Builder
	for _, part := range namedChildren(node) {
		switch part.Kind() {
		case "string_start", "string_end":
		case "string_content":
			b.WriteString(decodeContent(part, source, raw))
		case "interpolation":
			return "", false
		default:
			b.WriteString(nodeText(part, source))
		}
	}
	return b.String(), true
}

// decodeContent returns string content with escape sequences resolved
// unless the literal is raw.
func decodeContent(content *sitter.Node, source []byte, raw bool) string {
	if raw || content.NamedChildCount() == 0 {
		return nodeText(content, source)
	}

	var b strings.Builder
	pos := content.StartByte()
	for _, esc := range namedChildren(content) {
		b.Write(source[pos:esc.StartByte()])
		seq := nodeText(esc, source)
		if unquoted, err := strconv.Unquote(`"` + seq + `"`); err == nil {
			b.WriteString(unquoted)
		} else {
			b.WriteString(seq)
		}
		pos = esc.EndByte()
	}
	b.Write(source[pos:content.EndByte()])
	return b.String()
}

func rootSegment(name string) string {
	name = strings.TrimLeft(name, ".")
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
