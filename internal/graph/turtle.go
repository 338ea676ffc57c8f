package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultNamespace is the vocabulary namespace of the Turtle output.
	DefaultNamespace = "http://example.org/code#"

	// DefaultDescriptionPreview bounds description labels in Turtle output.
	DefaultDescriptionPreview = 200

	rdfNS  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	rdfsNS = "http://www.w3.org/2000/01/rdf-schema#"
	xsdNS  = "http://www.w3.org/2001/XMLSchema#"
)

// TurtleOptions controls Turtle serialisation.
type TurtleOptions struct {
	Namespace          string
	DescriptionPreview int
}

func (o TurtleOptions) withDefaults() TurtleOptions {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.DescriptionPreview <= 0 {
		o.DescriptionPreview = DefaultDescriptionPreview
	}
	return o
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\b", `\b`,
	"\f", `\f`,
)

func literal(s string) string {
	return `"` + literalEscaper.Replace(s) + `"^^xsd:string`
}

// preview returns the first n runes of s.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// WriteTurtle serialises the ontology declarations and gr as Turtle.
// Description labels are cut to the preview length; other texts are kept
// whole.
func WriteTurtle(w io.Writer, gr *Graph, opts TurtleOptions) error {
	opts = opts.withDefaults()
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "@prefix code: <%s> .\n", opts.Namespace)
	fmt.Fprintf(bw, "@prefix rdf: <%s> .\n", rdfNS)
	fmt.Fprintf(bw, "@prefix rdfs: <%s> .\n", rdfsNS)
	fmt.Fprintf(bw, "@prefix xsd: <%s> .\n\n", xsdNS)

	for _, l := range Labels {
		fmt.Fprintf(bw, "code:%s rdfs:label %q .\n", l, string(l))
	}
	for _, r := range Relations {
		fmt.Fprintf(bw, "code:%s rdfs:label %q .\n", r, r.Label())
	}

	outgoing := make(map[string][]Relationship)
	for _, r := range gr.Relations() {
		outgoing[r.From] = append(outgoing[r.From], r)
	}

	for _, e := range gr.Entities() {
		text := e.Text
		if e.Label == LabelDescription {
			text = preview(text, opts.DescriptionPreview)
		}

		fmt.Fprintf(bw, "\ncode:%s a code:%s ;\n    rdfs:label %s", e.ID, e.Label, literal(text))
		for _, r := range outgoing[e.ID] {
			fmt.Fprintf(bw, " ;\n    code:%s code:%s", r.Type, r.To)
		}
		bw.WriteString(" .\n")
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write turtle: %w", err)
	}
	return nil
}

// SaveTurtle writes gr as Turtle to path, creating parent directories.
func SaveTurtle(path string, gr *Graph, opts TurtleOptions) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create turtle directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create turtle file: %w", err)
	}
	if err := WriteTurtle(f, gr, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close turtle file: %w", err)
	}
	return nil
}
