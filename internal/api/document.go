package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document is the persisted form of one extraction run.
type Document struct {
	Count int       `json:"count"`
	Data  []*Record `json:"data"`
}

// NewDocument wraps records in a document with a matching count.
func NewDocument(records []*Record) *Document {
	if records == nil {
		records = []*Record{}
	}
	return &Document{Count: len(records), Data: records}
}

// ExportedOnly returns the records marked as part of the export surface.
func ExportedOnly(records []*Record) []*Record {
	out := []*Record{}
	for _, r := range records {
		if r.DeclaredInExportList {
			out = append(out, r)
		}
	}
	return out
}

// DocumentPaths returns the export-surface and full document paths for a
// package extraction written to outputDir.
func DocumentPaths(outputDir, pkg, version string) (initOnly, all string) {
	if version == "" {
		version = "latest"
	}
	base := fmt.Sprintf("%s_%s_api", pkg, version)
	return filepath.Join(outputDir, base+"_init_only.json"),
		filepath.Join(outputDir, base+"_all.json")
}

// WriteDocument writes doc as indented JSON, creating parent directories.
func WriteDocument(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// ReadDocument loads a document written by WriteDocument.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document %s: %w", path, err)
	}
	for _, r := range doc.Data {
		if r.Parameters == nil {
			r.Parameters = NewParameters()
		}
	}
	return &doc, nil
}
