// Package search provides keyword search over extracted API records.
package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mvp-joe/pykg/internal/api"
)

const (
	batchSize    = 1000
	defaultLimit = 15
	maxLimit     = 100
)

// Options narrows a search.
type Options struct {
	Limit        int
	Kind         api.Kind
	ExportedOnly bool
}

// Result is one matching record.
type Result struct {
	ID         string   `json:"id"`
	Kind       api.Kind `json:"kind"`
	Signature  string   `json:"signature"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
}

// Index is an in-memory full-text index of records.
type Index struct {
	index bleve.Index
}

// NewIndex indexes records.
func NewIndex(ctx context.Context, records []*api.Record) (*Index, error) {
	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := index.NewBatch()
	for i, r := range records {
		if i%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				index.Close()
				return nil, err
			}
		}
		if err := batch.Index(r.ID, toDocument(r)); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to add %s to batch: %w", r.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				index.Close()
				return nil, fmt.Errorf("failed to execute batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to execute final batch: %w", err)
		}
	}

	return &Index{index: index}, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	keyword := func() *mapping.FieldMapping {
		m := bleve.NewTextFieldMapping()
		m.Analyzer = "keyword"
		m.Store = true
		return m
	}
	text := func() *mapping.FieldMapping {
		m := bleve.NewTextFieldMapping()
		m.Analyzer = "standard"
		m.Store = true
		m.IncludeTermVectors = true
		return m
	}

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("id", keyword())
	docMapping.AddFieldMappingsAt("kind", keyword())
	docMapping.AddFieldMappingsAt("name", text())
	docMapping.AddFieldMappingsAt("doc", text())
	docMapping.AddFieldMappingsAt("signature", text())
	docMapping.AddFieldMappingsAt("module", text())
	docMapping.AddFieldMappingsAt("exported", bleve.NewBooleanFieldMapping())

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func toDocument(r *api.Record) map[string]any {
	return map[string]any{
		"id":        r.ID,
		"kind":      string(r.Kind),
		"name":      r.LastSegment(),
		"doc":       r.Doc,
		"signature": r.Signature,
		"module":    api.Deref(r.ModuleName),
		"exported":  r.DeclaredInExportList,
	}
}

// Search runs a bleve query-string query, e.g. `template kind:function`.
func (ix *Index) Search(_ context.Context, queryStr string, opts *Options) ([]*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	limit := opts.Limit
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	queries := []query.Query{bleve.NewQueryStringQuery(queryStr)}
	if opts.Kind != "" {
		q := bleve.NewTermQuery(string(opts.Kind))
		q.SetField("kind")
		queries = append(queries, q)
	}
	if opts.ExportedOnly {
		q := bleve.NewBoolFieldQuery(true)
		q.SetField("exported")
		queries = append(queries, q)
	}

	var final query.Query = queries[0]
	if len(queries) > 1 {
		final = bleve.NewConjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequestOptions(final, limit, 0, false)
	req.Fields = []string{"id", "kind", "signature"}
	req.Highlight = bleve.NewHighlightWithStyle("ansi")
	req.Highlight.Fields = []string{"doc"}

	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	results := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		kind, _ := hit.Fields["kind"].(string)
		sig, _ := hit.Fields["signature"].(string)

		var highlights []string
		for _, fragments := range hit.Fragments {
			highlights = append(highlights, fragments...)
		}
		results = append(results, &Result{
			ID:         hit.ID,
			Kind:       api.Kind(kind),
			Signature:  sig,
			Score:      hit.Score,
			Highlights: highlights,
		})
	}
	return results, nil
}

// Close releases the index.
func (ix *Index) Close() error {
	return ix.index.Close()
}
