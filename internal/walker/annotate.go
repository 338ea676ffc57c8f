package walker

import (
	"github.com/mvp-joe/pykg/internal/api"
	"github.com/mvp-joe/pykg/internal/exports"
)

// Annotate marks every record whose last dotted id segment is in symbols
// and returns how many were marked.
//
// Matching is by name only: a method sharing its name with an unrelated
// exported symbol is marked too.
func Annotate(records []*api.Record, symbols exports.Set) int {
	marked := 0
	for _, r := range records {
		if symbols.Has(r.LastSegment()) {
			r.MarkExported()
			marked++
		}
	}
	return marked
}
