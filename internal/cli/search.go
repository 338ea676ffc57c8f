package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pykg/internal/api"
	"github.com/mvp-joe/pykg/internal/search"
)

var (
	searchInput    string
	searchKind     string
	searchExported bool
	searchLimit    int
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search the records of an extracted API document",
	Long: `Search runs a full-text query over record ids, names, docstrings, signatures
and module names. Field queries such as name:run or doc:"request context"
are supported.

Examples:
  pykg search --input API_output/flask_3.0.2_api_all.json "render template"
  pykg search --input flask_api_all.json --kind class --exported app
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchInput, "input", "i", "", "extracted API document (required)")
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "only records of this kind (module, class, function, member_function)")
	searchCmd.Flags().BoolVar(&searchExported, "exported", false, "only records declared in the export list")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	_ = searchCmd.MarkFlagRequired("input")
}

func runSearch(cmd *cobra.Command, args []string) error {
	results, err := searchDocument(cmd.Context(), searchInput, strings.Join(args, " "), &search.Options{
		Limit:        searchLimit,
		Kind:         api.Kind(searchKind),
		ExportedOnly: searchExported,
	})
	if err != nil {
		return err
	}
	return printResults(cmd.OutOrStdout(), results, searchJSON)
}

func searchDocument(ctx context.Context, path, query string, opts *search.Options) ([]*search.Result, error) {
	doc, err := api.ReadDocument(path)
	if err != nil {
		return nil, err
	}

	ix, err := search.NewIndex(ctx, doc.Data)
	if err != nil {
		return nil, err
	}
	defer ix.Close()

	return ix.Search(ctx, query, opts)
}

func printResults(w io.Writer, results []*search.Result, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No matching records")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(w, "%-6.3f %-16s %s%s\n", r.Score, r.Kind, r.ID, r.Signature)
		for _, h := range r.Highlights {
			fmt.Fprintf(w, "       %s\n", h)
		}
	}
	return nil
}
