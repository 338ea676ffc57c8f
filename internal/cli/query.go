package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pykg/internal/store"
)

var (
	queryDB         string
	queryLabel      string
	queryNamePrefix string
	queryRelated    string
	queryType       string
	queryIncoming   bool
	queryLimit      int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a SQLite graph written by 'pykg graph --sqlite-out'",
	Long: `Query lists nodes by label and name prefix, or the neighbours of one node.

Examples:
  # every class under flask.
  pykg query --db flask.db --label Class --prefix flask.

  # methods of flask.Flask
  pykg query --db flask.db --label Class --related flask.Flask --type HAS_METHOD

  # who includes the flask.app module
  pykg query --db flask.db --label Module --related flask.app --incoming
`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryDB, "db", "", "SQLite graph database (required)")
	queryCmd.Flags().StringVar(&queryLabel, "label", "", "node label, e.g. Class or API")
	queryCmd.Flags().StringVar(&queryNamePrefix, "prefix", "", "node name prefix")
	queryCmd.Flags().StringVar(&queryRelated, "related", "", "list the neighbours of the node with this name (requires --label)")
	queryCmd.Flags().StringVar(&queryType, "type", "", "relationship type, e.g. HAS_METHOD")
	queryCmd.Flags().BoolVar(&queryIncoming, "incoming", false, "follow relationships pointing at the node")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 50, "maximum number of rows")
	_ = queryCmd.MarkFlagRequired("db")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(queryDB); err != nil {
		return fmt.Errorf("failed to open graph database: %w", err)
	}
	s, err := store.OpenSQLite(cmd.Context(), queryDB)
	if err != nil {
		return err
	}
	defer s.Close(cmd.Context())

	return queryStore(cmd.Context(), s, cmd.OutOrStdout())
}

func queryStore(ctx context.Context, s *store.SQLiteStore, w io.Writer) error {
	if queryRelated != "" {
		if queryLabel == "" {
			return fmt.Errorf("--related requires --label")
		}
		dir := store.Outgoing
		if queryIncoming {
			dir = store.Incoming
		}
		related, err := s.Related(ctx, store.RelatedQuery{
			Label:     queryLabel,
			Name:      queryRelated,
			Type:      queryType,
			Direction: dir,
			Limit:     queryLimit,
		})
		if err != nil {
			return err
		}
		for _, r := range related {
			fmt.Fprintf(w, "%-18s %-12s %s\n", r.Type, r.Node.Label, r.Node.Name)
		}
		return nil
	}

	nodes, err := s.FindNodes(ctx, store.NodeQuery{
		Label:      queryLabel,
		NamePrefix: queryNamePrefix,
		Limit:      queryLimit,
	})
	if err != nil {
		return err
	}
	for _, n := range nodes {
		props, err := json.Marshal(n.Props)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintf(w, "%-12s %s %s\n", n.Label, n.Name, props)
	}
	return nil
}
