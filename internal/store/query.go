package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// NodeQuery selects nodes from a SQLite store. Zero fields do not filter.
type NodeQuery struct {
	Label      string
	NamePrefix string
	Limit      int
}

// Direction selects which end of a relationship a traversal follows.
type Direction string

const (
	Outgoing Direction = "out"
	Incoming Direction = "in"
)

// RelatedQuery selects the nodes connected to one node.
type RelatedQuery struct {
	Label     string
	Name      string
	Type      string // empty matches every relationship type
	Direction Direction
	Limit     int
}

// RelatedNode is a node reached through a relationship.
type RelatedNode struct {
	Type string
	Node Node
}

// buildNodeQuery translates q into SQL.
func buildNodeQuery(q NodeQuery) (string, []any, error) {
	builder := sq.Select("label", "name", "props").From("nodes")

	if q.Label != "" {
		if err := validIdentifier(q.Label); err != nil {
			return "", nil, err
		}
		builder = builder.Where(sq.Eq{"label": q.Label})
	}
	if q.NamePrefix != "" {
		builder = builder.Where("name LIKE ? ESCAPE '\\'", escapeLike(q.NamePrefix)+"%")
	}
	builder = builder.OrderBy("label", "name")
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate SQL: %w", err)
	}
	return query, args, nil
}

// buildRelatedQuery translates q into SQL joining relationships to the far
// endpoint's node row.
func buildRelatedQuery(q RelatedQuery) (string, []any, error) {
	if err := validIdentifier(q.Label); err != nil {
		return "", nil, err
	}

	near, far := "from", "to"
	switch q.Direction {
	case Outgoing, "":
	case Incoming:
		near, far = "to", "from"
	default:
		return "", nil, fmt.Errorf("unknown direction %q", q.Direction)
	}

	builder := sq.Select("r.type", "n.label", "n.name", "n.props").
		From("relationships r").
		Join(fmt.Sprintf("nodes n ON n.label = r.%s_label AND n.name = r.%s_name", far, far)).
		Where(sq.Eq{
			"r." + near + "_label": q.Label,
			"r." + near + "_name":  q.Name,
		})

	if q.Type != "" {
		if err := validIdentifier(q.Type); err != nil {
			return "", nil, err
		}
		builder = builder.Where(sq.Eq{"r.type": q.Type})
	}
	builder = builder.OrderBy("r.type", "n.label", "n.name")
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate SQL: %w", err)
	}
	return query, args, nil
}

// FindNodes returns the nodes matching q ordered by label and name.
func (s *SQLiteStore) FindNodes(ctx context.Context, q NodeQuery) ([]Node, error) {
	query, args, err := buildNodeQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		n, err := scanNode(rows, nil)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Related returns the nodes connected to the node named by q.
func (s *SQLiteStore) Related(ctx context.Context, q RelatedQuery) ([]RelatedNode, error) {
	query, args, err := buildRelatedQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	var out []RelatedNode
	for rows.Next() {
		var rel string
		n, err := scanNode(rows, &rel)
		if err != nil {
			return nil, err
		}
		out = append(out, RelatedNode{Type: rel, Node: n})
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanNode reads label, name and props, preceded by the relationship type
// when rel is not nil.
func scanNode(rows rowScanner, rel *string) (Node, error) {
	var n Node
	var raw string

	dest := []any{&n.Label, &n.Name, &raw}
	if rel != nil {
		dest = append([]any{rel}, dest...)
	}
	if err := rows.Scan(dest...); err != nil {
		return Node{}, fmt.Errorf("failed to scan row: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &n.Props); err != nil {
		return Node{}, fmt.Errorf("failed to decode properties: %w", err)
	}
	return n, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
