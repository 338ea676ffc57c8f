package store

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig holds remote connection parameters.
type Neo4jConfig struct {
	URL      string
	User     string
	Password string
	Database string
}

// ConnectionFromFlags returns the connection config only when url, user and
// password are all present; any subset disables the remote store.
func ConnectionFromFlags(url, user, password, database string) (Neo4jConfig, bool) {
	if url == "" || user == "" || password == "" {
		return Neo4jConfig{}, false
	}
	return Neo4jConfig{URL: url, User: user, Password: password, Database: database}, true
}

// Neo4jStore merges nodes and relationships into a Neo4j database.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	cfg    Neo4jConfig
}

// NewNeo4jStore connects to cfg.URL and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URL, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, &WriteError{Store: "neo4j " + cfg.URL, Op: "create driver", Err: err}
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, &WriteError{Store: "neo4j " + cfg.URL, Op: "connect", Err: err}
	}
	return &Neo4jStore{driver: driver, cfg: cfg}, nil
}

func (s *Neo4jStore) Name() string {
	return "neo4j " + s.cfg.URL
}

// MergeNode implements Store.
func (s *Neo4jStore) MergeNode(ctx context.Context, n Node) error {
	query, err := mergeNodeQuery(n.Label)
	if err != nil {
		return err
	}
	return s.write(ctx, query, map[string]any{
		"name":  n.Name,
		"props": n.Props,
	})
}

// MergeRelationship implements Store.
func (s *Neo4jStore) MergeRelationship(ctx context.Context, r Relationship) error {
	query, err := mergeRelationshipQuery(r)
	if err != nil {
		return err
	}
	return s.write(ctx, query, map[string]any{
		"from": r.FromName,
		"to":   r.ToName,
	})
}

func (s *Neo4jStore) write(ctx context.Context, query string, params map[string]any) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.cfg.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to run merge: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// mergeNodeQuery builds the node upsert. Labels cannot be parameters, so
// they are validated before interpolation.
func mergeNodeQuery(label string) (string, error) {
	if err := validIdentifier(label); err != nil {
		return "", err
	}
	return fmt.Sprintf("MERGE (n:`%s` {name: $name}) SET n += $props", label), nil
}

func mergeRelationshipQuery(r Relationship) (string, error) {
	for _, id := range []string{r.FromLabel, r.ToLabel, r.Type} {
		if err := validIdentifier(id); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("MATCH (a:`%s` {name: $from}), (b:`%s` {name: $to}) MERGE (a)-[:`%s`]->(b)",
		r.FromLabel, r.ToLabel, r.Type), nil
}
