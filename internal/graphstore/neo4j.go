package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Neo4jStore{driver: driver}, nil
}

func (s *Neo4jStore) CreateNode(ctx context.Context, label string, id string, props map[string]string) error {
	params := map[string]any{"id": id}
	setClause := ""
	for k, v := range props {
		params["p_"+k] = v
		setClause += fmt.Sprintf(", n.%s = $p_%s", k, k)
	}
	cypher := fmt.Sprintf("MERGE (n:%s {id: $id}) SET n.id = $id%s", label, setClause)
	_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

func (s *Neo4jStore) CreateRelationship(ctx context.Context, fromID, toID, relType string) error {
	cypher := fmt.Sprintf(
		"MATCH (a {id: $from}), (b {id: $to}) MERGE (a)-[:%s]->(b)", relType)
	_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher,
		map[string]any{"from": fromID, "to": toID}, neo4j.EagerResultTransformer)
	return err
}

func (s *Neo4jStore) QueryRelated(ctx context.Context, chunkID string) ([]string, error) {
	const cypher = `
		MATCH (c:Chunk {id: $id})-[]-(related:Chunk)
		RETURN DISTINCT related.id AS id
	`
	res, err := neo4j.ExecuteQuery(ctx, s.driver, cypher,
		map[string]any{"id": chunkID}, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		value, ok := rec.Get("id")
		if !ok {
			continue
		}
		if id, ok := value.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
