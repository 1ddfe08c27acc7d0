package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// InitializeSchema creates the constraints and indexes the entity/relation
// model relies on: uniqueness of (type, id), lookup by type, and fulltext
// search over name/description for the Normalizer's similarity stage and
// the NL-Query Service.
func InitializeSchema(ctx context.Context, client *Client, database string) error {
	queries := []string{
		"CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE",
		"CREATE INDEX entity_type_idx IF NOT EXISTS FOR (e:Entity) ON (e.type)",
		"CREATE INDEX entity_name_idx IF NOT EXISTS FOR (e:Entity) ON (e.name)",
		"CREATE CONSTRAINT alias_surface_unique IF NOT EXISTS FOR (a:Alias) REQUIRE a.surface IS UNIQUE",
		"CREATE FULLTEXT INDEX entity_fulltext IF NOT EXISTS FOR (e:Entity) ON EACH [e.name, e.description]",
	}

	for _, query := range queries {
		_, err := client.ExecuteWrite(ctx, database, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, query, nil)
			if err != nil {
				return nil, err
			}
			return result.Consume(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to execute schema query %q: %w", query, err)
		}
	}
	return nil
}

// DropSchema removes all constraints and indexes (used in test cleanup).
func DropSchema(ctx context.Context, client *Client, database string) error {
	queries := []string{
		"DROP CONSTRAINT entity_id_unique IF EXISTS",
		"DROP CONSTRAINT alias_surface_unique IF EXISTS",
		"DROP INDEX entity_type_idx IF EXISTS",
		"DROP INDEX entity_name_idx IF EXISTS",
		"DROP FULLTEXT INDEX entity_fulltext IF EXISTS",
	}
	for _, query := range queries {
		_, _ = client.ExecuteWrite(ctx, database, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, query, nil)
			if err != nil {
				return nil, err
			}
			return result.Consume(ctx)
		})
	}
	return nil
}

// ClearAllData removes all nodes and relationships (used in test cleanup).
func ClearAllData(ctx context.Context, client *Client, database string) error {
	_, err := client.ExecuteWrite(ctx, database, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}
