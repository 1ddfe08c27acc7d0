package graphstore

import (
	"context"

	"litkg/internal/types"
)

// GraphWriter is the write-side capability a component needs to persist
// entities, aliases, and relations; *Store implements it. The normalizer
// declares its own narrower Store interface, and the extraction package does
// not write to the graph.
type GraphWriter interface {
	CreateEntity(ctx context.Context, entity types.Entity) error
	UpsertAlias(ctx context.Context, alias types.Alias) error
	CreateRelation(ctx context.Context, rel types.Relation) error
	UpdateRelationReviewStatus(ctx context.Context, key types.RelationKey, status types.ReviewStatus) error
}

// GraphReader is the read-side capability needed by the Path Finder, the
// NL-Query Service, and the Consistency Checker.
type GraphReader interface {
	GetEntity(ctx context.Context, id string) (*types.Entity, error)
	QueryEntitiesByType(ctx context.Context, entityType types.EntityType, limit int) ([]*types.Entity, error)
	GetRelations(ctx context.Context, entityID string, direction string) ([]*types.Relation, error)
	QueryEntitiesWithinHops(ctx context.Context, entityID string, maxHops int, relationTypes []types.RelationType) ([]*types.Entity, error)
	SearchEntities(ctx context.Context, term string, limit int) ([]*types.Entity, error)
	AllRelations(ctx context.Context) ([]*types.Relation, error)
	GetAliasBySurface(ctx context.Context, surface string) (*types.Alias, error)
	ListAliases(ctx context.Context) ([]types.Alias, error)
}

var (
	_ GraphWriter = (*Store)(nil)
	_ GraphReader = (*Store)(nil)
)
