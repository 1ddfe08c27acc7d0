package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"litkg/internal/apperrors"
	"litkg/internal/types"
)

// Store provides CRUD operations for the entity/alias/relation model over a
// Neo4j property graph. It satisfies both GraphReader and GraphWriter.
type Store struct {
	client   *Client
	database string
}

// NewStore creates a new graph store bound to the given database.
func NewStore(client *Client, database string) *Store {
	return &Store{client: client, database: database}
}

// CreateEntity stores an entity as an (:Entity) node, upserting on id.
func (s *Store) CreateEntity(ctx context.Context, entity types.Entity) error {
	query := `
		MERGE (e:Entity {id: $id})
		SET e.name = $name,
		    e.type = $type,
		    e.description = $description,
		    e.attributes = $attributes,
		    e.updated_at = $updated_at
		ON CREATE SET e.created_at = $updated_at
	`

	attrs, err := json.Marshal(entity.Attributes)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("encode-attributes")
	}

	params := map[string]any{
		"id":          entity.ID,
		"name":        entity.Name,
		"type":        string(entity.Type),
		"description": entity.Description,
		"attributes":  string(attrs),
		"updated_at":  time.Now().Unix(),
	}

	_, err = s.client.ExecuteWrite(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("create-entity")
	}
	return nil
}

// UpsertAlias stores an (:Alias)-[:REFERS_TO]->(:Entity) edge, keyed on
// surface form uniqueness.
func (s *Store) UpsertAlias(ctx context.Context, alias types.Alias) error {
	query := `
		MATCH (e:Entity {id: $canonical})
		MERGE (a:Alias {surface: $surface})
		SET a.confidence = $confidence,
		    a.source = $source,
		    a.created_at = $created_at
		MERGE (a)-[:REFERS_TO]->(e)
	`

	params := map[string]any{
		"surface":    alias.Surface,
		"canonical":  alias.Canonical,
		"confidence": alias.Confidence,
		"source":     string(alias.Source),
		"created_at": alias.CreatedAt.Unix(),
	}

	_, err := s.client.ExecuteWrite(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("upsert-alias")
	}
	return nil
}

// GetAliasBySurface looks up the alias row for an exact surface form, used
// by the Normalizer's rule/alias short-circuit and its conflict check
// before registering a new row for the same surface.
func (s *Store) GetAliasBySurface(ctx context.Context, surface string) (*types.Alias, error) {
	query := `
		MATCH (a:Alias {surface: $surface})-[:REFERS_TO]->(e:Entity)
		RETURN a.surface as surface, e.id as canonical, a.confidence as confidence,
		       a.source as source, a.created_at as created_at
	`

	result, err := s.client.ExecuteRead(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"surface": surface})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			return recordToAlias(res.Record())
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return nil, apperrors.New(apperrors.ErrAliasNotFound, fmt.Sprintf("alias not found: %s", surface))
	})
	if err != nil {
		if se, ok := apperrors.As(err); ok {
			return nil, se
		}
		return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("get-alias-by-surface")
	}
	return result.(*types.Alias), nil
}

// ListAliases retrieves every alias row, used by the Normalizer's
// similarity stage to build its candidate set.
func (s *Store) ListAliases(ctx context.Context) ([]types.Alias, error) {
	query := `
		MATCH (a:Alias)-[:REFERS_TO]->(e:Entity)
		RETURN a.surface as surface, e.id as canonical, a.confidence as confidence,
		       a.source as source, a.created_at as created_at
	`

	result, err := s.client.ExecuteRead(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		var aliases []types.Alias
		for res.Next(ctx) {
			a, err := recordToAlias(res.Record())
			if err != nil {
				return nil, err
			}
			aliases = append(aliases, *a)
		}
		return aliases, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("list-aliases")
	}
	return result.([]types.Alias), nil
}

func recordToAlias(record *neo4j.Record) (*types.Alias, error) {
	surface, _ := record.Get("surface")
	canonical, _ := record.Get("canonical")
	confidence, _ := record.Get("confidence")
	source, _ := record.Get("source")
	createdAt, _ := record.Get("created_at")

	alias := &types.Alias{
		Surface:    asString(surface),
		Canonical:  asString(canonical),
		Confidence: asFloat(confidence),
		Source:     types.AliasSource(asString(source)),
	}
	if sec, ok := createdAt.(int64); ok {
		alias.CreatedAt = time.Unix(sec, 0).UTC()
	}
	return alias, nil
}

// CreateRelation creates or updates a typed edge between two entities,
// keyed on (source, target, type). Evidence and score components are
// serialized as JSON since Neo4j properties cannot hold nested structs.
func (s *Store) CreateRelation(ctx context.Context, rel types.Relation) error {
	evidence, err := json.Marshal(rel.Evidence)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("encode-evidence")
	}

	query := fmt.Sprintf(`
		MATCH (source:Entity {id: $source_id})
		MATCH (target:Entity {id: $target_id})
		MERGE (source)-[r:%s]->(target)
		SET r.confidence = $confidence,
		    r.cooccurrence_score = $cooccurrence,
		    r.llm_score = $llm,
		    r.source_score = $source_score,
		    r.graph_score = $graph,
		    r.evidence = $evidence,
		    r.review_status = $review_status,
		    r.method = $method,
		    r.needs_review = $needs_review,
		    r.updated_at = $updated_at
	`, string(rel.Type))

	params := map[string]any{
		"source_id":     rel.Source,
		"target_id":     rel.Target,
		"confidence":    rel.Confidence,
		"cooccurrence":  rel.ScoreComponents.Cooccurrence,
		"llm":           rel.ScoreComponents.LLM,
		"source_score":  rel.ScoreComponents.Source,
		"graph":         rel.ScoreComponents.Graph,
		"evidence":      string(evidence),
		"review_status": string(rel.ReviewStatus),
		"method":        string(rel.Method),
		"needs_review":  rel.NeedsReview,
		"updated_at":    time.Now().Unix(),
	}

	_, err = s.client.ExecuteWrite(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("create-relation")
	}
	return nil
}

// UpdateRelationReviewStatus transitions a relation's review status, used by
// the reviewer workflow and the Contradiction Detector's downgrade path.
func (s *Store) UpdateRelationReviewStatus(ctx context.Context, key types.RelationKey, status types.ReviewStatus) error {
	query := fmt.Sprintf(`
		MATCH (:Entity {id: $source_id})-[r:%s]->(:Entity {id: $target_id})
		SET r.review_status = $status
	`, string(key.Type))

	params := map[string]any{
		"source_id": key.Source,
		"target_id": key.Target,
		"status":    string(status),
	}

	_, err := s.client.ExecuteWrite(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("update-review-status")
	}
	return nil
}

// GetEntity retrieves an entity by id.
func (s *Store) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	query := `
		MATCH (e:Entity {id: $id})
		RETURN e.id as id, e.name as name, e.type as type, e.description as description, e.attributes as attributes
	`

	result, err := s.client.ExecuteRead(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			return recordToEntity(res.Record())
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return nil, apperrors.New(apperrors.ErrEntityNotFound, fmt.Sprintf("entity not found: %s", id))
	})
	if err != nil {
		if se, ok := apperrors.As(err); ok {
			return nil, se
		}
		return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("get-entity")
	}

	entity, ok := result.(*types.Entity)
	if !ok {
		return nil, apperrors.New(apperrors.ErrGraphStoreFailed, "unexpected result type for get-entity")
	}
	return entity, nil
}

// QueryEntitiesByType retrieves entities of a given type, newest first.
func (s *Store) QueryEntitiesByType(ctx context.Context, entityType types.EntityType, limit int) ([]*types.Entity, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		MATCH (e:Entity {type: $type})
		RETURN e.id as id, e.name as name, e.type as type, e.description as description, e.attributes as attributes
		ORDER BY e.created_at DESC
		LIMIT $limit
	`

	result, err := s.client.ExecuteRead(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"type": string(entityType), "limit": limit})
		if err != nil {
			return nil, err
		}
		var entities []*types.Entity
		for res.Next(ctx) {
			e, err := recordToEntity(res.Record())
			if err != nil {
				return nil, err
			}
			entities = append(entities, e)
		}
		return entities, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("query-entities-by-type")
	}
	return result.([]*types.Entity), nil
}

// GetRelations retrieves relations touching an entity. direction is one of
// "outgoing", "incoming", or "both".
func (s *Store) GetRelations(ctx context.Context, entityID string, direction string) ([]*types.Relation, error) {
	var query string
	switch direction {
	case "outgoing":
		query = `
			MATCH (from:Entity {id: $id})-[r]->(to:Entity)
			RETURN type(r) as type, from.id as source_id, to.id as target_id,
			       r.confidence as confidence, r.cooccurrence_score as cooccurrence,
			       r.llm_score as llm, r.source_score as source_score, r.graph_score as graph,
			       r.evidence as evidence, r.review_status as review_status,
			       r.method as method, r.needs_review as needs_review
		`
	case "incoming":
		query = `
			MATCH (from:Entity)-[r]->(to:Entity {id: $id})
			RETURN type(r) as type, from.id as source_id, to.id as target_id,
			       r.confidence as confidence, r.cooccurrence_score as cooccurrence,
			       r.llm_score as llm, r.source_score as source_score, r.graph_score as graph,
			       r.evidence as evidence, r.review_status as review_status,
			       r.method as method, r.needs_review as needs_review
		`
	default:
		query = `
			MATCH (e:Entity {id: $id})-[r]-(other:Entity)
			RETURN type(r) as type, startNode(r).id as source_id, endNode(r).id as target_id,
			       r.confidence as confidence, r.cooccurrence_score as cooccurrence,
			       r.llm_score as llm, r.source_score as source_score, r.graph_score as graph,
			       r.evidence as evidence, r.review_status as review_status,
			       r.method as method, r.needs_review as needs_review
		`
	}

	result, err := s.client.ExecuteRead(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": entityID})
		if err != nil {
			return nil, err
		}
		var relations []*types.Relation
		for res.Next(ctx) {
			r, err := recordToRelation(res.Record())
			if err != nil {
				return nil, err
			}
			relations = append(relations, r)
		}
		return relations, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("get-relations")
	}
	return result.([]*types.Relation), nil
}

// AllRelations retrieves every relation in the graph, used by the Path
// Finder to build its in-memory snapshot.
func (s *Store) AllRelations(ctx context.Context) ([]*types.Relation, error) {
	query := `
		MATCH (source:Entity)-[r]->(target:Entity)
		RETURN type(r) as type, source.id as source_id, target.id as target_id,
		       r.confidence as confidence, r.cooccurrence_score as cooccurrence,
		       r.llm_score as llm, r.source_score as source_score, r.graph_score as graph,
		       r.evidence as evidence, r.review_status as review_status,
		       r.method as method, r.needs_review as needs_review
	`

	result, err := s.client.ExecuteRead(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		var relations []*types.Relation
		for res.Next(ctx) {
			r, err := recordToRelation(res.Record())
			if err != nil {
				return nil, err
			}
			relations = append(relations, r)
		}
		return relations, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("all-relations")
	}
	return result.([]*types.Relation), nil
}

// QueryEntitiesWithinHops finds entities within N hops of a starting entity,
// optionally filtered to specific relation types.
func (s *Store) QueryEntitiesWithinHops(ctx context.Context, entityID string, maxHops int, relationTypes []types.RelationType) ([]*types.Entity, error) {
	if maxHops <= 0 {
		maxHops = 2
	}

	relFilter := ""
	if len(relationTypes) > 0 {
		relFilter = ":"
		for i, rt := range relationTypes {
			if i > 0 {
				relFilter += "|"
			}
			relFilter += string(rt)
		}
	}

	query := fmt.Sprintf(`
		MATCH path = (start:Entity {id: $id})-[r%s*1..%d]-(connected:Entity)
		WHERE start.id <> connected.id
		RETURN DISTINCT connected.id as id, connected.name as name, connected.type as type,
		       connected.description as description, connected.attributes as attributes,
		       length(path) as hops
		ORDER BY hops ASC
	`, relFilter, maxHops)

	result, err := s.client.ExecuteRead(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": entityID})
		if err != nil {
			return nil, err
		}
		var entities []*types.Entity
		for res.Next(ctx) {
			e, err := recordToEntity(res.Record())
			if err != nil {
				return nil, err
			}
			entities = append(entities, e)
		}
		return entities, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("query-entities-within-hops")
	}
	return result.([]*types.Entity), nil
}

// SearchEntities performs fulltext search over entity name/description.
func (s *Store) SearchEntities(ctx context.Context, term string, limit int) ([]*types.Entity, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		CALL db.index.fulltext.queryNodes('entity_fulltext', $term)
		YIELD node, score
		RETURN node.id as id, node.name as name, node.type as type,
		       node.description as description, node.attributes as attributes
		ORDER BY score DESC
		LIMIT $limit
	`

	result, err := s.client.ExecuteRead(ctx, s.database, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"term": term, "limit": limit})
		if err != nil {
			return nil, err
		}
		var entities []*types.Entity
		for res.Next(ctx) {
			e, err := recordToEntity(res.Record())
			if err != nil {
				return nil, err
			}
			entities = append(entities, e)
		}
		return entities, res.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("search-entities")
	}
	return result.([]*types.Entity), nil
}

func recordToEntity(record *neo4j.Record) (*types.Entity, error) {
	id, _ := record.Get("id")
	name, _ := record.Get("name")
	etype, _ := record.Get("type")
	description, _ := record.Get("description")
	attrsRaw, _ := record.Get("attributes")

	entity := &types.Entity{
		ID:          asString(id),
		Name:        asString(name),
		Type:        types.EntityType(asString(etype)),
		Description: asString(description),
	}

	if attrsStr := asString(attrsRaw); attrsStr != "" {
		attrs := map[string]any{}
		if err := json.Unmarshal([]byte(attrsStr), &attrs); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("decode-attributes")
		}
		entity.Attributes = attrs
	}

	return entity, nil
}

func recordToRelation(record *neo4j.Record) (*types.Relation, error) {
	relType, _ := record.Get("type")
	sourceID, _ := record.Get("source_id")
	targetID, _ := record.Get("target_id")
	confidence, _ := record.Get("confidence")
	cooccurrence, _ := record.Get("cooccurrence")
	llm, _ := record.Get("llm")
	sourceScore, _ := record.Get("source_score")
	graph, _ := record.Get("graph")
	evidenceRaw, _ := record.Get("evidence")
	reviewStatus, _ := record.Get("review_status")
	method, _ := record.Get("method")
	needsReview, _ := record.Get("needs_review")

	rel := &types.Relation{
		Source:     asString(sourceID),
		Target:     asString(targetID),
		Type:       types.RelationType(asString(relType)),
		Confidence: asFloat(confidence),
		ScoreComponents: types.ScoreComponents{
			Cooccurrence: asFloat(cooccurrence),
			LLM:          asFloat(llm),
			Source:       asFloat(sourceScore),
			Graph:        asFloat(graph),
		},
		ReviewStatus: types.ReviewStatus(asString(reviewStatus)),
		Method:       types.ExtractionMethod(asString(method)),
	}
	if nr, ok := needsReview.(bool); ok {
		rel.NeedsReview = nr
	}

	if evStr := asString(evidenceRaw); evStr != "" {
		var evidence []types.Evidence
		if err := json.Unmarshal([]byte(evStr), &evidence); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("decode-evidence")
		}
		rel.Evidence = evidence
	}

	return rel, nil
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asFloat(v any) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
