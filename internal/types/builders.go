package types

import "time"

// RelationBuilder provides a fluent API for constructing proposed relations
// during extraction, mirroring the source/target/type/evidence accumulation
// the orchestrator performs when merging proposals.
type RelationBuilder struct {
	relation *Relation
}

// NewRelation creates a new RelationBuilder with sensible defaults.
func NewRelation(source, target string, relType RelationType) *RelationBuilder {
	return &RelationBuilder{
		relation: &Relation{
			Source:       source,
			Target:       target,
			Type:         relType,
			ReviewStatus: ReviewPending,
			Method:       MethodCooccurrence,
			Evidence:     make([]Evidence, 0, 1),
		},
	}
}

// WithMethod sets the extraction method.
func (b *RelationBuilder) WithMethod(m ExtractionMethod) *RelationBuilder {
	b.relation.Method = m
	return b
}

// WithComponents sets the four raw score components.
func (b *RelationBuilder) WithComponents(c ScoreComponents) *RelationBuilder {
	b.relation.ScoreComponents = c
	return b
}

// WithConfidence sets the fused confidence directly (bypassing the scorer;
// callers that want scorer-derived confidence should leave this unset and
// call the scorer afterward).
func (b *RelationBuilder) WithConfidence(c float64) *RelationBuilder {
	b.relation.Confidence = c
	return b
}

// AddEvidence appends one evidence record.
func (b *RelationBuilder) AddEvidence(documentID, snippet string, method ExtractionMethod, rawConfidence float64) *RelationBuilder {
	b.relation.Evidence = append(b.relation.Evidence, Evidence{
		DocumentID:     documentID,
		ContextSnippet: snippet,
		Method:         method,
		RawConfidence:  rawConfidence,
	})
	return b
}

// ReviewStatus overrides the triage outcome (used by callers applying
// contradiction-detection downgrades).
func (b *RelationBuilder) ReviewStatus(s ReviewStatus) *RelationBuilder {
	b.relation.ReviewStatus = s
	return b
}

// NeedsReview marks the relation as requiring human attention.
func (b *RelationBuilder) NeedsReview(v bool) *RelationBuilder {
	b.relation.NeedsReview = v
	return b
}

// Build returns the constructed relation.
func (b *RelationBuilder) Build() *Relation {
	return b.relation
}

// EntityBuilder provides a fluent API for constructing entities, mirroring
// the thought-builder pattern used elsewhere in this codebase.
type EntityBuilder struct {
	entity *Entity
}

// NewEntity creates a new EntityBuilder with an empty attribute map.
func NewEntity(id, name string, entType EntityType) *EntityBuilder {
	return &EntityBuilder{
		entity: &Entity{
			ID:         id,
			Name:       name,
			Type:       entType,
			Attributes: make(map[string]any),
		},
	}
}

// Description sets the entity description.
func (b *EntityBuilder) Description(d string) *EntityBuilder {
	b.entity.Description = d
	return b
}

// Attr sets one attribute key/value.
func (b *EntityBuilder) Attr(key string, value any) *EntityBuilder {
	b.entity.Attributes[key] = value
	return b
}

// Build returns the constructed entity.
func (b *EntityBuilder) Build() *Entity {
	return b.entity
}

// NewAlias constructs an Alias row with the current time as its creation
// timestamp, mirroring how the normalizer stamps new rows on registration.
func NewAlias(surface, canonical string, confidence float64, source AliasSource) *Alias {
	return &Alias{
		Surface:    surface,
		Canonical:  canonical,
		Confidence: confidence,
		Source:     source,
		CreatedAt:  time.Now(),
	}
}
