// Package consistency implements the consistency checker: validating
// extracted or asserted claims against the stored graph and scoring how
// well-supported each one is, per spec section 4.14.
package consistency

import (
	"context"
	"fmt"

	"litkg/internal/apperrors"
	"litkg/internal/config"
	"litkg/internal/graphstore"
	"litkg/internal/llmclient"
	"litkg/internal/pathfinder"
	"litkg/internal/types"
)

// scoring weights for the affine combination: entity presence, relation
// match, and path support. They sum to 1.0, mirroring the scorer's own
// weighted-combination shape (internal/extraction/scorer.go) rather than
// an unweighted average.
const (
	weightEntityPresence = 0.4
	weightRelationMatch  = 0.4
	weightPathSupport    = 0.2

	// supportingPathHops bounds the "small hop budget" the spec calls for
	// when looking for additional corroborating paths.
	supportingPathHops = 3
	maxSupportingPaths = 3
)

// PathFinder is the path-lookup capability checkPathSupport needs. A
// *pathfinder.Finder satisfies it directly; callers wanting the path cache
// in front of it can supply any type with the same method instead.
type PathFinder interface {
	FindPaths(ctx context.Context, startID, endID string, opts pathfinder.Options) (pathfinder.PathResult, error)
}

// Checker validates FactClaims against the stored graph.
type Checker struct {
	cfg    *config.Config
	reader graphstore.GraphReader
	finder PathFinder
	llm    llmclient.ChatClient // nil disables the LLM claim-extraction path
}

// New builds a Checker. finder may be nil: path-support evidence is then
// simply never added. llm may be nil: ExtractClaims falls back straight to
// its rule-based extractor.
func New(cfg *config.Config, reader graphstore.GraphReader, finder PathFinder, llm llmclient.ChatClient) *Checker {
	return &Checker{cfg: cfg, reader: reader, finder: finder, llm: llm}
}

// Check validates a single claim against the graph.
func (c *Checker) Check(ctx context.Context, claim types.FactClaim) (types.ConsistencyResult, error) {
	result := types.ConsistencyResult{Claim: claim}

	entityScore, err := c.checkEntities(ctx, claim, &result)
	if err != nil {
		return types.ConsistencyResult{}, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("consistency.check-entities")
	}

	relationScore, err := c.checkRelation(ctx, claim, &result)
	if err != nil {
		return types.ConsistencyResult{}, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("consistency.check-relation")
	}

	pathScore, err := c.checkPathSupport(ctx, claim, &result)
	if err != nil {
		return types.ConsistencyResult{}, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("consistency.check-paths")
	}

	score := weightEntityPresence*entityScore + weightRelationMatch*relationScore + weightPathSupport*pathScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	result.Score = score
	result.IsConsistent = score >= c.cfg.Thresholds.ConsistencyPass
	result.Explanation = explain(result)
	return result, nil
}

// CheckAll validates a batch of claims, preserving input order.
func (c *Checker) CheckAll(ctx context.Context, claims []types.FactClaim) ([]types.ConsistencyResult, error) {
	results := make([]types.ConsistencyResult, 0, len(claims))
	for _, claim := range claims {
		result, err := c.Check(ctx, claim)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// checkEntities resolves every entity id the claim names and returns the
// fraction actually found in the graph (1.0 when the claim names none).
func (c *Checker) checkEntities(ctx context.Context, claim types.FactClaim, result *types.ConsistencyResult) (float64, error) {
	ids := allClaimEntityIDs(claim)
	if len(ids) == 0 {
		return 1.0, nil
	}

	found := 0
	for _, id := range ids {
		entity, err := c.reader.GetEntity(ctx, id)
		if err != nil {
			return 0, err
		}
		if entity == nil {
			result.ContradictingEvidence = append(result.ContradictingEvidence, types.ConsistencyEvidence{
				Tag:    types.TagMissingEntity,
				Detail: fmt.Sprintf("entity %q not found in graph", id),
			})
			continue
		}
		found++
	}
	return float64(found) / float64(len(ids)), nil
}

// checkRelation looks up outgoing edges from the claim's source entity and
// compares them against the asserted (source, target, relationType). A
// claim that asserts no relation neither supports nor contradicts, so the
// component scores neutral.
func (c *Checker) checkRelation(ctx context.Context, claim types.FactClaim, result *types.ConsistencyResult) (float64, error) {
	if claim.SourceEntityID == "" || claim.TargetEntityID == "" || claim.RelationType == "" {
		return 1.0, nil
	}

	rels, err := c.reader.GetRelations(ctx, claim.SourceEntityID, "outgoing")
	if err != nil {
		return 0, err
	}

	var matchedWrongType *types.Relation
	for _, rel := range rels {
		if rel.Target != claim.TargetEntityID {
			continue
		}
		if rel.Type == claim.RelationType {
			result.SupportingEvidence = append(result.SupportingEvidence, types.ConsistencyEvidence{
				Tag:      types.TagMatchedEdge,
				Detail:   fmt.Sprintf("%s %s %s", rel.Source, rel.Type, rel.Target),
				Relation: rel,
			})
			return 1.0, nil
		}
		matchedWrongType = rel
	}

	if matchedWrongType != nil {
		result.ContradictingEvidence = append(result.ContradictingEvidence, types.ConsistencyEvidence{
			Tag:      types.TagWrongRelation,
			Detail:   fmt.Sprintf("graph has %s %s %s, claim asserts %s", matchedWrongType.Source, matchedWrongType.Type, matchedWrongType.Target, claim.RelationType),
			Relation: matchedWrongType,
		})
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("consider relation type %s instead of %s", matchedWrongType.Type, claim.RelationType))
		return 0, nil
	}

	result.ContradictingEvidence = append(result.ContradictingEvidence, types.ConsistencyEvidence{
		Tag:    types.TagMissingRelation,
		Detail: fmt.Sprintf("no edge from %s to %s in the graph", claim.SourceEntityID, claim.TargetEntityID),
	})
	return 0, nil
}

// checkPathSupport looks for additional paths between the claim's source
// and target within a small hop budget, adding each as supporting
// evidence. A claim with no source/target, or a finder unavailable, scores
// neutral zero rather than penalizing the claim for something it didn't
// assert.
func (c *Checker) checkPathSupport(ctx context.Context, claim types.FactClaim, result *types.ConsistencyResult) (float64, error) {
	if c.finder == nil || claim.SourceEntityID == "" || claim.TargetEntityID == "" {
		return 0, nil
	}

	paths, err := c.finder.FindPaths(ctx, claim.SourceEntityID, claim.TargetEntityID, pathfinder.Options{MaxHops: supportingPathHops})
	if err != nil {
		return 0, err
	}
	if len(paths.Paths) == 0 {
		return 0, nil
	}

	n := len(paths.Paths)
	if n > maxSupportingPaths {
		n = maxSupportingPaths
	}
	for _, p := range paths.Paths[:n] {
		result.SupportingEvidence = append(result.SupportingEvidence, types.ConsistencyEvidence{
			Tag:    types.TagSupportingPath,
			Detail: fmt.Sprintf("%d-hop path with score %.2f", p.Hops, p.Score),
		})
	}
	return float64(n) / float64(maxSupportingPaths), nil
}

func allClaimEntityIDs(claim types.FactClaim) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, id := range claim.EntityIDs {
		add(id)
	}
	add(claim.SourceEntityID)
	add(claim.TargetEntityID)
	return ids
}

func explain(result types.ConsistencyResult) string {
	return fmt.Sprintf("score %.2f from %d supporting and %d contradicting evidence item(s)",
		result.Score, len(result.SupportingEvidence), len(result.ContradictingEvidence))
}
