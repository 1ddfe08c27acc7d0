package consistency_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litkg/internal/config"
	"litkg/internal/consistency"
	"litkg/internal/llmclient"
	"litkg/internal/pathfinder"
	"litkg/internal/types"
)

type fakeReader struct {
	entities  map[string]*types.Entity
	relations map[string][]*types.Relation
}

func newFakeReader() *fakeReader {
	return &fakeReader{entities: map[string]*types.Entity{}, relations: map[string][]*types.Relation{}}
}

func (f *fakeReader) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	return f.entities[id], nil
}

func (f *fakeReader) QueryEntitiesByType(ctx context.Context, entityType types.EntityType, limit int) ([]*types.Entity, error) {
	return nil, nil
}

func (f *fakeReader) GetRelations(ctx context.Context, entityID string, direction string) ([]*types.Relation, error) {
	var out []*types.Relation
	for _, r := range f.relations[entityID] {
		switch direction {
		case "outgoing":
			if r.Source == entityID {
				out = append(out, r)
			}
		case "incoming":
			if r.Target == entityID {
				out = append(out, r)
			}
		default:
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReader) QueryEntitiesWithinHops(ctx context.Context, entityID string, maxHops int, relationTypes []types.RelationType) ([]*types.Entity, error) {
	return nil, nil
}

func (f *fakeReader) SearchEntities(ctx context.Context, term string, limit int) ([]*types.Entity, error) {
	return nil, nil
}

func (f *fakeReader) AllRelations(ctx context.Context) ([]*types.Relation, error) { return nil, nil }

func (f *fakeReader) GetAliasBySurface(ctx context.Context, surface string) (*types.Alias, error) {
	return nil, nil
}

func (f *fakeReader) ListAliases(ctx context.Context) ([]types.Alias, error) { return nil, nil }

func (f *fakeReader) addRelation(rel *types.Relation) {
	f.relations[rel.Source] = append(f.relations[rel.Source], rel)
	f.relations[rel.Target] = append(f.relations[rel.Target], rel)
}

func TestCheckMatchedEdgeIsFullyConsistent(t *testing.T) {
	reader := newFakeReader()
	reader.entities["gpt4"] = &types.Entity{ID: "gpt4", Name: "GPT-4", Type: types.EntityAIModel}
	reader.entities["openai"] = &types.Entity{ID: "openai", Name: "OpenAI", Type: types.EntityOrganization}
	reader.addRelation(&types.Relation{Source: "gpt4", Target: "openai", Type: types.RelDevelopedBy, Confidence: 0.9})

	c := consistency.New(config.Default(), reader, pathfinder.NewFinder(config.Default(), reader), nil)
	claim := types.FactClaim{ID: "c1", SourceEntityID: "gpt4", TargetEntityID: "openai", RelationType: types.RelDevelopedBy}

	result, err := c.Check(context.Background(), claim)
	require.NoError(t, err)
	assert.True(t, result.IsConsistent)
	assert.NotEmpty(t, result.SupportingEvidence)
	assert.Equal(t, types.TagMatchedEdge, result.SupportingEvidence[0].Tag)
}

func TestCheckMissingEntityIsContradicting(t *testing.T) {
	reader := newFakeReader()
	c := consistency.New(config.Default(), reader, pathfinder.NewFinder(config.Default(), reader), nil)
	claim := types.FactClaim{ID: "c1", EntityIDs: []string{"ghost"}}

	result, err := c.Check(context.Background(), claim)
	require.NoError(t, err)
	assert.False(t, result.IsConsistent)
	require.NotEmpty(t, result.ContradictingEvidence)
	assert.Equal(t, types.TagMissingEntity, result.ContradictingEvidence[0].Tag)
}

func TestCheckWrongRelationTypeIsContradicting(t *testing.T) {
	reader := newFakeReader()
	reader.entities["gpt4"] = &types.Entity{ID: "gpt4", Name: "GPT-4", Type: types.EntityAIModel}
	reader.entities["openai"] = &types.Entity{ID: "openai", Name: "OpenAI", Type: types.EntityOrganization}
	reader.addRelation(&types.Relation{Source: "gpt4", Target: "openai", Type: types.RelAffiliatedWith, Confidence: 0.8})

	c := consistency.New(config.Default(), reader, pathfinder.NewFinder(config.Default(), reader), nil)
	claim := types.FactClaim{ID: "c1", SourceEntityID: "gpt4", TargetEntityID: "openai", RelationType: types.RelDevelopedBy}

	result, err := c.Check(context.Background(), claim)
	require.NoError(t, err)
	require.NotEmpty(t, result.ContradictingEvidence)
	assert.Equal(t, types.TagWrongRelation, result.ContradictingEvidence[0].Tag)
	assert.NotEmpty(t, result.Suggestions)
}

func TestCheckMissingRelationIsContradicting(t *testing.T) {
	reader := newFakeReader()
	reader.entities["gpt4"] = &types.Entity{ID: "gpt4", Name: "GPT-4", Type: types.EntityAIModel}
	reader.entities["openai"] = &types.Entity{ID: "openai", Name: "OpenAI", Type: types.EntityOrganization}

	c := consistency.New(config.Default(), reader, pathfinder.NewFinder(config.Default(), reader), nil)
	claim := types.FactClaim{ID: "c1", SourceEntityID: "gpt4", TargetEntityID: "openai", RelationType: types.RelDevelopedBy}

	result, err := c.Check(context.Background(), claim)
	require.NoError(t, err)
	require.NotEmpty(t, result.ContradictingEvidence)
	assert.Equal(t, types.TagMissingRelation, result.ContradictingEvidence[0].Tag)
}

func TestCheckAllPreservesOrder(t *testing.T) {
	reader := newFakeReader()
	reader.entities["a"] = &types.Entity{ID: "a", Name: "A", Type: types.EntityAIModel}
	c := consistency.New(config.Default(), reader, nil, nil)

	claims := []types.FactClaim{
		{ID: "c1", EntityIDs: []string{"a"}},
		{ID: "c2", EntityIDs: []string{"ghost"}},
	}
	results, err := c.CheckAll(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].Claim.ID)
	assert.True(t, results[0].IsConsistent)
	assert.False(t, results[1].IsConsistent)
}

func TestExtractClaimsRuleBasedFallback(t *testing.T) {
	c := consistency.New(config.Default(), newFakeReader(), nil, nil)

	claims, err := c.ExtractClaims(context.Background(), "GPT-4 was developed by OpenAI. It was trained on Common Crawl.")
	require.NoError(t, err)
	require.NotEmpty(t, claims)
	assert.Equal(t, types.RelDevelopedBy, claims[0].RelationType)
	assert.Equal(t, "GPT-4", claims[0].SourceEntityID)
	assert.Equal(t, "OpenAI", claims[0].TargetEntityID)
}

func TestExtractClaimsRuleBasedNeverErrorsOnNoMatches(t *testing.T) {
	c := consistency.New(config.Default(), newFakeReader(), nil, nil)

	claims, err := c.ExtractClaims(context.Background(), "the quick brown fox jumps over the lazy dog")
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestExtractClaimsUsesLLMWhenConfigured(t *testing.T) {
	llm := llmclient.NewMockChatClient(
		"SOURCE: GPT-4\nRELATION: DEVELOPED_BY\nTARGET: OpenAI\nCONFIDENCE: 0.95\n",
	)
	c := consistency.New(config.Default(), newFakeReader(), nil, llm)

	claims, err := c.ExtractClaims(context.Background(), "GPT-4 was developed by OpenAI.")
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "GPT-4", claims[0].SourceEntityID)
	assert.Equal(t, types.RelDevelopedBy, claims[0].RelationType)
}

func TestExtractClaimsFallsBackWhenLLMReturnsNone(t *testing.T) {
	llm := llmclient.NewMockChatClient("NONE")
	c := consistency.New(config.Default(), newFakeReader(), nil, llm)

	claims, err := c.ExtractClaims(context.Background(), "GPT-4 was developed by OpenAI.")
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "GPT-4", claims[0].SourceEntityID)
}
