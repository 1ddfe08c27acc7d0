package normalizer_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litkg/internal/apperrors"
	"litkg/internal/config"
	"litkg/internal/llmclient"
	"litkg/internal/normalizer"
	"litkg/internal/types"
)

type fakeStore struct {
	aliases map[string]types.Alias
	search  []*types.Entity
}

func newFakeStore() *fakeStore {
	return &fakeStore{aliases: map[string]types.Alias{}}
}

func (f *fakeStore) GetAliasBySurface(ctx context.Context, surface string) (*types.Alias, error) {
	a, ok := f.aliases[surface]
	if !ok {
		return nil, apperrors.New(apperrors.ErrAliasNotFound, "not found")
	}
	return &a, nil
}

func (f *fakeStore) ListAliases(ctx context.Context) ([]types.Alias, error) {
	out := make([]types.Alias, 0, len(f.aliases))
	for _, a := range f.aliases {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) UpsertAlias(ctx context.Context, alias types.Alias) error {
	f.aliases[alias.Surface] = alias
	return nil
}

func (f *fakeStore) SearchEntities(ctx context.Context, term string, limit int) ([]*types.Entity, error) {
	return f.search, nil
}

func TestNormalizeRuleStageShortCircuitsWithFullConfidence(t *testing.T) {
	cfg := config.Default()
	store := newFakeStore()
	rules := []normalizer.Rule{
		{Pattern: regexp.MustCompile(`(?i)^gpt[\s-]?4$`), Replacement: "gpt-4", Priority: 10},
	}
	n := normalizer.New(cfg, rules, store, nil)

	result, err := n.Normalize(context.Background(), "GPT 4", normalizer.Options{})
	require.NoError(t, err)
	assert.True(t, result.WasNormalized)
	assert.Equal(t, normalizer.StageRule, result.Stage)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, "gpt-4", result.Normalized)
}

func TestNormalizeAliasLookupShortCircuitsRuleAndSimilarity(t *testing.T) {
	cfg := config.Default()
	store := newFakeStore()
	store.aliases["GPT4"] = types.Alias{Surface: "GPT4", Canonical: "gpt-4", Confidence: 0.9, Source: types.SourceSimilarity}
	n := normalizer.New(cfg, nil, store, nil)

	result, err := n.Normalize(context.Background(), "GPT4", normalizer.Options{})
	require.NoError(t, err)
	assert.Equal(t, normalizer.StageAlias, result.Stage)
	assert.Equal(t, "gpt-4", result.Normalized)
	assert.True(t, result.AliasRegistered)
}

func TestNormalizeSimilarityAutoAccepts(t *testing.T) {
	cfg := config.Default()
	store := newFakeStore()
	n := normalizer.New(cfg, nil, store, nil)

	opts := normalizer.Options{
		Candidates: []normalizer.Candidate{
			{CanonicalID: "gpt-4", Name: "GPT-4"},
		},
	}
	result, err := n.Normalize(context.Background(), "GPT-4", opts)
	require.NoError(t, err)
	assert.True(t, result.WasNormalized)
	assert.Equal(t, normalizer.StageSimilarity, result.Stage)
	assert.Equal(t, "gpt-4", result.Normalized)
}

func TestNormalizeAmbiguousSimilarityDefersToLLM(t *testing.T) {
	cfg := config.Default()
	store := newFakeStore()
	mock := llmclient.NewMockChatClient("CHOICE: gpt-4\nCONFIDENCE: 0.9")
	n := normalizer.New(cfg, nil, store, mock)

	opts := normalizer.Options{
		Candidates: []normalizer.Candidate{
			{CanonicalID: "gpt-4", Name: "gpt4 alpha beta"},
		},
	}
	result, err := n.Normalize(context.Background(), "gpt4 alpha", opts)
	require.NoError(t, err)
	assert.True(t, result.WasNormalized)
	assert.Equal(t, normalizer.StageLLM, result.Stage)
	assert.InDelta(t, 0.9*cfg.Thresholds.LLMSourceReliability, result.Confidence, 1e-9)
}

func TestNormalizeSkipLLMRejectsAmbiguousMatch(t *testing.T) {
	cfg := config.Default()
	store := newFakeStore()
	mock := llmclient.NewMockChatClient("CHOICE: gpt-4\nCONFIDENCE: 0.9")
	n := normalizer.New(cfg, nil, store, mock)

	opts := normalizer.Options{
		SkipLLM: true,
		Candidates: []normalizer.Candidate{
			{CanonicalID: "gpt-4", Name: "gpt4 alpha beta"},
		},
	}
	result, err := n.Normalize(context.Background(), "gpt4 alpha", opts)
	require.NoError(t, err)
	assert.False(t, result.WasNormalized)
	assert.Equal(t, 0, mock.CallCount())
}

func TestNormalizeRejectsBelowReviewThreshold(t *testing.T) {
	cfg := config.Default()
	store := newFakeStore()
	n := normalizer.New(cfg, nil, store, nil)

	opts := normalizer.Options{
		Candidates: []normalizer.Candidate{
			{CanonicalID: "unrelated", Name: "Completely Different Entity"},
		},
	}
	result, err := n.Normalize(context.Background(), "GPT-4", opts)
	require.NoError(t, err)
	assert.False(t, result.WasNormalized)
	assert.Equal(t, normalizer.StageNone, result.Stage)
}

func TestRegisterAliasConflictPolicyKeepsHigherConfidence(t *testing.T) {
	cfg := config.Default()
	store := newFakeStore()
	store.aliases["GPT4"] = types.Alias{Surface: "GPT4", Canonical: "old-id", Confidence: 0.95, Source: types.SourceSimilarity}
	n := normalizer.New(cfg, []normalizer.Rule{
		{Pattern: regexp.MustCompile(`^GPT4$`), Replacement: "new-id", Priority: 1},
	}, store, nil)

	// the alias lookup short-circuits ahead of the rule stage, so the
	// existing higher-confidence mapping is returned unchanged.
	result, err := n.Normalize(context.Background(), "GPT4", normalizer.Options{AutoRegister: true})
	require.NoError(t, err)
	assert.Equal(t, "old-id", result.Normalized)
	assert.Equal(t, "old-id", store.aliases["GPT4"].Canonical)
}

func TestRegisterAliasDirectlyRejectsLowerConfidenceOverwrite(t *testing.T) {
	cfg := config.Default()
	store := newFakeStore()
	store.aliases["GPT4"] = types.Alias{Surface: "GPT4", Canonical: "old-id", Confidence: 0.95, Source: types.SourceSimilarity}
	n := normalizer.New(cfg, nil, store, nil)

	registered, err := n.RegisterAlias(context.Background(), "GPT4", "new-id", 0.5, types.SourceManual)
	require.NoError(t, err)
	assert.False(t, registered)
	assert.Equal(t, "old-id", store.aliases["GPT4"].Canonical)
}

func TestRegisterAliasDirectlyOverwritesOnHigherConfidence(t *testing.T) {
	cfg := config.Default()
	store := newFakeStore()
	store.aliases["GPT4"] = types.Alias{Surface: "GPT4", Canonical: "old-id", Confidence: 0.5, Source: types.SourceSimilarity}
	n := normalizer.New(cfg, nil, store, nil)

	registered, err := n.RegisterAlias(context.Background(), "GPT4", "new-id", 1.0, types.SourceManual)
	require.NoError(t, err)
	assert.True(t, registered)
	assert.Equal(t, "new-id", store.aliases["GPT4"].Canonical)
}
