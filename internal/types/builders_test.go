package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationBuilder(t *testing.T) {
	r := NewRelation("gpt4", "openai", RelDevelopedBy).
		WithMethod(MethodPattern).
		WithComponents(ScoreComponents{Cooccurrence: 0.5, LLM: 0.5, Source: 0.75, Graph: 0.5}).
		AddEvidence("doc1", "GPT-4 was developed by OpenAI.", MethodPattern, 0.9).
		Build()

	require.NotNil(t, r)
	assert.Equal(t, "gpt4", r.Source)
	assert.Equal(t, "openai", r.Target)
	assert.Equal(t, RelDevelopedBy, r.Type)
	assert.Equal(t, MethodPattern, r.Method)
	assert.Len(t, r.Evidence, 1)
	assert.Equal(t, ReviewPending, r.ReviewStatus)
}

func TestRelationBuilderReviewOverride(t *testing.T) {
	r := NewRelation("a", "b", RelCompetesWith).ReviewStatus(ReviewApproved).NeedsReview(true).Build()
	assert.Equal(t, ReviewApproved, r.ReviewStatus)
	assert.True(t, r.NeedsReview)
}

func TestEntityBuilder(t *testing.T) {
	e := NewEntity("gpt4", "GPT-4", EntityAIModel).
		Description("a large language model").
		Attr("paramCount", "unknown").
		Build()

	require.NotNil(t, e)
	assert.Equal(t, "GPT-4", e.Name)
	assert.Equal(t, EntityAIModel, e.Type)
	assert.Equal(t, "unknown", e.Attributes["paramCount"])
}

func TestNewAlias(t *testing.T) {
	a := NewAlias("GPT 4", "gpt4", 0.92, SourceSimilarity)
	assert.Equal(t, "GPT 4", a.Surface)
	assert.Equal(t, "gpt4", a.Canonical)
	assert.False(t, a.CreatedAt.IsZero())
}
