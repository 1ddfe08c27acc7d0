package extraction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litkg/internal/extraction"
	"litkg/internal/types"
)

func docWithEntities(content string, entities ...string) types.Document {
	de := make([]types.DocumentEntity, len(entities))
	for i, e := range entities {
		de[i] = types.DocumentEntity{ID: e, Name: e}
	}
	return types.Document{ID: "doc-1", Content: content, Entities: de}
}

func TestAnalyzeEmitsPairForEntitiesInSameSentence(t *testing.T) {
	a := extraction.NewCooccurrenceAnalyzer([]string{"sentence"}, nil)
	doc := docWithEntities("GPT4 was trained by OpenAI on a large corpus.", "GPT4", "OpenAI")

	pairs := a.Analyze(doc)
	require.Len(t, pairs, 1)
	assert.Equal(t, types.LevelSentence, pairs[0].Level)
	assert.Equal(t, 1, pairs[0].Count)
}

func TestAnalyzeKeepsMostSpecificScope(t *testing.T) {
	a := extraction.NewCooccurrenceAnalyzer([]string{"sentence", "document"}, nil)
	content := "GPT4 and OpenAI appear together here. Unrelated filler sentence follows. GPT4 and OpenAI again."
	doc := docWithEntities(content, "GPT4", "OpenAI")

	pairs := a.Analyze(doc)
	require.Len(t, pairs, 1)
	assert.Equal(t, types.LevelSentence, pairs[0].Level, "sentence-level co-occurrence should win over the document-level one")
	assert.Equal(t, 3, pairs[0].Count, "2 sentence-scope matches plus 1 document-scope match")
}

func TestAnalyzeFewerThanTwoEntitiesYieldsNoPairs(t *testing.T) {
	a := extraction.NewCooccurrenceAnalyzer(nil, nil)
	doc := docWithEntities("Just one entity here.", "GPT4")
	assert.Empty(t, a.Analyze(doc))
}

func TestAnalyzeFallsBackToSurfaceFormRecognition(t *testing.T) {
	a := extraction.NewCooccurrenceAnalyzer(nil, nil)
	doc := types.Document{ID: "doc-2", Content: "BERT was introduced by Google Research in a landmark paper."}

	pairs := a.Analyze(doc)
	assert.NotEmpty(t, pairs, "surface-form recognizer should find capitalized phrases when no entities are pre-tagged")
}

func TestAnalyzeBatchAggregatesCountsAcrossDocuments(t *testing.T) {
	a := extraction.NewCooccurrenceAnalyzer([]string{"sentence"}, nil)
	doc1 := docWithEntities("GPT4 works with OpenAI.", "GPT4", "OpenAI")
	doc2 := docWithEntities("GPT4 works with OpenAI again.", "GPT4", "OpenAI")

	pairs := a.AnalyzeBatch([]types.Document{doc1, doc2})
	require.Len(t, pairs, 1)
	assert.Equal(t, 2, pairs[0].Count)
}

func TestConfidenceCapsAtOneAndScalesByLevel(t *testing.T) {
	sentencePair := types.CooccurrencePair{Count: 10, Level: types.LevelSentence}
	assert.Equal(t, 1.0, extraction.Confidence(sentencePair))

	docPair := types.CooccurrencePair{Count: 1, Level: types.LevelDocument}
	assert.InDelta(t, 0.2*0.6, extraction.Confidence(docPair), 1e-9)
}

func TestSeedRelationTypeUsesTableOrFallsBackToCites(t *testing.T) {
	defaults := map[string]types.RelationType{
		"AIModel->Organization": types.RelDevelopedBy,
	}
	a := extraction.NewCooccurrenceAnalyzer(nil, defaults)

	assert.Equal(t, types.RelDevelopedBy, a.SeedRelationType(types.EntityAIModel, types.EntityOrganization))
	assert.Equal(t, types.RelCites, a.SeedRelationType(types.EntityPerson, types.EntityDataset))
}
