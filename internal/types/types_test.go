package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidEntityType(t *testing.T) {
	tests := []struct {
		name string
		typ  EntityType
		want bool
	}{
		{"valid AIModel", EntityAIModel, true},
		{"valid Organization", EntityOrganization, true},
		{"invalid empty", EntityType(""), false},
		{"invalid unknown", EntityType("Robot"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidEntityType(tt.typ))
		})
	}
}

func TestIsValidRelationType(t *testing.T) {
	assert.True(t, IsValidRelationType(RelDevelopedBy))
	assert.True(t, IsValidRelationType(RelBasedOn))
	assert.False(t, IsValidRelationType(RelationType("DESTROYS")))
}

func TestMoreSpecific(t *testing.T) {
	assert.True(t, MoreSpecific(LevelSentence, LevelParagraph))
	assert.True(t, MoreSpecific(LevelParagraph, LevelDocument))
	assert.False(t, MoreSpecific(LevelDocument, LevelSentence))
	assert.False(t, MoreSpecific(LevelSentence, LevelSentence))
}

func TestCooccurrencePairKey(t *testing.T) {
	p1 := CooccurrencePair{SourceID: "b", TargetID: "a"}
	p2 := CooccurrencePair{SourceID: "a", TargetID: "b"}
	k1a, k1b := p1.Key()
	k2a, k2b := p2.Key()
	assert.Equal(t, k1a, k2a)
	assert.Equal(t, k1b, k2b)
	assert.Equal(t, "a", k1a)
	assert.Equal(t, "b", k1b)
}

func TestRelationKey(t *testing.T) {
	r := Relation{Source: "gpt4", Target: "openai", Type: RelDevelopedBy}
	require.Equal(t, RelationKey{Source: "gpt4", Target: "openai", Type: RelDevelopedBy}, r.Key())
}

func TestAsymmetricAndAcyclicTables(t *testing.T) {
	assert.True(t, AsymmetricRelationTypes[RelDevelopedBy])
	assert.False(t, AsymmetricRelationTypes[RelCites])
	assert.True(t, AcyclicRelationTypes[RelBasedOn])
	assert.False(t, AcyclicRelationTypes[RelCites])
}

func TestInternRoundTrip(t *testing.T) {
	a := InternEntityType(EntityAIModel)
	b := InternEntityType(EntityType("AIModel"))
	assert.Equal(t, a, b)
}
