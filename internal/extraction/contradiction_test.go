package extraction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litkg/internal/config"
	"litkg/internal/extraction"
	"litkg/internal/types"
)

func TestDetectFindsPairConflict(t *testing.T) {
	cfg := config.Default()
	d := extraction.NewContradictionDetector(cfg)

	relations := []types.Relation{
		{Source: "a", Target: "b", Type: types.RelDevelopedBy},
		{Source: "a", Target: "b", Type: types.RelCompetesWith},
	}

	groups := d.Detect(relations)
	require.Len(t, groups, 1)
	assert.Equal(t, extraction.KindPairConflict, groups[0].Kind)
}

func TestDetectFindsDirectionalConflict(t *testing.T) {
	cfg := config.Default()
	d := extraction.NewContradictionDetector(cfg)

	relations := []types.Relation{
		{Source: "a", Target: "b", Type: types.RelDevelopedBy},
		{Source: "b", Target: "a", Type: types.RelDevelopedBy},
	}

	// DEVELOPED_BY is both asymmetric and acyclic, so the pair is reported
	// once as a directional conflict and once as a length-2 cycle.
	groups := d.Detect(relations)
	require.Len(t, groups, 2)
	assert.Equal(t, extraction.KindDirectional, groups[0].Kind)
	assert.Equal(t, extraction.KindCyclic, groups[1].Kind)
}

func TestDetectFindsCycle(t *testing.T) {
	cfg := config.Default()
	d := extraction.NewContradictionDetector(cfg)

	relations := []types.Relation{
		{Source: "a", Target: "b", Type: types.RelBasedOn},
		{Source: "b", Target: "c", Type: types.RelBasedOn},
		{Source: "c", Target: "a", Type: types.RelBasedOn},
	}

	groups := d.Detect(relations)
	require.Len(t, groups, 1)
	assert.Equal(t, extraction.KindCyclic, groups[0].Kind)
	assert.Len(t, groups[0].Relations, 3)
}

func TestDetectNoFalsePositivesOnCleanGraph(t *testing.T) {
	cfg := config.Default()
	d := extraction.NewContradictionDetector(cfg)

	relations := []types.Relation{
		{Source: "a", Target: "b", Type: types.RelDevelopedBy},
		{Source: "b", Target: "c", Type: types.RelAffiliatedWith},
	}

	groups := d.Detect(relations)
	assert.Empty(t, groups)
}

func TestApplyDowngradesForcesPendingOnFlaggedRelationsOnly(t *testing.T) {
	cfg := config.Default()
	d := extraction.NewContradictionDetector(cfg)

	relations := []types.Relation{
		{Source: "a", Target: "b", Type: types.RelDevelopedBy, ReviewStatus: types.ReviewApproved},
		{Source: "a", Target: "b", Type: types.RelCompetesWith, ReviewStatus: types.ReviewApproved},
		{Source: "x", Target: "y", Type: types.RelCites, ReviewStatus: types.ReviewApproved},
	}

	groups := d.Detect(relations)
	out := extraction.ApplyDowngrades(relations, groups)

	assert.Equal(t, types.ReviewPending, out[0].ReviewStatus)
	assert.True(t, out[0].NeedsReview)
	assert.Equal(t, types.ReviewPending, out[1].ReviewStatus)
	assert.True(t, out[1].NeedsReview)
	assert.Equal(t, types.ReviewApproved, out[2].ReviewStatus)
	assert.False(t, out[2].NeedsReview)
}

func TestDetectIsIdempotent(t *testing.T) {
	cfg := config.Default()
	d := extraction.NewContradictionDetector(cfg)

	relations := []types.Relation{
		{Source: "a", Target: "b", Type: types.RelDevelopedBy},
		{Source: "a", Target: "b", Type: types.RelCompetesWith},
	}

	first := d.Detect(relations)
	downgraded := extraction.ApplyDowngrades(relations, first)
	second := d.Detect(downgraded)

	assert.Equal(t, len(first), len(second))
}
