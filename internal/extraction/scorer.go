package extraction

import (
	"litkg/internal/config"
	"litkg/internal/types"
)

// RelationScorer fuses the four raw component scores into a single
// confidence and assigns a triage status, per spec section 4.4.
type RelationScorer struct {
	cfg *config.Config
}

// NewRelationScorer builds a scorer bound to the weights and thresholds in
// cfg. cfg.Validate must already have been called (the configuration layer
// enforces weight-sum and threshold-ordering invariants at load time).
func NewRelationScorer(cfg *config.Config) *RelationScorer {
	return &RelationScorer{cfg: cfg}
}

// Score computes confidence = sum(w_i * s_i) over the four components and
// assigns reviewStatus from the configured approve/review thresholds.
func (s *RelationScorer) Score(components types.ScoreComponents) (confidence float64, status types.ReviewStatus) {
	w := s.cfg.Scoring
	confidence = w.WeightCooccurrence*components.Cooccurrence +
		w.WeightLLM*components.LLM +
		w.WeightSource*components.Source +
		w.WeightGraph*components.Graph

	switch {
	case confidence >= s.cfg.Thresholds.ApproveConfidence:
		status = types.ReviewApproved
	case confidence >= s.cfg.Thresholds.ReviewConfidence:
		status = types.ReviewPending
	default:
		status = types.ReviewRejected
	}
	return confidence, status
}

// ScoreRelation scores rel in place, setting Confidence and ReviewStatus
// from its ScoreComponents, and returns the updated relation.
func (s *RelationScorer) ScoreRelation(rel types.Relation) types.Relation {
	rel.Confidence, rel.ReviewStatus = s.Score(rel.ScoreComponents)
	return rel
}

// SourceReliability returns the configured reliability score for the given
// evidence method, falling back to the LLM-source default (0.7, per spec
// section 9's Open Question) when the method has no configured entry.
func (s *RelationScorer) SourceReliability(method types.ExtractionMethod) float64 {
	if v, ok := s.cfg.Scoring.SourceReliability[method]; ok {
		return v
	}
	return s.cfg.Thresholds.LLMSourceReliability
}
