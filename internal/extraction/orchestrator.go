package extraction

import (
	"context"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"litkg/internal/config"
	"litkg/internal/types"
)

// DocumentEntities bundles the entity references and byte-offset mentions an
// orchestrator run needs for one document: EntityRef feeds the LLM inferrer's
// prompt, EntityMention feeds the pattern matcher's window scan.
type DocumentEntities struct {
	Refs     []EntityRef
	Mentions []EntityMention
}

// Stats accumulates pipeline counters across one or more ExtractDocument /
// ExtractBatch calls.
type Stats struct {
	DocumentsProcessed int
	DocumentsFailed    int
	RelationsProposed  int
	RelationsApproved  int
	RelationsPending   int
	RelationsRejected  int
	ContradictionGroups int
}

// Orchestrator runs the co-occurrence, pattern, and LLM passes over a
// document concurrently, merges their proposals by (source, target, type),
// scores the merged relations, and runs contradiction detection over the
// result, per spec section 4.6. It mirrors the teacher's mode-orchestrator
// pattern of fanning independent passes out with an errgroup and joining on
// a single merge step, generalized from "thinking modes" to "extraction
// passes".
type Orchestrator struct {
	cfg           *config.Config
	cooccurrence  *CooccurrenceAnalyzer
	pattern       *PatternMatcher
	llm           *LLMRelationInferrer // nil disables the LLM pass
	scorer        *RelationScorer
	contradiction *ContradictionDetector
	stats         Stats
}

// NewOrchestrator builds an orchestrator. llm may be nil, in which case the
// LLM pass is skipped and relations are scored from co-occurrence and
// pattern evidence only.
func NewOrchestrator(cfg *config.Config, cooccurrence *CooccurrenceAnalyzer, pattern *PatternMatcher, llm *LLMRelationInferrer, scorer *RelationScorer, contradiction *ContradictionDetector) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg,
		cooccurrence:  cooccurrence,
		pattern:       pattern,
		llm:           llm,
		scorer:        scorer,
		contradiction: contradiction,
	}
}

// Stats returns a snapshot of the accumulated pipeline counters.
func (o *Orchestrator) Stats() Stats {
	return o.stats
}

// proposal is one candidate relation contributed by a single extraction
// pass, prior to merge. sourceID/targetID preserve the pass's own notion of
// direction: pattern and LLM proposals are truly directed (the trigger
// phrase or the LLM call names source and target explicitly); co-occurrence
// proposals carry no real direction; see directed.
type proposal struct {
	sourceID     string
	targetID     string
	directed     bool
	relationType types.RelationType
	method       types.ExtractionMethod
	rawConf      float64
	evidence     types.Evidence
}

// ExtractDocument runs all three passes concurrently over doc and entities,
// merges their proposals, scores them, and flags contradictions. The
// relations returned are unordered except for a final deterministic sort by
// (source, target, type) for test stability.
func (o *Orchestrator) ExtractDocument(ctx context.Context, doc types.Document, entities DocumentEntities) ([]types.Relation, error) {
	var coocProposals map[[2]string][]proposal
	var patternProposals map[[2]string][]proposal
	var llmProposals map[[2]string][]proposal

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		coocProposals = o.runCooccurrence(doc, entities.Refs)
		return nil
	})

	g.Go(func() error {
		patternProposals = o.runPattern(doc, entities.Mentions)
		return nil
	})

	if o.llm != nil && o.cfg.Extraction.LLMEnabled {
		g.Go(func() error {
			var err error
			llmProposals, err = o.runLLM(gctx, entities.Refs, doc.Content)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		o.stats.DocumentsFailed++
		return nil, err
	}

	merged := mergeProposals(coocProposals, patternProposals, llmProposals)
	relations := o.scoreMerged(merged)

	groups := o.contradiction.Detect(relations)
	relations = ApplyDowngrades(relations, groups)

	o.recordStats(relations, groups)
	o.stats.DocumentsProcessed++

	sort.Slice(relations, func(i, j int) bool {
		if relations[i].Source != relations[j].Source {
			return relations[i].Source < relations[j].Source
		}
		if relations[i].Target != relations[j].Target {
			return relations[i].Target < relations[j].Target
		}
		return relations[i].Type < relations[j].Type
	})
	return relations, nil
}

// BatchResult pairs one document's outcome with its source document id, so
// a failure on one document can be reported without losing the others.
type BatchResult struct {
	DocumentID string
	Relations  []types.Relation
	Err        error
}

// ExtractBatch partitions docs into maxConcurrency-sized chunks, processing
// chunks sequentially and documents within a chunk concurrently. A failure
// on one document is captured in its BatchResult.Err and does not abort the
// rest of the batch.
func (o *Orchestrator) ExtractBatch(ctx context.Context, docs []types.Document, entitiesByDoc map[string]DocumentEntities) []BatchResult {
	maxConcurrency := o.cfg.Extraction.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	results := make([]BatchResult, len(docs))

	for start := 0; start < len(docs); start += maxConcurrency {
		end := start + maxConcurrency
		if end > len(docs) {
			end = len(docs)
		}
		chunk := docs[start:end]

		var wg errgroup.Group
		for i, doc := range chunk {
			idx := start + i
			doc := doc
			wg.Go(func() error {
				rels, err := o.ExtractDocument(ctx, doc, entitiesByDoc[doc.ID])
				if err != nil {
					log.Printf("extraction: document %s failed: %v", doc.ID, err)
					results[idx] = BatchResult{DocumentID: doc.ID, Err: err}
					return nil
				}
				results[idx] = BatchResult{DocumentID: doc.ID, Relations: rels}
				return nil
			})
		}
		_ = wg.Wait() // per-document errors are captured in results, never aborts the batch
	}

	return results
}

func (o *Orchestrator) runCooccurrence(doc types.Document, refs []EntityRef) map[[2]string][]proposal {
	typeByID := make(map[string]types.EntityType, len(refs))
	for _, r := range refs {
		typeByID[r.ID] = r.Type
	}

	out := make(map[[2]string][]proposal)
	pairs := o.cooccurrence.Analyze(doc)
	for _, p := range pairs {
		relType := o.cooccurrence.SeedRelationType(typeByID[p.SourceID], typeByID[p.TargetID])
		conf := Confidence(p)
		k := pairKey(p.SourceID, p.TargetID)
		out[k] = append(out[k], proposal{
			sourceID:     p.SourceID,
			targetID:     p.TargetID,
			directed:     false,
			relationType: relType,
			method:       types.MethodCooccurrence,
			rawConf:      conf,
			evidence: types.Evidence{
				DocumentID:    doc.ID,
				Method:        types.MethodCooccurrence,
				RawConfidence: conf,
			},
		})
	}
	return out
}

func (o *Orchestrator) runPattern(doc types.Document, mentions []EntityMention) map[[2]string][]proposal {
	out := make(map[[2]string][]proposal)
	matches := DedupeMatches(o.pattern.FindMatches(doc.Content, mentions))
	for _, m := range matches {
		k := pairKey(m.SourceID, m.TargetID)
		out[k] = append(out[k], proposal{
			sourceID:     m.SourceID,
			targetID:     m.TargetID,
			directed:     true,
			relationType: m.RelationType,
			method:       types.MethodPattern,
			rawConf:      m.RawConfidence,
			evidence: types.Evidence{
				DocumentID:     doc.ID,
				ContextSnippet: m.MatchedSpan,
				Method:         types.MethodPattern,
				RawConfidence:  m.RawConfidence,
			},
		})
	}
	return out
}

func (o *Orchestrator) runLLM(ctx context.Context, refs []EntityRef, window string) (map[[2]string][]proposal, error) {
	out := make(map[[2]string][]proposal)
	for i := 0; i < len(refs); i++ {
		for j := 0; j < len(refs); j++ {
			if i == j {
				continue
			}
			prop, err := o.llm.Infer(ctx, refs[i], refs[j], window)
			if err != nil {
				return nil, err
			}
			if prop == nil {
				continue
			}
			k := pairKey(prop.SourceID, prop.TargetID)
			out[k] = append(out[k], proposal{
				sourceID:     prop.SourceID,
				targetID:     prop.TargetID,
				directed:     true,
				relationType: prop.RelationType,
				method:       types.MethodLLM,
				rawConf:      prop.Confidence,
				evidence: types.Evidence{
					ContextSnippet: prop.Explanation,
					Method:         types.MethodLLM,
					RawConfidence:  prop.Confidence,
				},
			})
		}
	}
	return out, nil
}

// mergeProposals joins all three passes' proposals by (unordered pair,
// type): evidence from each contributing pass is concatenated, the method
// becomes "hybrid" when more than one distinct method contributed, and each
// pass's raw confidence feeds its own score component as the max across
// that pass's proposals for the key. Co-occurrence proposals carry no real direction,
// so the merged relation's Source/Target are taken from the first directed
// (pattern or LLM) proposal seen for the pair; a pair with only
// co-occurrence evidence keeps its arbitrary sorted order.
func mergeProposals(maps ...map[[2]string][]proposal) []types.Relation {
	type mergeKey struct {
		pair [2]string
		rel  types.RelationType
	}
	merged := make(map[mergeKey]*types.Relation)
	directed := make(map[mergeKey]bool)
	contributed := make(map[mergeKey]map[types.ExtractionMethod]bool)

	for _, m := range maps {
		for pair, props := range m {
			for _, p := range props {
				mk := mergeKey{pair: pair, rel: p.relationType}
				rel, ok := merged[mk]
				if !ok {
					rel = &types.Relation{
						Source: p.sourceID,
						Target: p.targetID,
						Type:   p.relationType,
						Method: p.method,
					}
					merged[mk] = rel
					directed[mk] = p.directed
					contributed[mk] = make(map[types.ExtractionMethod]bool)
				} else {
					if p.directed && !directed[mk] {
						rel.Source, rel.Target = p.sourceID, p.targetID
						directed[mk] = true
					}
					if rel.Method != p.method {
						rel.Method = types.MethodHybrid
					}
				}
				rel.Evidence = append(rel.Evidence, p.evidence)
				rel.ScoreComponents = mergeComponent(rel.ScoreComponents, p.method, p.rawConf)
				contributed[mk][p.method] = true
			}
		}
	}

	out := make([]types.Relation, 0, len(merged))
	for mk, rel := range merged {
		rel.ScoreComponents = fabricateMissingComponents(rel.ScoreComponents, contributed[mk])
		out = append(out, *rel)
	}
	return out
}

// mergeComponent folds one pass's raw confidence into the accumulating
// ScoreComponents, taking the max when a pass contributes more than once
// (e.g. two pattern templates matching the same pair).
func mergeComponent(sc types.ScoreComponents, method types.ExtractionMethod, rawConf float64) types.ScoreComponents {
	switch method {
	case types.MethodCooccurrence:
		sc.Cooccurrence = maxFloat(sc.Cooccurrence, rawConf)
	case types.MethodLLM:
		sc.LLM = maxFloat(sc.LLM, rawConf)
	case types.MethodPattern:
		// pattern evidence folds into the graph component: a trigger-phrase
		// match is the strongest available signal absent a persisted edge.
		sc.Graph = maxFloat(sc.Graph, rawConf)
	}
	return sc
}

// fabricateMissingComponents defaults every score component no pass
// contributed to the neutral midpoint 0.5, per spec section 4.6 step 3: a
// relation pair the LLM pass never saw (or that never ran at all) should
// neither help nor hurt confidence, not silently contribute a zero.
func fabricateMissingComponents(sc types.ScoreComponents, contributed map[types.ExtractionMethod]bool) types.ScoreComponents {
	if !contributed[types.MethodCooccurrence] {
		sc.Cooccurrence = 0.5
	}
	if !contributed[types.MethodLLM] {
		sc.LLM = 0.5
	}
	if !contributed[types.MethodPattern] {
		sc.Graph = 0.5
	}
	return sc
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// scoreMerged scores every merged relation, filling the source-reliability
// component from the relation's (possibly hybrid) method.
func (o *Orchestrator) scoreMerged(relations []types.Relation) []types.Relation {
	out := make([]types.Relation, len(relations))
	for i, rel := range relations {
		rel.ScoreComponents.Source = o.scorer.SourceReliability(rel.Method)
		out[i] = o.scorer.ScoreRelation(rel)
	}
	return out
}

func (o *Orchestrator) recordStats(relations []types.Relation, groups []ContradictionGroup) {
	o.stats.RelationsProposed += len(relations)
	o.stats.ContradictionGroups += len(groups)
	for _, rel := range relations {
		switch rel.ReviewStatus {
		case types.ReviewApproved:
			o.stats.RelationsApproved++
		case types.ReviewPending:
			o.stats.RelationsPending++
		case types.ReviewRejected:
			o.stats.RelationsRejected++
		}
	}
}
