// Package extraction implements the co-occurrence, pattern, and LLM
// extraction passes and the orchestrator that merges, scores, and
// contradiction-checks their proposals.
package extraction

import (
	"regexp"
	"sort"
	"strings"

	"litkg/internal/types"
)

// levelFactor weights a co-occurrence count by the scope it was observed at.
var levelFactor = map[types.CooccurrenceLevel]float64{
	types.LevelSentence:  1.0,
	types.LevelParagraph: 0.8,
	types.LevelDocument:  0.6,
}

// defaultScopes is used when the caller configures no explicit scopes.
var defaultScopes = []types.CooccurrenceLevel{
	types.LevelSentence, types.LevelParagraph, types.LevelDocument,
}

// cooccurrenceStopwords excludes structural capitalized words that are not
// entity mentions (sentence-initial "The", section headers, and so on).
var cooccurrenceStopwords = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true,
	"A": true, "An": true, "It": true, "We": true, "In": true, "On": true,
	"For": true, "As": true, "Abstract": true, "Introduction": true,
	"Conclusion": true, "Figure": true, "Table": true, "Section": true,
}

// surfaceFormPattern matches capitalized phrases (one or more Title-Case
// words) and all-caps acronyms of two or more letters.
var surfaceFormPattern = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*)*|[A-Z]{2,})\b`)

var sentenceSplitPattern = regexp.MustCompile(`[.!?]+\s+`)
var paragraphSplitPattern = regexp.MustCompile(`\n\s*\n`)

// CooccurrenceAnalyzer segments documents and emits CooccurrencePair
// proposals, per spec section 4.1.
type CooccurrenceAnalyzer struct {
	scopes             []types.CooccurrenceLevel
	entityTypeDefaults map[string]types.RelationType
}

// NewCooccurrenceAnalyzer builds an analyzer for the given scopes (nil or
// empty falls back to all three scopes) and entity-type default-relation
// table.
func NewCooccurrenceAnalyzer(scopes []string, entityTypeDefaults map[string]types.RelationType) *CooccurrenceAnalyzer {
	levels := make([]types.CooccurrenceLevel, 0, len(scopes))
	for _, s := range scopes {
		levels = append(levels, types.CooccurrenceLevel(s))
	}
	if len(levels) == 0 {
		levels = defaultScopes
	}
	return &CooccurrenceAnalyzer{scopes: levels, entityTypeDefaults: entityTypeDefaults}
}

// recognizedEntity is a lightweight mention used when the caller supplies no
// pre-tagged entity list.
type recognizedEntity struct {
	id   string
	name string
}

// Analyze produces deduplicated CooccurrencePair records for one document.
// If entities is empty, a conservative surface-form recognizer substitutes
// for pre-tagged entities (the id and name coincide in that case).
func (a *CooccurrenceAnalyzer) Analyze(doc types.Document) []types.CooccurrencePair {
	entities := doc.Entities
	if len(entities) == 0 {
		entities = recognizeSurfaceForms(doc.Content)
	}
	if len(entities) < 2 {
		return nil
	}

	best := make(map[[2]string]*types.CooccurrencePair)

	for _, level := range a.scopes {
		segments := segment(doc.Content, level)
		for _, seg := range segments {
			present := entitiesInSegment(entities, seg)
			for i := 0; i < len(present); i++ {
				for j := i + 1; j < len(present); j++ {
					a1, a2 := present[i], present[j]
					if a1 == a2 {
						continue
					}
					k := pairKey(a1, a2)
					p, ok := best[k]
					if !ok {
						p = &types.CooccurrencePair{SourceID: k[0], TargetID: k[1], Level: level}
						best[k] = p
					} else if types.MoreSpecific(level, p.Level) {
						p.Level = level
					}
					p.Count++
					if doc.ID != "" {
						p.DocumentIDs = appendUnique(p.DocumentIDs, doc.ID)
					}
				}
			}
		}
	}

	out := make([]types.CooccurrencePair, 0, len(best))
	for _, p := range best {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// AnalyzeBatch aggregates counts for the same entity pair across documents,
// per the contract's "batch mode aggregates counts" clause.
func (a *CooccurrenceAnalyzer) AnalyzeBatch(docs []types.Document) []types.CooccurrencePair {
	merged := make(map[[2]string]*types.CooccurrencePair)
	for _, doc := range docs {
		for _, p := range a.Analyze(doc) {
			k := [2]string{p.SourceID, p.TargetID}
			existing, ok := merged[k]
			if !ok {
				cp := p
				merged[k] = &cp
				continue
			}
			existing.Count += p.Count
			if types.MoreSpecific(p.Level, existing.Level) {
				existing.Level = p.Level
			}
			for _, d := range p.DocumentIDs {
				existing.DocumentIDs = appendUnique(existing.DocumentIDs, d)
			}
		}
	}
	out := make([]types.CooccurrencePair, 0, len(merged))
	for _, p := range merged {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// Confidence computes the raw confidence for a co-occurrence pair per the
// contract's formula: raw = min(1, count/5) * levelFactor.
func Confidence(p types.CooccurrencePair) float64 {
	f, ok := levelFactor[p.Level]
	if !ok {
		f = levelFactor[types.LevelDocument]
	}
	c := float64(p.Count) / 5.0
	if c > 1 {
		c = 1
	}
	return c * f
}

// SeedRelationType returns the default relation type proposed for a
// co-occurring (sourceType, targetType) pair, falling back to CITES when no
// rule matches (the most permissive type, per the contract).
func (a *CooccurrenceAnalyzer) SeedRelationType(sourceType, targetType types.EntityType) types.RelationType {
	key := string(sourceType) + "->" + string(targetType)
	if t, ok := a.entityTypeDefaults[key]; ok {
		return t
	}
	return types.RelCites
}

func pairKey(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func segment(content string, level types.CooccurrenceLevel) []string {
	switch level {
	case types.LevelSentence:
		return sentenceSplitPattern.Split(content, -1)
	case types.LevelParagraph:
		return paragraphSplitPattern.Split(content, -1)
	default:
		return []string{content}
	}
}

// entitiesInSegment returns, for pre-tagged entities, the ids whose name
// appears in seg; for surface-form entities the id and name are identical.
func entitiesInSegment(entities []types.DocumentEntity, seg string) []string {
	present := make([]string, 0, 4)
	seen := make(map[string]bool)
	for _, e := range entities {
		id := e.ID
		if id == "" {
			id = e.Name
		}
		if seen[id] {
			continue
		}
		if strings.Contains(seg, e.Name) {
			present = append(present, id)
			seen[id] = true
		}
	}
	return present
}

func recognizeSurfaceForms(content string) []types.DocumentEntity {
	matches := surfaceFormPattern.FindAllString(content, -1)
	seen := make(map[string]bool)
	out := make([]types.DocumentEntity, 0, len(matches))
	for _, m := range matches {
		if cooccurrenceStopwords[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, types.DocumentEntity{Name: m})
	}
	return out
}
