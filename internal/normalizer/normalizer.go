// Package normalizer resolves a surface form mentioned in text to a
// canonical entity identifier through a layered rule/similarity/LLM
// cascade, per spec section 4.7.
package normalizer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"litkg/internal/apperrors"
	"litkg/internal/config"
	"litkg/internal/llmclient"
	"litkg/internal/types"
)

// Stage identifies which cascade stage produced a normalization result.
type Stage string

const (
	StageRule       Stage = "rule"
	StageAlias      Stage = "alias"
	StageSimilarity Stage = "similarity"
	StageLLM        Stage = "llm"
	StageNone       Stage = "none"
)

// Rule is one ordered (pattern, replacement) transformation. Replacement
// follows regexp.ReplaceAllString semantics ($1, $2, ... reference capture
// groups), letting a single rule normalize a family of surface forms (e.g.
// "GPT-4", "gpt4", "GPT 4" -> "GPT-4") rather than one literal string.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
	Priority    int
}

// Candidate is one similarity-stage comparison target: a known surface form
// (from the alias table or an entity's canonical name) and the canonical id
// it resolves to.
type Candidate struct {
	CanonicalID string
	Name        string
}

// Options configures one normalize call.
type Options struct {
	EntityType   types.EntityType
	Context      string
	SkipLLM      bool
	AutoRegister bool
	// Candidates overrides the similarity stage's comparison set. When nil,
	// Normalize falls back to the alias table plus store.SearchEntities.
	Candidates []Candidate
}

// Result is the outcome of one normalize call, matching the contract's
// {original, normalized, wasNormalized, confidence, stage, aliasRegistered}
// shape.
type Result struct {
	Original        string
	Normalized      string
	WasNormalized   bool
	Confidence      float64
	Stage           Stage
	AliasRegistered bool
}

// Store is the persistence capability the Normalizer needs: alias
// lookup/listing/upsert plus a name search for similarity candidates.
// *graphstore.Store satisfies this directly.
type Store interface {
	GetAliasBySurface(ctx context.Context, surface string) (*types.Alias, error)
	ListAliases(ctx context.Context) ([]types.Alias, error)
	UpsertAlias(ctx context.Context, alias types.Alias) error
	SearchEntities(ctx context.Context, term string, limit int) ([]*types.Entity, error)
}

// Normalizer implements the rule -> similarity -> LLM cascade.
type Normalizer struct {
	cfg   *config.Config
	rules []Rule
	store Store
	llm   llmclient.ChatClient // nil disables the LLM confirmation stage
}

// New builds a Normalizer. rules are sorted by descending priority at
// construction so Normalize never re-sorts on the hot path. llm may be nil.
func New(cfg *config.Config, rules []Rule, store Store, llm llmclient.ChatClient) *Normalizer {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
	return &Normalizer{cfg: cfg, rules: sorted, store: store, llm: llm}
}

// Normalize resolves surface to a canonical id via the alias table first
// (a previously registered surface always returns its existing mapping),
// then the rule cascade, then similarity, then optionally LLM confirmation.
func (n *Normalizer) Normalize(ctx context.Context, surface string, opts Options) (Result, error) {
	if alias, ok, err := n.lookupAlias(ctx, surface); err != nil {
		return Result{}, err
	} else if ok {
		return Result{
			Original:        surface,
			Normalized:      alias.Canonical,
			WasNormalized:   true,
			Confidence:      alias.Confidence,
			Stage:           StageAlias,
			AliasRegistered: true,
		}, nil
	}

	if canonical, ok := n.applyRules(surface); ok {
		return n.finish(ctx, surface, canonical, 1.0, StageRule, opts)
	}

	candidates, err := n.candidates(ctx, surface, opts)
	if err != nil {
		return Result{}, err
	}

	best, score := bestCandidate(surface, candidates)
	switch {
	case best == nil:
		return Result{Original: surface, Normalized: surface, WasNormalized: false, Stage: StageNone}, nil
	case score >= n.cfg.Thresholds.SimilarityAuto:
		return n.finish(ctx, surface, best.CanonicalID, score, StageSimilarity, opts)
	case score >= n.cfg.Thresholds.SimilarityReview:
		if opts.SkipLLM || n.llm == nil {
			return Result{Original: surface, Normalized: surface, WasNormalized: false, Stage: StageNone}, nil
		}
		return n.confirmWithLLM(ctx, surface, candidates, opts)
	default:
		return Result{Original: surface, Normalized: surface, WasNormalized: false, Stage: StageNone}, nil
	}
}

func (n *Normalizer) lookupAlias(ctx context.Context, surface string) (*types.Alias, bool, error) {
	alias, err := n.store.GetAliasBySurface(ctx, surface)
	if err == nil {
		return alias, true, nil
	}
	if se, ok := apperrors.As(err); ok && se.Code == apperrors.ErrAliasNotFound {
		return nil, false, nil
	}
	return nil, false, err
}

// applyRules returns the first matching rule's replacement, in descending
// priority order.
func (n *Normalizer) applyRules(surface string) (string, bool) {
	for _, r := range n.rules {
		if r.Pattern.MatchString(surface) {
			return r.Pattern.ReplaceAllString(surface, r.Replacement), true
		}
	}
	return "", false
}

// candidates returns the comparison set for the similarity stage: caller-
// supplied candidates take priority; otherwise the alias table plus a
// fulltext search over existing entities.
func (n *Normalizer) candidates(ctx context.Context, surface string, opts Options) ([]Candidate, error) {
	if opts.Candidates != nil {
		return opts.Candidates, nil
	}

	var out []Candidate
	aliases, err := n.store.ListAliases(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range aliases {
		out = append(out, Candidate{CanonicalID: a.Canonical, Name: a.Surface})
	}

	entities, err := n.store.SearchEntities(ctx, surface, 10)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		out = append(out, Candidate{CanonicalID: e.ID, Name: e.Name})
	}
	return out, nil
}

// bestCandidate ranks candidates by token-Jaccard similarity to surface and
// returns the top one, or (nil, 0) if candidates is empty.
func bestCandidate(surface string, candidates []Candidate) (*Candidate, float64) {
	if len(candidates) == 0 {
		return nil, 0
	}
	tokens := tokenize(surface)

	var best *Candidate
	bestScore := -1.0
	for i := range candidates {
		score := jaccardSimilarity(tokens, tokenize(candidates[i].Name))
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	return best, bestScore
}

// tokenize lowercases and splits on non-alphanumeric runs.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

// jaccardSimilarity computes |A intersect B| / |A union B| over token sets,
// treating two empty token sets as identical (similarity 1.0).
func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}

	intersection := 0
	for _, t := range b {
		if setA[t] {
			intersection++
		}
	}

	union := len(setA)
	for _, t := range b {
		if !setA[t] {
			union++
		}
	}
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// confirmWithLLM asks the chat endpoint to pick among the top candidates
// (or "none"), scaling its reported confidence by the configured LLM
// source-reliability factor.
func (n *Normalizer) confirmWithLLM(ctx context.Context, surface string, candidates []Candidate, opts Options) (Result, error) {
	top := topCandidates(surface, candidates, 5)
	prompt := buildConfirmationPrompt(surface, top)

	response, err := n.llm.Chat(ctx, llmclient.ChatRequest{
		System: "You resolve a surface form mentioned in scientific literature to one of several candidate canonical entities.",
		Prompt: prompt,
	})
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrLLMCallFailed, err).WithStage("normalize-llm-confirm")
	}

	choice, rawConfidence, ok := parseConfirmationResponse(response, top)
	if !ok {
		return Result{Original: surface, Normalized: surface, WasNormalized: false, Stage: StageNone}, nil
	}

	confidence := rawConfidence * n.cfg.Thresholds.LLMSourceReliability
	return n.finish(ctx, surface, choice.CanonicalID, confidence, StageLLM, opts)
}

func topCandidates(surface string, candidates []Candidate, k int) []Candidate {
	tokens := tokenize(surface)
	type scored struct {
		c     Candidate
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{c: c, score: jaccardSimilarity(tokens, tokenize(c.Name))}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]Candidate, len(ranked))
	for i, r := range ranked {
		out[i] = r.c
	}
	return out
}

func buildConfirmationPrompt(surface string, top []Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Surface form: %q\n\nCandidates:\n", surface)
	for i, c := range top {
		fmt.Fprintf(&b, "%d. id=%s name=%q\n", i+1, c.CanonicalID, c.Name)
	}
	b.WriteString("\nRespond with exactly two lines:\n")
	b.WriteString("CHOICE: <candidate id, or NONE>\n")
	b.WriteString("CONFIDENCE: <a number between 0.0 and 1.0>\n")
	return b.String()
}

func parseConfirmationResponse(response string, top []Candidate) (*Candidate, float64, bool) {
	var choiceID string
	var confidence float64
	var haveChoice, haveConfidence bool

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "CHOICE:"):
			choiceID = strings.TrimSpace(line[strings.Index(line, ":")+1:])
			haveChoice = true
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			var parsed float64
			if _, err := fmt.Sscanf(value, "%f", &parsed); err != nil {
				return nil, 0, false
			}
			confidence = parsed
			haveConfidence = true
		}
	}

	if !haveChoice || !haveConfidence || strings.EqualFold(choiceID, "none") {
		return nil, 0, false
	}
	for i := range top {
		if top[i].CanonicalID == choiceID {
			return &top[i], confidence, true
		}
	}
	return nil, 0, false
}

// finish builds an accepted Result and, if requested, registers the alias.
func (n *Normalizer) finish(ctx context.Context, surface, canonical string, confidence float64, stage Stage, opts Options) (Result, error) {
	result := Result{
		Original:      surface,
		Normalized:    canonical,
		WasNormalized: true,
		Confidence:    confidence,
		Stage:         stage,
	}
	if !opts.AutoRegister {
		return result, nil
	}

	registered, err := n.registerAlias(ctx, surface, canonical, confidence, stageToSource(stage))
	if err != nil {
		return Result{}, err
	}
	result.AliasRegistered = registered
	return result, nil
}

// RegisterAlias upserts an alias row outside the normalize cascade (manual
// curation, or rehoming an existing surface to a corrected canonical),
// applying the same conflict policy as the cascade's own registration.
func (n *Normalizer) RegisterAlias(ctx context.Context, surface, canonical string, confidence float64, source types.AliasSource) (bool, error) {
	return n.registerAlias(ctx, surface, canonical, confidence, source)
}

// registerAlias upserts an alias row, applying the conflict policy: a
// surface already mapped to a different canonical keeps whichever entry has
// higher confidence; on a tie the earlier (existing) entry wins.
func (n *Normalizer) registerAlias(ctx context.Context, surface, canonical string, confidence float64, source types.AliasSource) (bool, error) {
	existing, found, err := n.lookupAlias(ctx, surface)
	if err != nil {
		return false, err
	}
	if found {
		if existing.Canonical == canonical {
			return true, nil
		}
		if confidence <= existing.Confidence {
			return false, nil
		}
	}

	if err := n.store.UpsertAlias(ctx, types.Alias{
		Surface:    surface,
		Canonical:  canonical,
		Confidence: confidence,
		Source:     source,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return false, err
	}
	return true, nil
}

func stageToSource(stage Stage) types.AliasSource {
	switch stage {
	case StageRule:
		return types.SourceRule
	case StageSimilarity:
		return types.SourceSimilarity
	case StageLLM:
		return types.SourceLLM
	default:
		return types.SourceManual
	}
}
