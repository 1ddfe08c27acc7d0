// Package reasoner implements the chain-of-thought reasoner: bounded
// subgraph retrieval followed by iterative LLM-driven reasoning steps, each
// citing graph evidence, culminating in a synthesized conclusion, per spec
// section 4.13.
package reasoner

import (
	"context"
	"time"

	"litkg/internal/apperrors"
	"litkg/internal/config"
	"litkg/internal/embeddings"
	"litkg/internal/graphstore"
	"litkg/internal/llmclient"
	"litkg/internal/types"
	"litkg/internal/vectorstore"
)

// Step is one LLM-emitted reasoning step.
type Step struct {
	Text        string
	EvidenceIDs []string
	Confidence  float64
}

// Options bounds one reasoning call. A zero MaxSteps picks up the
// configured default.
type Options struct {
	EntityIDs []string
	MaxSteps  int
}

// Result is the full outcome of a reason call.
type Result struct {
	Steps       []Step
	Conclusion  string
	Confidence  float64
	TotalTimeMs int64
}

// Reasoner runs the retrieve -> step -> synthesize pipeline.
type Reasoner struct {
	cfg        *config.Config
	llm        llmclient.ChatClient
	reader     graphstore.GraphReader
	embedder   embeddings.Embedder
	vectors    *vectorstore.Store
	collection string
}

// New builds a Reasoner. embedder/vectors may be nil: a call that doesn't
// supply EntityIDs and has no vector store to seed from returns an empty
// subgraph rather than failing.
func New(cfg *config.Config, llm llmclient.ChatClient, reader graphstore.GraphReader, embedder embeddings.Embedder, vectors *vectorstore.Store, collection string) *Reasoner {
	return &Reasoner{cfg: cfg, llm: llm, reader: reader, embedder: embedder, vectors: vectors, collection: collection}
}

// subgraph is the bounded neighborhood a reasoning call works over.
type subgraph struct {
	nodes map[string]*types.Entity
	edges []*types.Relation
}

func newSubgraph() *subgraph {
	return &subgraph{nodes: map[string]*types.Entity{}}
}

func (sg *subgraph) entityIDs() []string {
	ids := make([]string, 0, len(sg.nodes))
	for id := range sg.nodes {
		ids = append(ids, id)
	}
	return ids
}

// Reason answers question by retrieving a bounded subgraph, stepping the
// LLM over it, and synthesizing a conclusion from the accumulated steps.
func (r *Reasoner) Reason(ctx context.Context, question string, opts Options) (Result, error) {
	start := time.Now()

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = r.cfg.Reasoner.MaxSteps
	}

	seeds := opts.EntityIDs
	if len(seeds) == 0 {
		var err error
		seeds, err = r.seedsFromQuestion(ctx, question)
		if err != nil {
			return Result{}, apperrors.Wrap(apperrors.ErrVectorStoreFailed, err).WithStage("reasoner.seed")
		}
	}

	sg, err := r.retrieveSubgraph(ctx, seeds)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("reasoner.retrieve-subgraph")
	}

	var steps []Step
	floor := r.cfg.Reasoner.StepConfidenceFloor

	for i := 0; i < maxSteps; i++ {
		prompt := buildStepPrompt(question, sg, steps)
		response, err := r.llm.Chat(ctx, llmclient.ChatRequest{
			System: "You reason step by step over a small knowledge-graph neighborhood, citing node or edge ids as evidence for each step.",
			Prompt: prompt,
		})
		if err != nil {
			return Result{}, apperrors.Wrap(apperrors.ErrLLMCallFailed, err).WithStage("reasoner.step")
		}

		step, terminal, ok := parseStepResponse(response)
		if !ok {
			break
		}
		if step.Confidence < floor {
			break
		}
		steps = append(steps, step)
		if terminal {
			break
		}
	}

	conclusion, confidence, err := r.synthesize(ctx, question, steps)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrLLMCallFailed, err).WithStage("reasoner.synthesize")
	}

	return Result{
		Steps:       steps,
		Conclusion:  conclusion,
		Confidence:  confidence,
		TotalTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// seedsFromQuestion embeds question and returns the internal entity ids of
// the nearest vectors in the configured collection. A missing embedder or
// vector store yields no seeds rather than an error: the subgraph is then
// simply empty and reasoning proceeds unevidenced.
func (r *Reasoner) seedsFromQuestion(ctx context.Context, question string) ([]string, error) {
	if r.embedder == nil || r.vectors == nil {
		return nil, nil
	}
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	limit := r.cfg.Reasoner.VectorSeedLimit
	if limit <= 0 {
		limit = 5
	}
	hits, err := r.vectors.SearchSimilar(ctx, r.collection, vec, limit, nil, 0)
	if err != nil {
		return nil, err
	}
	seeds := make([]string, 0, len(hits))
	for _, h := range hits {
		seeds = append(seeds, h.InternalID)
	}
	return seeds, nil
}

// retrieveSubgraph expands each seed out to the configured hop bound and
// collects the edges connecting the resulting node set.
func (r *Reasoner) retrieveSubgraph(ctx context.Context, seeds []string) (*subgraph, error) {
	sg := newSubgraph()
	hops := r.cfg.Reasoner.SubgraphHops

	for _, id := range seeds {
		entity, err := r.reader.GetEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		if entity != nil {
			sg.nodes[entity.ID] = entity
		}

		neighbors, err := r.reader.QueryEntitiesWithinHops(ctx, id, hops, nil)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			sg.nodes[n.ID] = n
		}
	}

	for id := range sg.nodes {
		rels, err := r.reader.GetRelations(ctx, id, "outgoing")
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			if _, ok := sg.nodes[rel.Target]; ok {
				sg.edges = append(sg.edges, rel)
			}
		}
	}

	return sg, nil
}

// synthesize asks the chat endpoint for a single conclusion paragraph over
// the accumulated steps. Overall confidence is the minimum step
// confidence, per spec section 4.13; a reasoning run that produced no steps
// (for instance when every step failed to parse) has zero confidence.
func (r *Reasoner) synthesize(ctx context.Context, question string, steps []Step) (string, float64, error) {
	if len(steps) == 0 {
		return "", 0, nil
	}

	minConfidence := steps[0].Confidence
	for _, s := range steps[1:] {
		if s.Confidence < minConfidence {
			minConfidence = s.Confidence
		}
	}

	response, err := r.llm.Chat(ctx, llmclient.ChatRequest{
		System: "You write a single concise conclusion paragraph synthesizing a chain of reasoning steps.",
		Prompt: buildSynthesisPrompt(question, steps),
	})
	if err != nil {
		return "", 0, err
	}

	return response, minConfidence, nil
}
