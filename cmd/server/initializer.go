package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"litkg/internal/config"
	"litkg/internal/consistency"
	"litkg/internal/embeddings"
	"litkg/internal/extraction"
	"litkg/internal/graphstore"
	"litkg/internal/llmclient"
	"litkg/internal/nlquery"
	"litkg/internal/normalizer"
	"litkg/internal/pathcache"
	"litkg/internal/pathfinder"
	"litkg/internal/reasoner"
	"litkg/internal/resilience"
	"litkg/internal/vectorstore"
)

// ServerComponents holds every initialized component of the litkg pipeline.
// It mirrors the teacher's ServerComponents: a flat struct filled in by
// InitializeServer and torn down by Cleanup, so main can stay thin and the
// wiring stays unit-testable.
type ServerComponents struct {
	Config *config.Config

	GraphClient *graphstore.Client
	GraphStore  *graphstore.Store
	VectorStore *vectorstore.Store

	Embedder embeddings.Embedder
	LLM      llmclient.ChatClient

	Normalizer   *normalizer.Normalizer
	Orchestrator *extraction.Orchestrator
	PathFinder   *pathfinder.Finder
	PathCache    *pathcache.Cache
	NLQuery      *nlquery.Service
	Reasoner     *reasoner.Reasoner
	Consistency  *consistency.Checker
}

// InitializeServer builds every component of the pipeline from cfg. Graph
// connectivity is required: there is no in-memory graph store, so a
// reachable Neo4j instance is a hard dependency (same posture the teacher
// takes towards its SQLite storage backend).
func InitializeServer(cfg *config.Config) (*ServerComponents, error) {
	c := &ServerComponents{Config: cfg}

	neo4jCfg := graphstore.DefaultNeo4jConfig()
	graphGuard := resilience.NewGuard("graph", cfg.Resilience.Graph)
	graphClient, err := graphstore.NewClient(neo4jCfg, graphGuard)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	c.GraphClient = graphClient
	c.GraphStore = graphstore.NewStore(graphClient, neo4jCfg.Database)
	log.Println("Connected to graph store")

	vectorCfg := vectorstore.Config{PersistPath: os.Getenv("LITKG_VECTOR_STORE_PATH")}
	vectorStore, err := vectorstore.New(vectorCfg)
	if err != nil {
		_ = graphClient.Close(context.Background())
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	c.VectorStore = vectorStore
	if vectorCfg.PersistPath != "" {
		log.Printf("Vector store persisting to %s", vectorCfg.PersistPath)
	} else {
		log.Println("Vector store running in-memory only")
	}

	c.Embedder = initializeEmbedder(cfg)
	c.LLM = initializeLLM(cfg)

	c.Normalizer = normalizer.New(cfg, nil, c.GraphStore, c.LLM)
	log.Println("Initialized normalizer")

	c.Orchestrator = initializeOrchestrator(cfg, c.LLM)
	log.Println("Initialized extraction orchestrator")

	c.PathFinder = pathfinder.NewFinder(cfg, c.GraphStore)
	c.PathCache = pathcache.New(cfg.PathFinder.CacheSize, time.Duration(cfg.PathFinder.CacheTTLSeconds)*time.Second)
	log.Println("Initialized path finder and path cache")

	c.NLQuery = nlquery.NewService(c.LLM, c.GraphStore, 0)

	reasonerCollection := "entity-embeddings"
	c.Reasoner = reasoner.New(cfg, c.LLM, c.GraphStore, c.Embedder, c.VectorStore, reasonerCollection)

	c.Consistency = consistency.New(cfg, c.GraphStore, &cachingFinder{finder: c.PathFinder, cache: c.PathCache}, c.LLM)
	log.Println("Initialized NL-query service, reasoner, and consistency checker")

	return c, nil
}

// cachingFinder decorates a *pathfinder.Finder with the path cache, so
// repeated consistency checks over the same (start, end, hops, filter)
// tuple skip re-walking the graph. It implements consistency.PathFinder
// structurally.
type cachingFinder struct {
	finder *pathfinder.Finder
	cache  *pathcache.Cache
}

func (f *cachingFinder) FindPaths(ctx context.Context, startID, endID string, opts pathfinder.Options) (pathfinder.PathResult, error) {
	key := pathcache.BuildKey(startID, endID, opts.MaxHops, opts.TypeFilters)
	if cached, ok := f.cache.Get(key); ok {
		return cached, nil
	}

	result, err := f.finder.FindPaths(ctx, startID, endID, opts)
	if err != nil {
		return pathfinder.PathResult{}, err
	}
	f.cache.Put(key, result)
	return result, nil
}

// initializeEmbedder builds the embedding client stack: an HTTP embedder
// guarded against the configured endpoint, wrapped in a content cache when
// caching is enabled. Returns nil when no endpoint is configured, in which
// case the reasoner has no embedding-backed seeding and the extraction
// driver skips vector indexing; the orchestrator does not use embeddings.
func initializeEmbedder(cfg *config.Config) embeddings.Embedder {
	embCfg := embeddings.ConfigFromEnv()
	if embCfg.Endpoint == "" {
		log.Println("EMBEDDINGS_ENDPOINT not set, embedding-dependent features disabled")
		return nil
	}

	guard := resilience.NewGuard("embedding", cfg.Resilience.Embedding)
	httpEmbedder := embeddings.NewHTTPEmbedder(embCfg, guard)
	if !embCfg.CacheEnabled {
		log.Printf("Initialized HTTP embedder (model: %s, caching disabled)", embCfg.Model)
		return httpEmbedder
	}

	cache := embeddings.NewContentCache()
	log.Printf("Initialized HTTP embedder with content cache (model: %s)", embCfg.Model)
	return embeddings.NewCachingEmbedder(httpEmbedder, cache)
}

// initializeLLM builds the chat-completion client. Returns nil when no
// endpoint is configured: the LLM pass in extraction, the LLM confirmation
// stage in the normalizer, NL-query intent parsing, the reasoner, and
// consistency claim extraction all fall back to their non-LLM paths.
func initializeLLM(cfg *config.Config) llmclient.ChatClient {
	endpoint := os.Getenv("LITKG_LLM_ENDPOINT")
	if endpoint == "" {
		log.Println("LITKG_LLM_ENDPOINT not set, LLM-dependent passes disabled")
		return nil
	}

	llmCfg := llmclient.Config{
		Endpoint: endpoint,
		APIKey:   os.Getenv("LITKG_LLM_API_KEY"),
		Model:    os.Getenv("LITKG_LLM_MODEL"),
	}
	if v := os.Getenv("LITKG_LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			llmCfg.MaxTokens = n
		}
	}

	guard := resilience.NewGuard("llm", cfg.Resilience.LLM)
	timeout := time.Duration(cfg.Resilience.LLM.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	log.Printf("Initialized LLM chat client (endpoint: %s)", endpoint)
	return llmclient.NewHTTPChatClient(llmCfg, guard, httpClient)
}

// initializeOrchestrator wires the three extraction passes plus scorer and
// contradiction detector into an Orchestrator. The LLM pass is only
// attached when both an LLM client exists and LLMEnabled is set, so a
// deployment without an LLM endpoint degrades to co-occurrence + pattern
// evidence only, per spec section 7's transient-failure degrade policy.
func initializeOrchestrator(cfg *config.Config, llm llmclient.ChatClient) *extraction.Orchestrator {
	cooc := extraction.NewCooccurrenceAnalyzer(cfg.Extraction.CooccurrenceScopes, cfg.Relations.EntityTypeDefaults)
	pattern := extraction.NewPatternMatcher(extraction.DefaultPatternTemplates(), cfg.Extraction.PatternWindowChars)
	scorer := extraction.NewRelationScorer(cfg)
	contradiction := extraction.NewContradictionDetector(cfg)

	var inferrer *extraction.LLMRelationInferrer
	if cfg.Extraction.LLMEnabled && llm != nil {
		inferrer = extraction.NewLLMRelationInferrer(llm)
		log.Println("LLM relation inference pass enabled")
	} else {
		log.Println("LLM relation inference pass disabled (no client or disabled by config)")
	}

	return extraction.NewOrchestrator(cfg, cooc, pattern, inferrer, scorer, contradiction)
}

// Cleanup releases every resource InitializeServer opened. Safe to call
// more than once and safe to call on a partially-initialized components.
func (c *ServerComponents) Cleanup() error {
	if c.GraphClient != nil {
		if err := c.GraphClient.Close(context.Background()); err != nil {
			return fmt.Errorf("failed to close graph client: %w", err)
		}
	}
	return nil
}
