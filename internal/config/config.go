// Package config provides configuration management for the knowledge-graph
// extraction and reasoning engine.
//
// Configuration can be loaded from multiple sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. Configuration file (JSON or YAML)
//  3. Default values (lowest priority)
//
// Reload is never a mutation of a shared instance: callers that need fresh
// configuration call Load (or LoadFromFile) again and swap in the new
// *Config wholesale.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"litkg/internal/types"
)

// Config is the complete, immutable-once-loaded configuration snapshot
// handed to every subsystem at construction.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Scoring    ScoringConfig    `json:"scoring" yaml:"scoring"`
	Thresholds ThresholdsConfig `json:"thresholds" yaml:"thresholds"`
	Relations  RelationsConfig  `json:"relations" yaml:"relations"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	PathFinder PathFinderConfig `json:"pathFinder" yaml:"pathFinder"`
	Reasoner   ReasonerConfig   `json:"reasoner" yaml:"reasoner"`
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// ServerConfig contains process-level configuration.
type ServerConfig struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Environment string `json:"environment" yaml:"environment"`
}

// ScoringConfig holds the Relation Scorer's weights and per-source reliability.
type ScoringConfig struct {
	// WeightCooccurrence, WeightLLM, WeightSource, WeightGraph must sum to
	// 1.0 within 1e-3.
	WeightCooccurrence float64 `json:"weightCooccurrence" yaml:"weightCooccurrence"`
	WeightLLM          float64 `json:"weightLLM" yaml:"weightLLM"`
	WeightSource       float64 `json:"weightSource" yaml:"weightSource"`
	WeightGraph        float64 `json:"weightGraph" yaml:"weightGraph"`

	// SourceReliability maps an evidence method to its reliability score,
	// used to fill the "source" component when not otherwise available.
	SourceReliability map[types.ExtractionMethod]float64 `json:"sourceReliability" yaml:"sourceReliability"`
}

// ThresholdsConfig holds the triage and acceptance thresholds used across
// the scorer, normalizer, and consistency checker.
type ThresholdsConfig struct {
	ApproveConfidence  float64 `json:"approveConfidence" yaml:"approveConfidence"`
	ReviewConfidence   float64 `json:"reviewConfidence" yaml:"reviewConfidence"`
	SimilarityAuto     float64 `json:"similarityAuto" yaml:"similarityAuto"`
	SimilarityReview   float64 `json:"similarityReview" yaml:"similarityReview"`
	ConsistencyPass    float64 `json:"consistencyPass" yaml:"consistencyPass"`
	LLMSourceReliability float64 `json:"llmSourceReliability" yaml:"llmSourceReliability"`
}

// RelationTypeDef describes one entry in the closed relation-type vocabulary.
type RelationTypeDef struct {
	AllowedSourceTypes []types.EntityType `json:"allowedSourceTypes" yaml:"allowedSourceTypes"`
	AllowedTargetTypes []types.EntityType `json:"allowedTargetTypes" yaml:"allowedTargetTypes"`
	Bidirectional      bool               `json:"bidirectional" yaml:"bidirectional"`
	Extractable        bool               `json:"extractable" yaml:"extractable"`
	DefaultConfidence  float64            `json:"defaultConfidence" yaml:"defaultConfidence"`
}

// ConflictingPair declares two relation types that cannot both hold for the
// same (source, target) pair.
type ConflictingPair struct {
	A types.RelationType `json:"a" yaml:"a"`
	B types.RelationType `json:"b" yaml:"b"`
}

// RelationsConfig declares the relation-type vocabulary and its rules.
type RelationsConfig struct {
	Types            map[types.RelationType]RelationTypeDef `json:"types" yaml:"types"`
	ConflictingPairs []ConflictingPair                      `json:"conflictingPairs" yaml:"conflictingPairs"`
	// EntityTypeDefaults seeds a default relation type for a co-occurring
	// (sourceType, targetType) pair absent any pattern/LLM evidence.
	EntityTypeDefaults map[string]types.RelationType `json:"entityTypeDefaults" yaml:"entityTypeDefaults"`
}

// ExtractionConfig tunes the Extraction Orchestrator and its constituent
// passes.
type ExtractionConfig struct {
	MaxConcurrency    int      `json:"maxConcurrency" yaml:"maxConcurrency"`
	CooccurrenceScopes []string `json:"cooccurrenceScopes" yaml:"cooccurrenceScopes"`
	PatternWindowChars int      `json:"patternWindowChars" yaml:"patternWindowChars"`
	LLMEnabled         bool     `json:"llmEnabled" yaml:"llmEnabled"`
	EmbeddingBatchSize int      `json:"embeddingBatchSize" yaml:"embeddingBatchSize"`
}

// PathFinderConfig tunes the bounded multi-hop path finder and its cache.
type PathFinderConfig struct {
	DefaultMaxHops  int `json:"defaultMaxHops" yaml:"defaultMaxHops"`
	HardMaxHops     int `json:"hardMaxHops" yaml:"hardMaxHops"`
	TotalPathsCap   int `json:"totalPathsCap" yaml:"totalPathsCap"`
	CacheSize       int `json:"cacheSize" yaml:"cacheSize"`
	CacheTTLSeconds int `json:"cacheTTLSeconds" yaml:"cacheTTLSeconds"`
}

// ReasonerConfig tunes the chain-of-thought reasoner's subgraph retrieval
// and stepping bounds.
type ReasonerConfig struct {
	MaxSteps           int     `json:"maxSteps" yaml:"maxSteps"`
	SubgraphHops       int     `json:"subgraphHops" yaml:"subgraphHops"`
	VectorSeedLimit    int     `json:"vectorSeedLimit" yaml:"vectorSeedLimit"`
	StepConfidenceFloor float64 `json:"stepConfidenceFloor" yaml:"stepConfidenceFloor"`
}

// EndpointResilienceConfig configures the rate limiter and circuit breaker
// pair guarding one outbound endpoint.
type EndpointResilienceConfig struct {
	Algorithm        string  `json:"algorithm" yaml:"algorithm"` // "token_bucket" | "sliding_window"
	MaxTokens        int     `json:"maxTokens" yaml:"maxTokens"`
	RefillPerSecond  float64 `json:"refillPerSecond" yaml:"refillPerSecond"`
	WindowMs         int     `json:"windowMs" yaml:"windowMs"`
	MaxRequests      int     `json:"maxRequests" yaml:"maxRequests"`
	FailureThreshold int     `json:"failureThreshold" yaml:"failureThreshold"`
	ResetTimeoutMs   int     `json:"resetTimeoutMs" yaml:"resetTimeoutMs"`
	TimeoutMs        int     `json:"timeoutMs" yaml:"timeoutMs"`
}

// ResilienceConfig holds one EndpointResilienceConfig per outbound endpoint.
type ResilienceConfig struct {
	LLM       EndpointResilienceConfig `json:"llm" yaml:"llm"`
	Embedding EndpointResilienceConfig `json:"embedding" yaml:"embedding"`
	Graph     EndpointResilienceConfig `json:"graph" yaml:"graph"`
	Vector    EndpointResilienceConfig `json:"vector" yaml:"vector"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level            string `json:"level" yaml:"level"`
	EnableTimestamps bool   `json:"enableTimestamps" yaml:"enableTimestamps"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "litkg",
			Version:     "1.0.0",
			Environment: "development",
		},
		Scoring: ScoringConfig{
			WeightCooccurrence: 0.3,
			WeightLLM:          0.3,
			WeightSource:       0.2,
			WeightGraph:        0.2,
			SourceReliability: map[types.ExtractionMethod]float64{
				types.MethodCooccurrence: 0.6,
				types.MethodPattern:      0.75,
				types.MethodLLM:          0.7,
				types.MethodHybrid:       0.8,
			},
		},
		Thresholds: ThresholdsConfig{
			ApproveConfidence:   0.7,
			ReviewConfidence:    0.5,
			SimilarityAuto:      0.85,
			SimilarityReview:    0.6,
			ConsistencyPass:     0.7,
			LLMSourceReliability: 0.7,
		},
		Relations: RelationsConfig{
			Types:            defaultRelationTypes(),
			ConflictingPairs: defaultConflictingPairs(),
			EntityTypeDefaults: map[string]types.RelationType{
				pairKey(types.EntityAIModel, types.EntityOrganization): types.RelDevelopedBy,
				pairKey(types.EntityAIModel, types.EntityTechnique):    types.RelUsesTechnique,
				pairKey(types.EntityAIModel, types.EntityDataset):      types.RelTrainedOn,
				pairKey(types.EntityAIModel, types.EntityBenchmark):    types.RelEvaluatedOn,
				pairKey(types.EntityPublication, types.EntityPublication): types.RelCites,
				pairKey(types.EntityPerson, types.EntityOrganization):  types.RelAffiliatedWith,
			},
		},
		Extraction: ExtractionConfig{
			MaxConcurrency:     10,
			CooccurrenceScopes: []string{"document", "paragraph", "sentence"},
			PatternWindowChars: 150,
			LLMEnabled:         true,
			EmbeddingBatchSize: 100,
		},
		PathFinder: PathFinderConfig{
			DefaultMaxHops:  6,
			HardMaxHops:     6,
			TotalPathsCap:   200,
			CacheSize:       500,
			CacheTTLSeconds: 300,
		},
		Reasoner: ReasonerConfig{
			MaxSteps:            6,
			SubgraphHops:        2,
			VectorSeedLimit:     5,
			StepConfidenceFloor: 0.35,
		},
		Resilience: ResilienceConfig{
			LLM: EndpointResilienceConfig{
				Algorithm: "sliding_window", WindowMs: 60_000, MaxRequests: 60,
				FailureThreshold: 5, ResetTimeoutMs: 30_000, TimeoutMs: 30_000,
			},
			Embedding: EndpointResilienceConfig{
				Algorithm: "token_bucket", MaxTokens: 20, RefillPerSecond: 5,
				FailureThreshold: 5, ResetTimeoutMs: 15_000, TimeoutMs: 5_000,
			},
			Graph: EndpointResilienceConfig{
				Algorithm: "token_bucket", MaxTokens: 50, RefillPerSecond: 20,
				FailureThreshold: 5, ResetTimeoutMs: 10_000, TimeoutMs: 10_000,
			},
			Vector: EndpointResilienceConfig{
				Algorithm: "token_bucket", MaxTokens: 50, RefillPerSecond: 20,
				FailureThreshold: 5, ResetTimeoutMs: 10_000, TimeoutMs: 5_000,
			},
		},
		Logging: LoggingConfig{
			Level:            "info",
			EnableTimestamps: true,
		},
	}
}

func pairKey(a, b types.EntityType) string {
	return string(a) + "->" + string(b)
}

func defaultRelationTypes() map[types.RelationType]RelationTypeDef {
	all := []types.EntityType{} // empty slice means "no restriction"
	return map[types.RelationType]RelationTypeDef{
		types.RelDevelopedBy:      {AllowedSourceTypes: []types.EntityType{types.EntityAIModel, types.EntityTechnique}, AllowedTargetTypes: []types.EntityType{types.EntityOrganization, types.EntityPerson}, Extractable: true, DefaultConfidence: 0.8},
		types.RelTrainedOn:        {AllowedSourceTypes: []types.EntityType{types.EntityAIModel}, AllowedTargetTypes: []types.EntityType{types.EntityDataset}, Extractable: true, DefaultConfidence: 0.75},
		types.RelUsesTechnique:    {AllowedSourceTypes: []types.EntityType{types.EntityAIModel, types.EntityMethod}, AllowedTargetTypes: []types.EntityType{types.EntityTechnique}, Extractable: true, DefaultConfidence: 0.7},
		types.RelEvaluatedOn:      {AllowedSourceTypes: []types.EntityType{types.EntityAIModel}, AllowedTargetTypes: []types.EntityType{types.EntityBenchmark}, Extractable: true, DefaultConfidence: 0.7},
		types.RelCites:            {AllowedSourceTypes: all, AllowedTargetTypes: all, Extractable: true, DefaultConfidence: 0.6},
		types.RelAffiliatedWith:   {AllowedSourceTypes: []types.EntityType{types.EntityPerson}, AllowedTargetTypes: []types.EntityType{types.EntityOrganization}, Extractable: true, DefaultConfidence: 0.7},
		types.RelContributedTo:    {AllowedSourceTypes: []types.EntityType{types.EntityPerson}, AllowedTargetTypes: []types.EntityType{types.EntityPublication, types.EntityAIModel}, Extractable: true, DefaultConfidence: 0.65},
		types.RelSpecializesIn:    {AllowedSourceTypes: []types.EntityType{types.EntityPerson, types.EntityOrganization}, AllowedTargetTypes: []types.EntityType{types.EntityTechnique, types.EntityConcept}, Extractable: true, DefaultConfidence: 0.6},
		types.RelInfluencedBy:     {AllowedSourceTypes: all, AllowedTargetTypes: all, Extractable: true, DefaultConfidence: 0.6},
		types.RelCollaboratedWith: {AllowedSourceTypes: []types.EntityType{types.EntityPerson, types.EntityOrganization}, AllowedTargetTypes: []types.EntityType{types.EntityPerson, types.EntityOrganization}, Bidirectional: true, Extractable: true, DefaultConfidence: 0.65},
		types.RelEvolvedInto:      {AllowedSourceTypes: []types.EntityType{types.EntityAIModel, types.EntityArchitecture}, AllowedTargetTypes: []types.EntityType{types.EntityAIModel, types.EntityArchitecture}, Extractable: true, DefaultConfidence: 0.7},
		types.RelCompetesWith:     {AllowedSourceTypes: []types.EntityType{types.EntityAIModel, types.EntityOrganization}, AllowedTargetTypes: []types.EntityType{types.EntityAIModel, types.EntityOrganization}, Bidirectional: true, Extractable: true, DefaultConfidence: 0.6},
		types.RelBasedOn:          {AllowedSourceTypes: []types.EntityType{types.EntityAIModel, types.EntityArchitecture, types.EntityMethod}, AllowedTargetTypes: []types.EntityType{types.EntityAIModel, types.EntityArchitecture, types.EntityMethod}, Extractable: true, DefaultConfidence: 0.75},
	}
}

func defaultConflictingPairs() []ConflictingPair {
	return []ConflictingPair{
		{A: types.RelDevelopedBy, B: types.RelCompetesWith},
		{A: types.RelCollaboratedWith, B: types.RelCompetesWith},
	}
}

// Load loads configuration from environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON or YAML file (decided by
// extension), then applies environment overrides and validates.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse json config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromEnv overrides fields from environment variables following the
// pattern LITKG_<SECTION>_<KEY>.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("LITKG_SERVER_NAME"); v != "" {
		c.Server.Name = v
	}
	if v := os.Getenv("LITKG_SERVER_ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}
	if v := os.Getenv("LITKG_SCORING_WEIGHT_COOCCURRENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Scoring.WeightCooccurrence = f
		}
	}
	if v := os.Getenv("LITKG_SCORING_WEIGHT_LLM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Scoring.WeightLLM = f
		}
	}
	if v := os.Getenv("LITKG_SCORING_WEIGHT_SOURCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Scoring.WeightSource = f
		}
	}
	if v := os.Getenv("LITKG_SCORING_WEIGHT_GRAPH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Scoring.WeightGraph = f
		}
	}
	if v := os.Getenv("LITKG_THRESHOLDS_APPROVE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Thresholds.ApproveConfidence = f
		}
	}
	if v := os.Getenv("LITKG_THRESHOLDS_REVIEW"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Thresholds.ReviewConfidence = f
		}
	}
	if v := os.Getenv("LITKG_EXTRACTION_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Extraction.MaxConcurrency = n
		}
	}
	if v := os.Getenv("LITKG_EXTRACTION_LLM_ENABLED"); v != "" {
		c.Extraction.LLMEnabled = parseBool(v)
	}
	if v := os.Getenv("LITKG_PATHFINDER_DEFAULT_MAX_HOPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PathFinder.DefaultMaxHops = n
		}
	}
	if v := os.Getenv("LITKG_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// Validate validates the configuration strictly, returning the first
// invariant violation found.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name cannot be empty")
	}

	sum := c.Scoring.WeightCooccurrence + c.Scoring.WeightLLM + c.Scoring.WeightSource + c.Scoring.WeightGraph
	if math.Abs(sum-1.0) > 1e-3 {
		return fmt.Errorf("scoring weights must sum to 1.0 +/- 1e-3, got %f", sum)
	}

	if c.Thresholds.ReviewConfidence >= c.Thresholds.ApproveConfidence {
		return fmt.Errorf("thresholds.reviewConfidence must be < thresholds.approveConfidence")
	}
	if c.Thresholds.SimilarityReview >= c.Thresholds.SimilarityAuto {
		return fmt.Errorf("thresholds.similarityReview must be < thresholds.similarityAuto")
	}
	for _, v := range []float64{
		c.Thresholds.ApproveConfidence, c.Thresholds.ReviewConfidence,
		c.Thresholds.SimilarityAuto, c.Thresholds.SimilarityReview,
		c.Thresholds.ConsistencyPass,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("thresholds must be within [0,1], got %f", v)
		}
	}

	if len(c.Relations.Types) == 0 {
		return fmt.Errorf("relations.types must not be empty")
	}
	for rt, def := range c.Relations.Types {
		if !types.IsValidRelationType(rt) {
			return fmt.Errorf("relations.types references unknown relation type %q", rt)
		}
		for _, et := range def.AllowedSourceTypes {
			if !types.IsValidEntityType(et) {
				return fmt.Errorf("relations.types[%s].allowedSourceTypes references unknown entity type %q", rt, et)
			}
		}
		for _, et := range def.AllowedTargetTypes {
			if !types.IsValidEntityType(et) {
				return fmt.Errorf("relations.types[%s].allowedTargetTypes references unknown entity type %q", rt, et)
			}
		}
	}
	for _, p := range c.Relations.ConflictingPairs {
		if _, ok := c.Relations.Types[p.A]; !ok {
			return fmt.Errorf("conflictingPairs references undefined relation type %q", p.A)
		}
		if _, ok := c.Relations.Types[p.B]; !ok {
			return fmt.Errorf("conflictingPairs references undefined relation type %q", p.B)
		}
	}

	if c.Extraction.MaxConcurrency < 1 {
		return fmt.Errorf("extraction.maxConcurrency must be >= 1")
	}
	if c.Extraction.EmbeddingBatchSize < 1 {
		return fmt.Errorf("extraction.embeddingBatchSize must be >= 1")
	}

	if c.PathFinder.DefaultMaxHops < 0 || c.PathFinder.HardMaxHops < 0 {
		return fmt.Errorf("pathFinder hop bounds cannot be negative")
	}
	if c.PathFinder.DefaultMaxHops > c.PathFinder.HardMaxHops {
		return fmt.Errorf("pathFinder.defaultMaxHops cannot exceed pathFinder.hardMaxHops")
	}

	if c.Reasoner.MaxSteps < 1 {
		return fmt.Errorf("reasoner.maxSteps must be >= 1")
	}
	if c.Reasoner.SubgraphHops < 0 {
		return fmt.Errorf("reasoner.subgraphHops cannot be negative")
	}
	if c.Reasoner.StepConfidenceFloor < 0 || c.Reasoner.StepConfidenceFloor > 1 {
		return fmt.Errorf("reasoner.stepConfidenceFloor must be within [0,1]")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on" || s == "enabled"
}

// ToJSON serializes the configuration to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveToFile saves the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
