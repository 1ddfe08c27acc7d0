// Package main provides the entry point for the litkg extraction pipeline.
//
// litkg is a batch driver, not a long-running server: it loads
// configuration, wires the pipeline components, and runs one of a handful
// of operations (extract, query, reason, check) against a Neo4j graph store
// and an embedded vector index.
//
// Environment variables:
//   - DEBUG: set to "true" to enable debug logging with source locations
//   - LITKG_*: configuration overrides, see internal/config
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"litkg/internal/config"
	"litkg/internal/entityid"
	"litkg/internal/extraction"
	"litkg/internal/normalizer"
	"litkg/internal/reasoner"
	"litkg/internal/types"
)

func main() {
	if os.Getenv("DEBUG") == "true" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("Starting litkg in debug mode...")
	}

	mode := flag.String("mode", "extract", "operation to run: extract | query | reason | check")
	configPath := flag.String("config", "", "path to a JSON or YAML config file (defaults to environment-only)")
	input := flag.String("input", "", "path to a JSON array of documents (extract mode)")
	question := flag.String("question", "", "natural-language question (query/reason modes) or free text (check mode)")
	maxSteps := flag.Int("max-steps", 0, "override reason mode's step budget (0 uses the configured default)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	log.Printf("Loaded configuration for %s (%s)", cfg.Server.Name, cfg.Server.Environment)

	components, err := InitializeServer(cfg)
	if err != nil {
		log.Fatalf("failed to initialize pipeline: %v", err)
	}
	defer func() {
		if err := components.Cleanup(); err != nil {
			log.Printf("warning: cleanup failed: %v", err)
		}
	}()

	ctx := context.Background()

	switch *mode {
	case "extract":
		err = runExtract(ctx, components, *input)
	case "query":
		err = runQuery(ctx, components, *question)
	case "reason":
		err = runReason(ctx, components, *question, *maxSteps)
	case "check":
		err = runCheck(ctx, components, *question)
	default:
		log.Fatalf("unknown mode %q (want extract, query, reason, or check)", *mode)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", *mode, err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}

// runExtract reads a batch of documents, resolves each document's tagged
// entities to graph entity ids (creating new entities where the normalizer
// cascade finds no existing match), runs the extraction orchestrator, and
// persists every resulting relation.
func runExtract(ctx context.Context, c *ServerComponents, inputPath string) error {
	if inputPath == "" {
		return fmt.Errorf("-input is required in extract mode")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading input file: %w", err)
	}

	var docs []types.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parsing input file: %w", err)
	}
	log.Printf("Loaded %d documents from %s", len(docs), inputPath)

	entitiesByDoc := make(map[string]extraction.DocumentEntities, len(docs))
	for _, doc := range docs {
		de, err := buildDocumentEntities(ctx, c, doc)
		if err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}
		entitiesByDoc[doc.ID] = de
	}

	results := c.Orchestrator.ExtractBatch(ctx, docs, entitiesByDoc)

	var persisted int
	for _, r := range results {
		if r.Err != nil {
			log.Printf("document %s: extraction error: %v", r.DocumentID, r.Err)
			continue
		}
		for _, rel := range r.Relations {
			if err := c.GraphStore.CreateRelation(ctx, rel); err != nil {
				return fmt.Errorf("persisting relation %s-%s-%s: %w", rel.Source, rel.Type, rel.Target, err)
			}
			persisted++
		}
	}

	if c.Embedder != nil {
		if err := embedDocumentEntities(ctx, c, entitiesByDoc); err != nil {
			log.Printf("warning: embedding entities failed: %v", err)
		}
	}

	stats := c.Orchestrator.Stats()
	log.Printf("Extraction complete: %d documents processed, %d failed, %d relations persisted",
		stats.DocumentsProcessed, stats.DocumentsFailed, persisted)
	return nil
}

// resolveEntity maps one document-tagged entity mention to a graph entity
// id. A surface the normalizer resolves against the alias table or an
// existing entity (similarity or LLM stage) reuses that entity's id; any
// other outcome derives a fresh content-addressed id from the entity's type
// and normalized name and registers it.
func resolveEntity(ctx context.Context, c *ServerComponents, de types.DocumentEntity) (string, error) {
	res, err := c.Normalizer.Normalize(ctx, de.Name, normalizer.Options{EntityType: de.Type, AutoRegister: true})
	if err != nil {
		return "", err
	}

	switch res.Stage {
	case normalizer.StageAlias, normalizer.StageSimilarity, normalizer.StageLLM:
		return res.Normalized, nil
	default:
		name := res.Normalized
		if name == "" {
			name = de.Name
		}
		id := entityid.New(de.Type, name)
		if err := c.GraphStore.CreateEntity(ctx, types.Entity{ID: id, Name: name, Type: de.Type}); err != nil {
			return "", err
		}
		return id, nil
	}
}

func buildDocumentEntities(ctx context.Context, c *ServerComponents, doc types.Document) (extraction.DocumentEntities, error) {
	var out extraction.DocumentEntities
	for _, de := range doc.Entities {
		id, err := resolveEntity(ctx, c, de)
		if err != nil {
			return extraction.DocumentEntities{}, fmt.Errorf("resolving entity %q: %w", de.Name, err)
		}
		out.Refs = append(out.Refs, extraction.EntityRef{ID: id, Name: de.Name, Type: de.Type})
		for _, pos := range de.Positions {
			out.Mentions = append(out.Mentions, extraction.EntityMention{ID: id, Start: pos, End: pos + len(de.Name)})
		}
	}
	return out, nil
}

// embeddingCollection is the vector store collection the reasoner seeds its
// subgraph retrieval from; extraction populates the same collection so
// newly discovered entities are reachable by reason mode immediately.
const embeddingCollection = "entity-embeddings"

// embedDocumentEntities embeds and upserts every entity ref extraction just
// touched, deduplicated across documents in this batch.
func embedDocumentEntities(ctx context.Context, c *ServerComponents, entitiesByDoc map[string]extraction.DocumentEntities) error {
	seen := make(map[string]bool)
	var ids, names []string
	for _, de := range entitiesByDoc {
		for _, ref := range de.Refs {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			ids = append(ids, ref.ID)
			names = append(names, ref.Name)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	vectors, err := c.Embedder.EmbedMany(ctx, names)
	if err != nil {
		return fmt.Errorf("embedding %d entities: %w", len(ids), err)
	}

	if err := c.VectorStore.EnsureCollection(ctx, embeddingCollection); err != nil {
		return err
	}
	for i, id := range ids {
		payload := map[string]string{"entityId": id, "name": names[i]}
		if err := c.VectorStore.Upsert(ctx, embeddingCollection, id, vectors[i], names[i], payload); err != nil {
			return fmt.Errorf("upserting embedding for %s: %w", id, err)
		}
	}
	log.Printf("Embedded and indexed %d entities", len(ids))
	return nil
}

func runQuery(ctx context.Context, c *ServerComponents, question string) error {
	if question == "" {
		return fmt.Errorf("-question is required in query mode")
	}

	result, err := c.NLQuery.Query(ctx, question)
	if err != nil {
		return err
	}

	log.Printf("Graph query string: %s", result.GraphQueryString)
	log.Printf("Confidence: %.2f (intent confidence %.2f)", result.Confidence, result.Intent.Confidence)
	for _, e := range result.Results {
		fmt.Printf("%s\t%s\t%s\n", e.ID, e.Name, e.Type)
	}
	return nil
}

func runReason(ctx context.Context, c *ServerComponents, question string, maxSteps int) error {
	if question == "" {
		return fmt.Errorf("-question is required in reason mode")
	}

	opts := reasoner.Options{MaxSteps: maxSteps}
	result, err := c.Reasoner.Reason(ctx, question, opts)
	if err != nil {
		return err
	}

	for i, step := range result.Steps {
		log.Printf("step %d (confidence %.2f): %s", i+1, step.Confidence, step.Text)
	}
	fmt.Printf("Conclusion: %s\nConfidence: %.2f\n", result.Conclusion, result.Confidence)
	return nil
}

// runCheck extracts claims from free text and validates each against the
// stored graph, printing a one-line verdict per claim.
func runCheck(ctx context.Context, c *ServerComponents, text string) error {
	if text == "" {
		return fmt.Errorf("-question is required in check mode (the text to extract and verify claims from)")
	}

	claims, err := c.Consistency.ExtractClaims(ctx, text)
	if err != nil {
		return err
	}
	if len(claims) == 0 {
		log.Println("No claims extracted from input text")
		return nil
	}

	results, err := c.Consistency.CheckAll(ctx, claims)
	if err != nil {
		return err
	}

	for _, r := range results {
		verdict := "INCONSISTENT"
		if r.IsConsistent {
			verdict = "CONSISTENT"
		}
		fmt.Printf("%s (score %.2f): %s %s %s\n", verdict, r.Score, r.Claim.SourceEntityID, r.Claim.RelationType, r.Claim.TargetEntityID)
	}
	return nil
}

