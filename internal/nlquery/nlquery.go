// Package nlquery turns a natural-language question into a structured
// graph query, generates the equivalent property-graph query string for
// audit, executes it against the graph, and derives a confidence score, per
// spec section 4.12.
package nlquery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"litkg/internal/apperrors"
	"litkg/internal/graphstore"
	"litkg/internal/llmclient"
	"litkg/internal/types"
)

// QueryType is the closed set of intents the parser can classify a question
// into.
type QueryType string

const (
	QuerySearch   QueryType = "search"
	QueryDescribe QueryType = "describe"
	QueryCompare  QueryType = "compare"
	QueryRank     QueryType = "rank"
)

// StructuredQuery is the parsed, typed representation of a natural-language
// question.
type StructuredQuery struct {
	QueryType     QueryType
	EntityTypes   []types.EntityType
	RelationTypes []types.RelationType
	Terms         []string
	Ordering      string
}

// Intent pairs a StructuredQuery with the parser's own confidence in it.
type Intent struct {
	Query      StructuredQuery
	Confidence float64
}

// Result is the full outcome of one query call.
type Result struct {
	StructuredQuery  StructuredQuery
	GraphQueryString string
	Intent           Intent
	Entities         []*types.Entity
	Results          []*types.Entity
	Confidence       float64
	ExecutionTimeMs  int64
}

// expectedCardinality is the result count a confidence-deriving fraction is
// measured against, per query type: describe expects one answer, compare
// expects the two compared entities, search/rank expect a handful.
var expectedCardinality = map[QueryType]int{
	QueryDescribe: 1,
	QueryCompare:  2,
	QuerySearch:   5,
	QueryRank:     5,
}

// Service runs the parse -> generate -> execute -> score pipeline.
type Service struct {
	llm    llmclient.ChatClient
	reader graphstore.GraphReader
	limit  int
}

// NewService builds a Service. limit bounds how many entities a search or
// rank query returns; zero picks a sensible default.
func NewService(llm llmclient.ChatClient, reader graphstore.GraphReader, limit int) *Service {
	if limit <= 0 {
		limit = 20
	}
	return &Service{llm: llm, reader: reader, limit: limit}
}

// Query runs the full NL-query pipeline. Failures at any stage surface as a
// structured error with the failing stage tagged.
func (s *Service) Query(ctx context.Context, nl string) (Result, error) {
	start := time.Now()

	intent, err := s.parseIntent(ctx, nl)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrLLMCallFailed, err).WithStage("intent-parse")
	}

	queryString := GenerateQueryString(intent.Query)

	entities, results, err := s.execute(ctx, intent.Query)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrGraphStoreFailed, err).WithStage("execute")
	}

	confidence := deriveConfidence(intent, len(results))

	return Result{
		StructuredQuery:  intent.Query,
		GraphQueryString: queryString,
		Intent:           intent,
		Entities:         entities,
		Results:          results,
		Confidence:       confidence,
		ExecutionTimeMs:  time.Since(start).Milliseconds(),
	}, nil
}

// deriveConfidence scales the intent parser's own confidence by how close
// the actual result count came to what was expected for this query type,
// per spec section 4.12: "intent-parse confidence x (bounded result
// cardinality / expected)".
func deriveConfidence(intent Intent, resultCount int) float64 {
	expected := expectedCardinality[intent.Query.QueryType]
	if expected <= 0 {
		expected = 5
	}
	fraction := float64(resultCount) / float64(expected)
	if fraction > 1 {
		fraction = 1
	}
	confidence := intent.Confidence * fraction
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// execute runs the structured query against the graph using the typed
// GraphReader capability methods that best match the query's intent.
// entities is the set of named entities the query directly refers to;
// results is the final answer set.
func (s *Service) execute(ctx context.Context, q StructuredQuery) (entities []*types.Entity, results []*types.Entity, err error) {
	switch q.QueryType {
	case QueryDescribe:
		if len(q.Terms) == 0 {
			return nil, nil, nil
		}
		matches, err := s.searchTerms(ctx, q.Terms, 1)
		if err != nil {
			return nil, nil, err
		}
		return matches, matches, nil

	case QueryCompare:
		matches, err := s.searchTerms(ctx, q.Terms, 2)
		if err != nil {
			return nil, nil, err
		}
		return matches, matches, nil

	case QueryRank:
		candidates, err := s.candidatesByType(ctx, q.EntityTypes)
		if err != nil {
			return nil, nil, err
		}
		ranked, err := s.rankByDegree(ctx, candidates)
		if err != nil {
			return nil, nil, err
		}
		return candidates, truncate(ranked, s.limit), nil

	default: // QuerySearch
		if len(q.Terms) > 0 {
			matches, err := s.searchTerms(ctx, q.Terms, s.limit)
			if err != nil {
				return nil, nil, err
			}
			return matches, matches, nil
		}
		candidates, err := s.candidatesByType(ctx, q.EntityTypes)
		if err != nil {
			return nil, nil, err
		}
		return candidates, truncate(candidates, s.limit), nil
	}
}

func (s *Service) searchTerms(ctx context.Context, terms []string, limit int) ([]*types.Entity, error) {
	seen := make(map[string]bool)
	var out []*types.Entity
	for _, term := range terms {
		matches, err := s.reader.SearchEntities(ctx, term, limit)
		if err != nil {
			return nil, err
		}
		for _, e := range matches {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	return truncate(out, limit), nil
}

func (s *Service) candidatesByType(ctx context.Context, entityTypes []types.EntityType) ([]*types.Entity, error) {
	if len(entityTypes) == 0 {
		return s.reader.SearchEntities(ctx, "", s.limit)
	}
	seen := make(map[string]bool)
	var out []*types.Entity
	for _, t := range entityTypes {
		matches, err := s.reader.QueryEntitiesByType(ctx, t, s.limit)
		if err != nil {
			return nil, err
		}
		for _, e := range matches {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	return out, nil
}

// rankByDegree orders candidates by their total relation count, descending,
// the simplest graph-native notion of "importance" available without a
// dedicated centrality computation.
func (s *Service) rankByDegree(ctx context.Context, candidates []*types.Entity) ([]*types.Entity, error) {
	type scored struct {
		entity *types.Entity
		degree int
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, e := range candidates {
		rels, err := s.reader.GetRelations(ctx, e.ID, "both")
		if err != nil {
			return nil, err
		}
		scoredList = append(scoredList, scored{entity: e, degree: len(rels)})
	}
	sort.SliceStable(scoredList, func(i, j int) bool {
		return scoredList[i].degree > scoredList[j].degree
	})
	out := make([]*types.Entity, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.entity
	}
	return out, nil
}

func truncate(entities []*types.Entity, limit int) []*types.Entity {
	if limit <= 0 || len(entities) <= limit {
		return entities
	}
	return entities[:limit]
}

// GenerateQueryString deterministically renders a StructuredQuery as a
// Cypher-shaped string, for audit and debugging. It is not itself executed:
// execute() runs the equivalent logic through the typed GraphReader
// capability interface.
func GenerateQueryString(q StructuredQuery) string {
	var b strings.Builder
	switch q.QueryType {
	case QueryDescribe:
		fmt.Fprintf(&b, "MATCH (e:Entity) WHERE e.name IN %s OPTIONAL MATCH (e)-[r]-(o) RETURN e, r, o", renderList(q.Terms))
	case QueryCompare:
		fmt.Fprintf(&b, "MATCH (e:Entity) WHERE e.name IN %s RETURN e", renderList(q.Terms))
	case QueryRank:
		fmt.Fprintf(&b, "MATCH (e:Entity)")
		appendTypeFilter(&b, q.EntityTypes)
		b.WriteString(" OPTIONAL MATCH (e)-[r]-() RETURN e, count(r) as degree ORDER BY degree DESC")
	default:
		if len(q.Terms) > 0 {
			fmt.Fprintf(&b, "MATCH (e:Entity) WHERE e.name CONTAINS %s RETURN e", renderList(q.Terms))
		} else {
			b.WriteString("MATCH (e:Entity)")
			appendTypeFilter(&b, q.EntityTypes)
			b.WriteString(" RETURN e")
		}
	}
	if q.Ordering != "" && q.QueryType != QueryRank {
		fmt.Fprintf(&b, " ORDER BY %s", q.Ordering)
	}
	return b.String()
}

func appendTypeFilter(b *strings.Builder, entityTypes []types.EntityType) {
	if len(entityTypes) == 0 {
		return
	}
	names := make([]string, len(entityTypes))
	for i, t := range entityTypes {
		names[i] = string(t)
	}
	fmt.Fprintf(b, " WHERE e.type IN %s", renderList(names))
}

func renderList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
