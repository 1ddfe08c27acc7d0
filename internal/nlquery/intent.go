package nlquery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"litkg/internal/llmclient"
	"litkg/internal/types"
)

// parseIntent asks the chat endpoint to classify nl into a StructuredQuery,
// tolerantly parsing its fixed line-oriented response. An unparseable or
// out-of-vocabulary response falls back to a plain search over the raw text
// with a low confidence, rather than failing the whole query: a best-effort
// search is more useful to the caller than an error on a question the
// parser didn't fully understand.
func (s *Service) parseIntent(ctx context.Context, nl string) (Intent, error) {
	response, err := s.llm.Chat(ctx, llmclient.ChatRequest{
		System: "You translate natural-language questions about a knowledge graph of AI research into a structured query.",
		Prompt: buildIntentPrompt(nl),
	})
	if err != nil {
		return Intent{}, err
	}

	query, confidence, ok := parseIntentResponse(response)
	if !ok {
		return Intent{
			Query:      StructuredQuery{QueryType: QuerySearch, Terms: []string{nl}},
			Confidence: 0.3,
		}, nil
	}
	return Intent{Query: query, Confidence: confidence}, nil
}

func buildIntentPrompt(nl string) string {
	var entityTypes []string
	for _, t := range types.ValidEntityTypes {
		entityTypes = append(entityTypes, string(t))
	}
	var relationTypes []string
	for _, t := range types.ValidRelationTypes {
		relationTypes = append(relationTypes, string(t))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", nl)
	fmt.Fprintf(&b, "Allowed entity types: %s\n", strings.Join(entityTypes, ", "))
	fmt.Fprintf(&b, "Allowed relation types: %s\n\n", strings.Join(relationTypes, ", "))
	b.WriteString("Classify the question and respond with exactly these lines (omit a line if it does not apply):\n")
	b.WriteString("QUERY_TYPE: <one of search, describe, compare, rank>\n")
	b.WriteString("ENTITY_TYPES: <comma-separated subset of the allowed entity types, or NONE>\n")
	b.WriteString("RELATION_TYPES: <comma-separated subset of the allowed relation types, or NONE>\n")
	b.WriteString("TERMS: <comma-separated entity names mentioned in the question, or NONE>\n")
	b.WriteString("ORDERING: <a short ordering hint, or NONE>\n")
	b.WriteString("CONFIDENCE: <a number between 0.0 and 1.0>\n")
	return b.String()
}

// parseIntentResponse tolerantly parses the fixed line-oriented intent
// format. Any missing/unparseable required field, or an out-of-vocabulary
// query type, is treated as a parse failure.
func parseIntentResponse(response string) (StructuredQuery, float64, bool) {
	var q StructuredQuery
	var confidence float64
	var haveType, haveConfidence bool

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "QUERY_TYPE:"):
			value := strings.ToLower(strings.TrimSpace(line[strings.Index(line, ":")+1:]))
			switch QueryType(value) {
			case QuerySearch, QueryDescribe, QueryCompare, QueryRank:
				q.QueryType = QueryType(value)
				haveType = true
			default:
				return StructuredQuery{}, 0, false
			}
		case strings.HasPrefix(upper, "ENTITY_TYPES:"):
			q.EntityTypes = parseEntityTypes(line)
		case strings.HasPrefix(upper, "RELATION_TYPES:"):
			q.RelationTypes = parseRelationTypes(line)
		case strings.HasPrefix(upper, "TERMS:"):
			q.Terms = parseCSVField(line)
		case strings.HasPrefix(upper, "ORDERING:"):
			value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			if !strings.EqualFold(value, "none") {
				q.Ordering = value
			}
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			conf, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return StructuredQuery{}, 0, false
			}
			if conf < 0 {
				conf = 0
			}
			if conf > 1 {
				conf = 1
			}
			confidence = conf
			haveConfidence = true
		}
	}

	if !haveType || !haveConfidence {
		return StructuredQuery{}, 0, false
	}
	return q, confidence, true
}

func parseCSVField(line string) []string {
	value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
	if strings.EqualFold(value, "none") || value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseEntityTypes(line string) []types.EntityType {
	var out []types.EntityType
	for _, name := range parseCSVField(line) {
		t := types.EntityType(name)
		if types.IsValidEntityType(t) {
			out = append(out, t)
		}
	}
	return out
}

func parseRelationTypes(line string) []types.RelationType {
	var out []types.RelationType
	for _, name := range parseCSVField(line) {
		t := types.RelationType(strings.ToUpper(name))
		if types.IsValidRelationType(t) {
			out = append(out, t)
		}
	}
	return out
}
