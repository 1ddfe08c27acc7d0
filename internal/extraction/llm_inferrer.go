package extraction

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"litkg/internal/apperrors"
	"litkg/internal/llmclient"
	"litkg/internal/types"
)

// LLMProposal is the parsed result of an LLM relation-inference call.
type LLMProposal struct {
	SourceID      string
	TargetID      string
	RelationType  types.RelationType
	Confidence    float64
	Explanation   string
}

// LLMRelationInferrer asks an external chat endpoint for a relation type
// plus confidence given two entities and a surrounding text window, per
// spec section 4.3. It is optional: callers that construct the extraction
// pipeline without one simply skip the LLM pass.
type LLMRelationInferrer struct {
	client llmclient.ChatClient
}

// NewLLMRelationInferrer builds an inferrer over client.
func NewLLMRelationInferrer(client llmclient.ChatClient) *LLMRelationInferrer {
	return &LLMRelationInferrer{client: client}
}

// EntityRef is the minimal entity description passed into the LLM prompt.
type EntityRef struct {
	ID   string
	Name string
	Type types.EntityType
}

// Infer asks the chat endpoint to classify the relation (if any) between
// source and target, given the surrounding text window. A parse failure
// returns (nil, nil) -- no proposal, no hard error -- exactly as a NONE
// answer does, so the caller cannot tell the two apart; it skips the pair
// without logging a warning and continues with co-occurrence and pattern
// evidence only.
func (l *LLMRelationInferrer) Infer(ctx context.Context, source, target EntityRef, window string) (*LLMProposal, error) {
	prompt := buildInferencePrompt(source, target, window)

	response, err := l.client.Chat(ctx, llmclient.ChatRequest{
		System: "You classify relations between two named entities found in scientific literature.",
		Prompt: prompt,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLLMCallFailed, err).WithStage("infer-relation")
	}

	parsed, ok := parseInferenceResponse(response)
	if !ok {
		return nil, nil
	}

	return &LLMProposal{
		SourceID:     source.ID,
		TargetID:     target.ID,
		RelationType: parsed.relationType,
		Confidence:   parsed.confidence,
		Explanation:  parsed.explanation,
	}, nil
}

func buildInferencePrompt(source, target EntityRef, window string) string {
	var allowed []string
	for _, rt := range types.ValidRelationTypes {
		allowed = append(allowed, string(rt))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Entity A: %s (type: %s)\n", source.Name, source.Type)
	fmt.Fprintf(&b, "Entity B: %s (type: %s)\n", target.Name, target.Type)
	fmt.Fprintf(&b, "Context:\n%s\n\n", window)
	fmt.Fprintf(&b, "Allowed relation types: %s\n\n", strings.Join(allowed, ", "))
	b.WriteString("If a relation from Entity A to Entity B is supported by the context, respond with exactly three lines:\n")
	b.WriteString("RELATION_TYPE: <one of the allowed types, or NONE>\n")
	b.WriteString("CONFIDENCE: <a number between 0.0 and 1.0>\n")
	b.WriteString("EXPLANATION: <one sentence>\n")
	return b.String()
}

type inferenceResult struct {
	relationType types.RelationType
	confidence   float64
	explanation  string
}

// parseInferenceResponse tolerantly parses the fixed line-oriented format.
// Any missing/unparseable required field, or an out-of-vocabulary relation
// type, is treated as "no proposal" rather than coerced.
func parseInferenceResponse(response string) (inferenceResult, bool) {
	var result inferenceResult
	var haveType, haveConfidence bool

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "RELATION_TYPE:"):
			value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			if strings.EqualFold(value, "none") {
				return inferenceResult{}, false
			}
			rt := types.RelationType(strings.ToUpper(strings.TrimSpace(value)))
			if !types.IsValidRelationType(rt) {
				return inferenceResult{}, false
			}
			result.relationType = rt
			haveType = true
		case strings.HasPrefix(strings.ToUpper(line), "CONFIDENCE:"):
			value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			conf, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return inferenceResult{}, false
			}
			if conf < 0 {
				conf = 0
			}
			if conf > 1 {
				conf = 1
			}
			result.confidence = conf
			haveConfidence = true
		case strings.HasPrefix(strings.ToUpper(line), "EXPLANATION:"):
			result.explanation = strings.TrimSpace(line[strings.Index(line, ":")+1:])
		}
	}

	if !haveType || !haveConfidence {
		return inferenceResult{}, false
	}
	return result, true
}
