package consistency

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"litkg/internal/extraction"
	"litkg/internal/llmclient"
	"litkg/internal/types"
)

var sentenceSplit = regexp.MustCompile(`[.!?]+\s+`)

// capitalizedSpan matches a run of one or more capitalized words, the
// NER-like surface heuristic the fallback extractor uses to guess entity
// mentions around a trigger phrase.
var capitalizedSpan = regexp.MustCompile(`\b[A-Z][\w\-]*(?:\s+[A-Z][\w\-]*)*\b`)

// ExtractClaims splits text into FactClaims. It tries the LLM extractor
// first when one is configured; a nil response, an error, or an empty
// result set falls back to the deterministic sentence/trigger-phrase
// extractor, which always returns something (possibly an empty slice for
// text with no recognizable claims, never an error).
func (c *Checker) ExtractClaims(ctx context.Context, text string) ([]types.FactClaim, error) {
	if c.llm != nil {
		if claims, ok := c.extractClaimsLLM(ctx, text); ok && len(claims) > 0 {
			return claims, nil
		}
	}
	return extractClaimsRuleBased(text), nil
}

func (c *Checker) extractClaimsLLM(ctx context.Context, text string) ([]types.FactClaim, bool) {
	response, err := c.llm.Chat(ctx, llmclient.ChatRequest{
		System: "You extract factual claims about named entities and their relations from text.",
		Prompt: buildClaimExtractionPrompt(text),
	})
	if err != nil {
		return nil, false
	}
	return parseClaimExtractionResponse(response)
}

func buildClaimExtractionPrompt(text string) string {
	var allowed []string
	for _, rt := range types.ValidRelationTypes {
		allowed = append(allowed, string(rt))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Text:\n%s\n\n", text)
	fmt.Fprintf(&b, "Allowed relation types: %s\n\n", strings.Join(allowed, ", "))
	b.WriteString("List each factual claim of the form (source entity, relation, target entity) found in the text. Respond with one claim per group of four lines:\n")
	b.WriteString("SOURCE: <source entity name>\n")
	b.WriteString("RELATION: <one of the allowed types>\n")
	b.WriteString("TARGET: <target entity name>\n")
	b.WriteString("CONFIDENCE: <a number between 0.0 and 1.0>\n")
	b.WriteString("Respond with NONE if the text contains no such claim.\n")
	return b.String()
}

// parseClaimExtractionResponse tolerantly parses the repeated
// SOURCE/RELATION/TARGET/CONFIDENCE block format, skipping any block
// missing a required field or naming an out-of-vocabulary relation type
// rather than failing the whole response.
func parseClaimExtractionResponse(response string) ([]types.FactClaim, bool) {
	if strings.EqualFold(strings.TrimSpace(response), "none") {
		return nil, true
	}

	var claims []types.FactClaim
	var source, target string
	var relationType types.RelationType
	var confidence float64
	var haveSource, haveRelation, haveTarget, haveConfidence bool

	flush := func() {
		if haveSource && haveRelation && haveTarget && haveConfidence {
			claims = append(claims, types.FactClaim{
				ID:             fmt.Sprintf("claim-%d", len(claims)),
				Text:           fmt.Sprintf("%s %s %s", source, relationType, target),
				EntityIDs:      []string{source, target},
				SourceEntityID: source,
				TargetEntityID: target,
				RelationType:   relationType,
				Confidence:     confidence,
			})
		}
		source, target = "", ""
		relationType = ""
		confidence = 0
		haveSource, haveRelation, haveTarget, haveConfidence = false, false, false, false
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "SOURCE:"):
			if haveSource {
				flush()
			}
			source = strings.TrimSpace(line[strings.Index(line, ":")+1:])
			haveSource = source != ""
		case strings.HasPrefix(upper, "RELATION:"):
			value := types.RelationType(strings.ToUpper(strings.TrimSpace(line[strings.Index(line, ":")+1:])))
			if types.IsValidRelationType(value) {
				relationType = value
				haveRelation = true
			}
		case strings.HasPrefix(upper, "TARGET:"):
			target = strings.TrimSpace(line[strings.Index(line, ":")+1:])
			haveTarget = target != ""
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			conf, err := strconv.ParseFloat(value, 64)
			if err == nil {
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
	}
	flush()

	return claims, true
}

// extractClaimsRuleBased segments text into sentences and, for each
// configured trigger phrase, takes the nearest capitalized word span
// before and after the trigger as the claim's source and target surface
// forms. It never errors and never returns nil for non-empty input with no
// matches -- an empty, non-nil slice.
func extractClaimsRuleBased(text string) []types.FactClaim {
	claims := make([]types.FactClaim, 0)
	templates := extraction.DefaultPatternTemplates()

	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)

		for _, tmpl := range templates {
			idx := strings.Index(lower, strings.ToLower(tmpl.Trigger))
			if idx < 0 {
				continue
			}

			before := sentence[:idx]
			after := sentence[idx+len(tmpl.Trigger):]
			source := lastSpan(before)
			target := firstSpan(after)
			if source == "" || target == "" {
				continue
			}

			claims = append(claims, types.FactClaim{
				ID:             fmt.Sprintf("claim-%d", len(claims)),
				Text:           sentence,
				EntityIDs:      []string{source, target},
				SourceEntityID: source,
				TargetEntityID: target,
				RelationType:   tmpl.RelationType,
				Confidence:     tmpl.DefaultConfidence,
			})
			break // one claim per sentence is enough for the fallback extractor
		}
	}
	return claims
}

func lastSpan(s string) string {
	matches := capitalizedSpan.FindAllString(s, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}

func firstSpan(s string) string {
	match := capitalizedSpan.FindString(s)
	return match
}
