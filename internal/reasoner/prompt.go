package reasoner

import (
	"fmt"
	"strconv"
	"strings"
)

// buildStepPrompt renders the question, a summary of the retrieved
// subgraph, and the steps taken so far, asking for exactly one more
// reasoning step.
func buildStepPrompt(question string, sg *subgraph, steps []Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)

	b.WriteString("Known entities:\n")
	for id, e := range sg.nodes {
		fmt.Fprintf(&b, "- %s (%s): %s\n", id, e.Type, e.Name)
	}
	b.WriteString("\nKnown relations:\n")
	for _, rel := range sg.edges {
		fmt.Fprintf(&b, "- %s %s %s\n", rel.Source, rel.Type, rel.Target)
	}

	if len(steps) > 0 {
		b.WriteString("\nSteps so far:\n")
		for i, s := range steps {
			fmt.Fprintf(&b, "%d. %s (evidence: %s)\n", i+1, s.Text, strings.Join(s.EvidenceIDs, ", "))
		}
	}

	b.WriteString("\nEmit exactly the next reasoning step, citing only entity or relation ids listed above as evidence. Respond with exactly these lines:\n")
	b.WriteString("STEP: <one sentence of reasoning>\n")
	b.WriteString("EVIDENCE: <comma-separated entity/relation ids this step relies on, or NONE>\n")
	b.WriteString("CONFIDENCE: <a number between 0.0 and 1.0>\n")
	b.WriteString("TERMINAL: <yes if this step reaches the answer, no otherwise>\n")
	return b.String()
}

// parseStepResponse tolerantly parses the fixed line-oriented step format.
// Any missing/unparseable required field is treated as a parse failure,
// stopping the reasoning loop early rather than fabricating a step.
func parseStepResponse(response string) (Step, bool, bool) {
	var step Step
	var terminal bool
	var haveText, haveConfidence bool

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "STEP:"):
			step.Text = strings.TrimSpace(line[strings.Index(line, ":")+1:])
			haveText = step.Text != ""
		case strings.HasPrefix(upper, "EVIDENCE:"):
			value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			if !strings.EqualFold(value, "none") && value != "" {
				for _, id := range strings.Split(value, ",") {
					id = strings.TrimSpace(id)
					if id != "" {
						step.EvidenceIDs = append(step.EvidenceIDs, id)
					}
				}
			}
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			conf, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Step{}, false, false
			}
			if conf < 0 {
				conf = 0
			}
			if conf > 1 {
				conf = 1
			}
			step.Confidence = conf
			haveConfidence = true
		case strings.HasPrefix(upper, "TERMINAL:"):
			value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			terminal = strings.EqualFold(value, "yes")
		}
	}

	if !haveText || !haveConfidence {
		return Step{}, false, false
	}
	return step, terminal, true
}

// buildSynthesisPrompt asks for a single conclusion paragraph over the
// accumulated steps.
func buildSynthesisPrompt(question string, steps []Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nReasoning steps:\n", question)
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Text)
	}
	b.WriteString("\nWrite a single concise paragraph that answers the question, synthesizing the steps above.\n")
	return b.String()
}
