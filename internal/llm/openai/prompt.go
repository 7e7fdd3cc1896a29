package openai

import (
	"fmt"
	"strings"

	"github.com/JustIkra/rksi-hackotone/internal/llm"
)

func buildParseSystemPrompt(knownLabels []string) string {
	parts := []string{
		"You are a psychometric report parser. Return ONLY JSON that matches the JSON Schema provided.",
		"The input is one page of a professional assessment report.",
		"Find every metric that has an explicit numeric value on the page.",
		"Report the metric label exactly as printed, and the value as a number.",
		"Include a short verbatim 'quote' containing the value when possible.",
		"Set 'confidence' between 0 and 1 for how certain you are about the reading.",
		"Never output null. If no metrics appear, return an empty 'metrics' array.",
	}
	if len(knownLabels) > 0 {
		// cap the hint so the prompt stays bounded on large vocabularies
		hint := knownLabels
		if len(hint) > 100 {
			hint = hint[:100]
		}
		parts = append(parts, "Known metric names (prefer these spellings when the page matches them): "+
			strings.Join(hint, "; ")+".")
	}
	return strings.Join(parts, " ")
}

func buildParseUserPrompt(req llm.ParseRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page %d text:\n", req.PageNumber)
	// bound the page payload; assessment pages rarely exceed this
	if len(req.PageText) > 6000 {
		b.WriteString(req.PageText[:6000])
	} else {
		b.WriteString(req.PageText)
	}
	return b.String()
}

func buildRecommendSystemPrompt() string {
	return strings.Join([]string{
		"You are a career development advisor. Return ONLY JSON that matches the JSON Schema provided.",
		"Write 3 to 5 concrete, actionable development recommendations.",
		"Ground each recommendation in the listed development areas; acknowledge strengths where useful.",
		"Each recommendation is one plain sentence. No numbering, no markdown.",
	}, " ")
}

func buildRecommendUserPrompt(req llm.RecommendRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Professional activity: %s\n", req.ProfActivityName)
	fmt.Fprintf(&b, "Suitability score: %.1f%%\n", req.ScorePct)
	b.WriteString("Strengths:\n")
	for _, s := range req.Strengths {
		fmt.Fprintf(&b, "- %s (%.2f)\n", s.Name, s.Value)
	}
	b.WriteString("Development areas:\n")
	for _, d := range req.DevAreas {
		fmt.Fprintf(&b, "- %s (%.2f)\n", d.Name, d.Value)
	}
	return b.String()
}
