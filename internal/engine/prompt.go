package engine

import (
	"fmt"
	"strings"

	"github.com/marketops/rankpulse/pkg/models"
)

// BuildPrompt renders an analysis request into the prompt shared by the LLM
// providers. The response contract (SUMMARY block followed by INSIGHT lines)
// is what ParseReport expects back.
func BuildPrompt(req models.AnalysisRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a marketing analyst. Perform a %s analysis for the keyword %q.\n",
		req.AnalysisType, req.Keyword)
	if len(req.EngineIDs) > 0 {
		fmt.Fprintf(&b, "Base the analysis on data from these sources: %s.\n",
			strings.Join(req.EngineIDs, ", "))
	}
	if req.Instructions != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", req.Instructions)
	}
	b.WriteString("\nRespond with a paragraph starting with \"SUMMARY:\" followed by ")
	b.WriteString("one line per finding, each starting with \"INSIGHT:\".")
	return b.String()
}

// ParseReport splits a provider response into summary and insight lines.
// Responses that ignore the contract are kept whole as the summary.
func ParseReport(text string) (summary string, insights []string) {
	insights = []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SUMMARY:"):
			summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		case strings.HasPrefix(line, "INSIGHT:"):
			if in := strings.TrimSpace(strings.TrimPrefix(line, "INSIGHT:")); in != "" {
				insights = append(insights, in)
			}
		}
	}
	if summary == "" {
		summary = strings.TrimSpace(text)
	}
	return summary, insights
}
