package clarity

import (
	"fmt"
	"strings"
)

// SystemPrompt frames every request sent on behalf of the tool.
const SystemPrompt = `You are Agent Clarity, a reviewer of LLM agent definitions.
An agent definition is a JSON document with a system message, metadata and an
optional dialog history. Point out ambiguities, gaps and contradictions, and
suggest concrete rewrites. Answer in Markdown.`

// AnalyzePrompt precedes the agent definition in an analysis request.
const AnalyzePrompt = "Analyze this agent definition:"

// Feedback aspects, keyed by the command that asks for them.
var feedbackAspects = map[string]string{
	"feedback_input":       "input handling",
	"feedback_output":      "output generation",
	"feedback_rules":       "rules",
	"feedback_constraints": "constraints",
}

// Short names accepted by "feedback <aspect>".
var aspectAliases = map[string]string{
	"input":       "input handling",
	"output":      "output generation",
	"rules":       "rules",
	"constraints": "constraints",
}

// FeedbackPrompt precedes the agent definition in a feedback request.
func FeedbackPrompt(aspect string) string {
	return fmt.Sprintf("Provide detailed feedback on the %s of this agent definition:", aspect)
}

// BuildPrompt joins the parts with single spaces, skipping empty ones.
func BuildPrompt(pre, definition, post string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{pre, definition, post} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func normalizeAspect(arg string) string {
	arg = strings.TrimSpace(arg)
	if full, ok := aspectAliases[strings.ToLower(arg)]; ok {
		return full
	}
	return arg
}
