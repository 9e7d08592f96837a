package clarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "pre {} post", BuildPrompt("pre", "{}", "post"))
	assert.Equal(t, "pre {}", BuildPrompt("pre ", "{}", ""))
	assert.Equal(t, "{}", BuildPrompt("", "{}", "  "))
}

func TestFeedbackPrompt(t *testing.T) {
	assert.Equal(t, "Provide detailed feedback on the rules of this agent definition:", FeedbackPrompt("rules"))
}

func TestNormalizeAspect(t *testing.T) {
	assert.Equal(t, "input handling", normalizeAspect("input"))
	assert.Equal(t, "output generation", normalizeAspect(" Output "))
	assert.Equal(t, "constraints", normalizeAspect("constraints"))
	assert.Equal(t, "tone", normalizeAspect("tone"))
	assert.Empty(t, normalizeAspect(""))
}

func TestFeedbackAspectsCoverCommands(t *testing.T) {
	for _, cmd := range []string{"feedback_input", "feedback_output", "feedback_rules", "feedback_constraints"} {
		assert.NotEmpty(t, feedbackAspects[cmd], cmd)
	}
}
