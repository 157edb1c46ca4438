package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateEvaluationSystemPrompt(t *testing.T) {
	p := GenerateEvaluationSystemPrompt(10, 7)
	assert.Contains(t, p, "from 0 to 10")
	assert.Contains(t, p, "passes at 7 or above")
	assert.Contains(t, p, `"follow_up_question"`)
}

func TestGenerateAnswerPrompt(t *testing.T) {
	p := GenerateAnswerPrompt(1, "Why Go?", "It is simple")
	assert.Equal(t, "QUESTION 2: Why Go?\n\nANSWER: It is simple\n", p)
}

func TestGenerateFollowUpPrompt(t *testing.T) {
	f := FollowUp{OriginalQuestion: "Q", OriginalAnswer: "A", Question: "FQ", Answer: "FA", Level: 1}

	p := GenerateFollowUpPrompt(f, false)
	assert.Contains(t, p, "FOLLOW-UP 1: FQ")
	assert.Contains(t, p, "FOLLOW-UP ANSWER: FA")
	assert.NotContains(t, p, "last follow-up")

	assert.Contains(t, GenerateFollowUpPrompt(f, true), "last follow-up")
}
