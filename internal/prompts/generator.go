package prompts

import (
	"fmt"
	"strings"
)

// GenerateEvaluationSystemPrompt is the system prompt for scoring spoken
// answers on a 0..maxScore scale.
func GenerateEvaluationSystemPrompt(maxScore, threshold int) string {
	prompt := `You are an experienced technical interviewer scoring a candidate's spoken answers.

SCORING:
- Score each answer from 0 to %d
- An answer passes at %d or above
- Give two or three short, concrete feedback points

FOLLOW-UPS:
- Ask for a follow-up only when the answer is vague or incomplete
- The follow-up must be one short question the candidate can answer aloud
- Put only the question in follow_up_question, without any preamble

Reply with JSON only, in this shape:
{"score": 0, "feedback": ["..."], "needs_followup": false, "follow_up_question": ""}`

	return fmt.Sprintf(prompt, maxScore, threshold)
}

// GenerateAnswerPrompt asks for the score of a main answer. index is
// zero-based.
func GenerateAnswerPrompt(index int, question, answer string) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("QUESTION %d: %s\n\n", index+1, question))
	builder.WriteString(fmt.Sprintf("ANSWER: %s\n", answer))
	return builder.String()
}

// FollowUp is one follow-up exchange in the context of its question.
type FollowUp struct {
	OriginalQuestion string
	OriginalAnswer   string
	Question         string
	Answer           string
	Level            int
}

// GenerateFollowUpPrompt asks for the score of a follow-up answer. last
// tells the model that no further follow-up is allowed.
func GenerateFollowUpPrompt(f FollowUp, last bool) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("ORIGINAL QUESTION: %s\n", f.OriginalQuestion))
	builder.WriteString(fmt.Sprintf("ORIGINAL ANSWER: %s\n\n", f.OriginalAnswer))
	builder.WriteString(fmt.Sprintf("FOLLOW-UP %d: %s\n", f.Level, f.Question))
	builder.WriteString(fmt.Sprintf("FOLLOW-UP ANSWER: %s\n\n", f.Answer))

	if last {
		builder.WriteString("This was the last follow-up allowed for this question. Do not ask another one.\n")
	}
	builder.WriteString("Score the follow-up answer, taking the original exchange into account.")

	return builder.String()
}
