package scoring

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"interview-engine/internal/interview"
)

// EvaluateRequest asks the evaluator to score a main answer.
type EvaluateRequest struct {
	CandidateID   string `json:"candidate_id"`
	QuestionIndex int    `json:"question_index"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
}

// FollowUpRequest asks the evaluator to score a follow-up answer.
type FollowUpRequest struct {
	CandidateID      string `json:"candidate_id"`
	OriginalQuestion string `json:"original_question"`
	OriginalAnswer   string `json:"original_answer"`
	FollowUpQuestion string `json:"follow_up_question"`
	FollowUpAnswer   string `json:"follow_up_answer"`
	FollowUpLevel    int    `json:"follow_up_level"`
}

// Response is the evaluator's raw answer.
type Response struct {
	Score            float64  `json:"score"`
	Feedback         []string `json:"feedback"`
	NeedsFollowUp    bool     `json:"needs_followup"`
	FollowUpQuestion string   `json:"follow_up_question,omitempty"`
}

// Evaluator is the external scoring collaborator.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluateRequest) (*Response, error)
	EvaluateFollowUp(ctx context.Context, req FollowUpRequest) (*Response, error)
}

var errEmptyResponse = errors.New("empty evaluation response")

// Broker forwards answers to the Evaluator and normalizes its output.
type Broker struct {
	evaluator Evaluator
	log       *zap.SugaredLogger
}

func NewBroker(evaluator Evaluator, log *zap.SugaredLogger) *Broker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Broker{evaluator: evaluator, log: log}
}

// Evaluate scores the answer to a main question.
func (b *Broker) Evaluate(ctx context.Context, candidateID string, q interview.Question, answer string) (interview.EvaluationResult, error) {
	resp, err := b.evaluator.Evaluate(ctx, EvaluateRequest{
		CandidateID:   candidateID,
		QuestionIndex: q.Index,
		Question:      q.Text,
		Answer:        answer,
	})
	if err == nil && resp == nil {
		err = errEmptyResponse
	}
	if err != nil {
		b.log.Warnf("Evaluation failed for candidate %s question %d: %v", candidateID, q.Index, err)
		return interview.EvaluationResult{}, &interview.EvaluationError{QuestionIndex: q.Index, Err: err}
	}
	return b.normalize(resp), nil
}

// EvaluateFollowUp scores the answer to a follow-up round. level is the
// round number, starting at 1.
func (b *Broker) EvaluateFollowUp(ctx context.Context, candidateID string, original interview.Question, originalAnswer, followUpQuestion, followUpAnswer string, level int) (interview.EvaluationResult, error) {
	resp, err := b.evaluator.EvaluateFollowUp(ctx, FollowUpRequest{
		CandidateID:      candidateID,
		OriginalQuestion: original.Text,
		OriginalAnswer:   originalAnswer,
		FollowUpQuestion: followUpQuestion,
		FollowUpAnswer:   followUpAnswer,
		FollowUpLevel:    level,
	})
	if err == nil && resp == nil {
		err = errEmptyResponse
	}
	if err != nil {
		b.log.Warnf("Follow-up evaluation failed for candidate %s question %d level %d: %v", candidateID, original.Index, level, err)
		return interview.EvaluationResult{}, &interview.EvaluationError{QuestionIndex: original.Index, FollowUp: true, Err: err}
	}
	return b.normalize(resp), nil
}

// normalize truncates fractional scores so that a score passes a threshold
// only when the raw value reaches it: 6.9 stays below 7.
func (b *Broker) normalize(resp *Response) interview.EvaluationResult {
	raw := resp.Score
	if math.IsNaN(raw) {
		b.log.Warnf("Evaluator returned a NaN score, using 0")
		raw = 0
	}
	score := int(math.Floor(max(-1, min(raw, interview.MaxScore+1))))
	if score < 0 || score > interview.MaxScore {
		b.log.Warnf("Evaluator returned score %v outside 0..%d, clamping", resp.Score, interview.MaxScore)
		score = max(0, min(score, interview.MaxScore))
	}

	feedback := make([]string, 0, len(resp.Feedback))
	for _, f := range resp.Feedback {
		if f = strings.TrimSpace(f); f != "" {
			feedback = append(feedback, f)
		}
	}

	return interview.EvaluationResult{
		Score:            score,
		Feedback:         feedback,
		NeedsFollowUp:    resp.NeedsFollowUp,
		FollowUpQuestion: strings.TrimSpace(resp.FollowUpQuestion),
	}
}
