package interview

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyAnswer          = errors.New("answer is empty")
	ErrInvalidAnswer        = errors.New("answer is invalid")
	ErrSubmissionInFlight   = errors.New("submission already in flight")
	ErrTransitionInFlight   = errors.New("transition already in flight")
	ErrDuplicateInteraction = errors.New("interaction already recorded")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrNotFinalQuestion     = errors.New("not on the final question")
	ErrNoQuestions          = errors.New("no questions returned")
	ErrSessionNotFound      = errors.New("session not found")
)

// SetupError is returned when a session cannot be prepared.
type SetupError struct {
	CandidateID string
	Err         error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed for candidate %s: %v", e.CandidateID, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// EvaluationError is returned when the scoring collaborator fails.
type EvaluationError struct {
	QuestionIndex int
	FollowUp      bool
	Err           error
}

func (e *EvaluationError) Error() string {
	kind := "answer"
	if e.FollowUp {
		kind = "follow-up answer"
	}
	return fmt.Sprintf("evaluation of %s for question %d failed: %v", kind, e.QuestionIndex, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// CaptureError is returned when speech capture cannot run.
type CaptureError struct {
	Reason string
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("capture failed (%s)", e.Reason)
}

func (e *CaptureError) Unwrap() error { return e.Err }
