package storage

import (
	"time"

	"interview-engine/internal/interview"
)

// ExportRecord is the persisted form of a finished interview.
type ExportRecord struct {
	CandidateID     string                            `json:"candidateId"`
	SessionID       string                            `json:"sessionId"`
	Threshold       int                               `json:"threshold"`
	StartTime       time.Time                         `json:"startTime"`
	EndTime         *time.Time                        `json:"endTime"`
	Questions       []interview.Question              `json:"questions"`
	Interactions    []interview.Interaction           `json:"interactions"`
	Transcriptions  []interview.TranscriptionSnapshot `json:"transcriptions"`
	Screenshots     []interview.CaptureRecord         `json:"screenshots"`
	AudioRecordings []interview.CaptureRecord         `json:"audioRecordings"`
	Metadata        ExportMetadata                    `json:"metadata"`
}

// ExportMetadata carries the aggregate counts of an export.
type ExportMetadata struct {
	TotalQuestions       int        `json:"totalQuestions"`
	TotalInteractions    int        `json:"totalInteractions"`
	PassedInteractions   int        `json:"passedInteractions"`
	TotalScreenshots     int        `json:"totalScreenshots"`
	TotalAudioRecordings int        `json:"totalAudioRecordings"`
	TotalTranscriptions  int        `json:"totalTranscriptions"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
}
