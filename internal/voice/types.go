package voice

import (
	"context"
	"errors"
	"fmt"
)

// State is the capture engine state.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

// ErrorKind classifies recognition failures.
type ErrorKind string

const (
	ErrorNetwork      ErrorKind = "network"
	ErrorNoSpeech     ErrorKind = "no_speech"
	ErrorAborted      ErrorKind = "aborted"
	ErrorNotAllowed   ErrorKind = "not_allowed"
	ErrorAudioCapture ErrorKind = "audio_capture"
	ErrorUnsupported  ErrorKind = "unsupported"
)

// RecognitionError is reported by a Recognizer inside the event stream.
type RecognitionError struct {
	Kind    ErrorKind
	Message string
}

func (e *RecognitionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("recognition error: %s", e.Kind)
	}
	return fmt.Sprintf("recognition error: %s: %s", e.Kind, e.Message)
}

// RecognitionEvent is one item of a recognition stream. Exactly one of
// Text or Err is meaningful.
type RecognitionEvent struct {
	Text    string
	IsFinal bool
	Err     *RecognitionError
}

// Recognizer turns live audio into a stream of recognition events. Closing
// the channel is the end signal. Cancelling ctx aborts the stream.
type Recognizer interface {
	Recognize(ctx context.Context) (<-chan RecognitionEvent, error)
}

// Synthesizer produces prompt audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player plays a prompt and returns once playback has finished. audio may be
// nil when synthesis was unavailable.
type Player interface {
	Play(ctx context.Context, text string, audio []byte) error
}

// Transcript is the accumulated text of the current listen cycle.
type Transcript struct {
	Text    string
	IsFinal bool
}

var (
	ErrSpeaking = errors.New("voice: prompt is being spoken")
	ErrClosed   = errors.New("voice: engine closed")
)
