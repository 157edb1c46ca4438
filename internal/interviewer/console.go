package interviewer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"interview-engine/internal/interview"
	"interview-engine/internal/session"
	"interview-engine/internal/voice"
)

var errNoMicrophone = errors.New("speech recognition is not available in the console")

// Controller is the part of the session controller the console drives.
type Controller interface {
	SubmitAnswer(ctx context.Context, text string) error
	Wait()
	Snapshot() session.Snapshot
}

// Console runs an interview over a terminal. It prints prompts in place of
// playing them and reads typed answers.
type Console struct {
	scanner *bufio.Scanner
	mu      sync.Mutex
	out     io.Writer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Console{scanner: scanner, out: out}
}

// Play prints the prompt.
func (c *Console) Play(_ context.Context, text string, _ []byte) error {
	c.printf("\n🎙  %s\n", text)
	return nil
}

// Recognize always fails: the console has no microphone.
func (c *Console) Recognize(context.Context) (<-chan voice.RecognitionEvent, error) {
	return nil, errNoMicrophone
}

// OnEvent prints scores and errors as they happen.
func (c *Console) OnEvent(e session.Event) {
	switch data := e.Data.(type) {
	case interview.Interaction:
		mark := "❌"
		if data.PassedThreshold {
			mark = "✅"
		}
		c.printf("📊 Score: %d/%d %s\n", data.Score, interview.MaxScore, mark)
		for _, f := range data.Feedback {
			c.printf("   • %s\n", f)
		}
	case session.ErrorInfo:
		c.printf("⚠️  %s: %s\n", data.Kind, data.Message)
	case session.Completed:
		s := data.Summary
		c.printf("\n🏁 Interview completed\n")
		c.printf("• Questions answered: %d/%d\n", s.AnsweredQuestions, s.TotalQuestions)
		c.printf("• Interactions: %d (passed %d)\n", s.Interactions, s.Passed)
		c.printf("• Average score: %.1f\n", s.AverageScore)
		if !data.Exported {
			c.printf("• Export pending, retry with the export command\n")
		}
	}
}

// Run reads answers until the session completes or input ends.
func (c *Console) Run(ctx context.Context, ctrl Controller) error {
	ctrl.Wait()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := ctrl.Snapshot()
		switch {
		case snap.Session.State == interview.StateCompleted:
			return nil
		case !snap.Session.State.Active():
			return fmt.Errorf("session stopped in state %s", snap.Session.State)
		}

		c.printf("Your answer: ")
		if !c.scanner.Scan() {
			return c.scanner.Err()
		}
		answer := strings.TrimSpace(c.scanner.Text())
		if answer == "" {
			c.printf("Please give an answer.\n")
			continue
		}

		if err := ctrl.SubmitAnswer(ctx, answer); err != nil {
			var evalErr *interview.EvaluationError
			if !errors.As(err, &evalErr) {
				c.printf("❌ %v\n", err)
			}
			continue
		}
		ctrl.Wait()
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
