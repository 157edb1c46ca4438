package ledger

// Summary is the completion report of a session.
type Summary struct {
	Interactions         int     `json:"interactions"`
	Passed               int     `json:"passed"`
	Screenshots          int     `json:"screenshots"`
	AudioRecordings      int     `json:"audioRecordings"`
	Transcriptions       int     `json:"transcriptions"`
	TotalQuestions       int     `json:"totalQuestions"`
	AnsweredQuestions    int     `json:"answeredQuestions"`
	AverageScore         float64 `json:"averageScore"`
	CompletionPercentage float64 `json:"completionPercentage"`
}

// Summary aggregates the ledger contents.
func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{
		Interactions:    len(l.interactions),
		Screenshots:     len(l.screenshots),
		AudioRecordings: len(l.audio),
		Transcriptions:  len(l.transcriptions),
		TotalQuestions:  len(l.questions),
	}

	answered := make(map[int]struct{})
	total := 0
	for _, in := range l.interactions {
		if in.PassedThreshold {
			s.Passed++
		}
		total += in.Score
		answered[in.QuestionIndex] = struct{}{}
	}
	s.AnsweredQuestions = len(answered)

	if s.Interactions > 0 {
		s.AverageScore = float64(total) / float64(s.Interactions)
	}
	if s.TotalQuestions > 0 {
		s.CompletionPercentage = float64(s.AnsweredQuestions) / float64(s.TotalQuestions) * 100
	}
	return s
}
