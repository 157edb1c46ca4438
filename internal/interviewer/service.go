package interviewer

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"interview-engine/internal/config"
	"interview-engine/internal/interview"
	"interview-engine/internal/metrics"
	"interview-engine/internal/prompts"
	"interview-engine/internal/scoring"
	"interview-engine/internal/session"
)

// Service runs interviews without the backend: questions come from the
// YAML question bank and answers are scored by an OpenAI model.
type Service struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
	bank        *config.Config
	metrics     *metrics.Metrics
	log         *zap.SugaredLogger
}

// New creates the local interviewer. Extra client options are appended
// after the ones derived from cfg.
func New(cfg config.OpenAIConfig, bank *config.Config, m *metrics.Metrics, log *zap.SugaredLogger, opts ...option.RequestOption) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &Service{
		client:      openai.NewClient(clientOpts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		bank:        bank,
		metrics:     m,
		log:         log,
	}
}

// Setup returns the configured question bank for any candidate.
func (s *Service) Setup(_ context.Context, candidateID string) (*session.SetupResult, error) {
	if s.bank.GetTotalQuestions() == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}
	greeting := s.bank.Interview.Greeting
	if greeting == "" {
		greeting = fmt.Sprintf("Hello %s, welcome to your interview.", candidateID)
	}
	return &session.SetupResult{
		Questions: append([]string(nil), s.bank.Questions...),
		Threshold: s.bank.GetScoreThreshold(),
		Greeting:  greeting,
	}, nil
}

// Evaluate scores a main answer.
func (s *Service) Evaluate(ctx context.Context, req scoring.EvaluateRequest) (*scoring.Response, error) {
	content, err := s.callOpenAI(ctx, s.buildSystemPrompt(), buildAnswerPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("evaluate answer: %w", err)
	}
	return parseEvaluation(content)
}

// EvaluateFollowUp scores a follow-up answer in the context of the
// original exchange.
func (s *Service) EvaluateFollowUp(ctx context.Context, req scoring.FollowUpRequest) (*scoring.Response, error) {
	content, err := s.callOpenAI(ctx, s.buildSystemPrompt(), s.buildFollowUpPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("evaluate follow-up answer: %w", err)
	}
	return parseEvaluation(content)
}

func (s *Service) buildSystemPrompt() string {
	return prompts.GenerateEvaluationSystemPrompt(interview.MaxScore, s.bank.GetScoreThreshold())
}

func buildAnswerPrompt(req scoring.EvaluateRequest) string {
	return prompts.GenerateAnswerPrompt(req.QuestionIndex, req.Question, req.Answer)
}

func (s *Service) buildFollowUpPrompt(req scoring.FollowUpRequest) string {
	return prompts.GenerateFollowUpPrompt(prompts.FollowUp{
		OriginalQuestion: req.OriginalQuestion,
		OriginalAnswer:   req.OriginalAnswer,
		Question:         req.FollowUpQuestion,
		Answer:           req.FollowUpAnswer,
		Level:            req.FollowUpLevel,
	}, req.FollowUpLevel >= s.bank.GetMaxFollowUps())
}
