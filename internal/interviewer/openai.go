package interviewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"interview-engine/internal/scoring"
)

var errEmptyCompletion = errors.New("empty response from OpenAI")

// callOpenAI sends one system and one user message and returns the reply.
func (s *Service) callOpenAI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(s.temperature),
	}
	if s.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(s.maxTokens))
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		s.metrics.IncrementAPICall(false)
		return "", fmt.Errorf("openai chat: %w", err)
	}
	s.metrics.IncrementAPICall(true)

	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	s.log.Debugf("OpenAI %s used %d prompt and %d completion tokens",
		resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

func parseEvaluation(content string) (*scoring.Response, error) {
	content = cleanJSONResponse(content)
	if content == "" {
		return nil, errEmptyCompletion
	}
	var resp scoring.Response
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("parse evaluation: %w", err)
	}
	return &resp, nil
}

// cleanJSONResponse removes markdown fences around the model's JSON.
func cleanJSONResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	response = strings.TrimSpace(response)

	// keep only the outermost object when the model adds prose around it
	if start := strings.Index(response, "{"); start > 0 {
		response = response[start:]
	}
	if end := strings.LastIndex(response, "}"); end >= 0 && end < len(response)-1 {
		response = response[:end+1]
	}
	return response
}
