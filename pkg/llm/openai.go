package llm

import (
	"context"

	"VidFlow/pkg/errors"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const (
	DefaultOpenAIScriptModel   = openai.GPT4o
	DefaultOpenAIMetadataModel = openai.GPT4oMini
)

// OpenAIHandler implements the LLM interface for OpenAI compatible endpoints
type OpenAIHandler struct {
	client *openai.Client
	logger *logrus.Logger
}

// NewOpenAIHandler creates a handler; baseURL may point at any compatible gateway
func NewOpenAIHandler(apiKey, baseURL string, logger *logrus.Logger) *OpenAIHandler {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIHandler{client: openai.NewClientWithConfig(cfg), logger: logger}
}

func (h *OpenAIHandler) Name() string { return "openai" }

func (h *OpenAIHandler) Query(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	creq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		creq.Temperature = float32(*req.Temperature)
	}

	resp, err := h.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, errors.Upstream("openai", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, errors.WrapCode(err, errors.CodeUpstream, "openai request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.WithCode(errors.CodeParse, "openai returned no choices")
	}

	h.logger.WithFields(logrus.Fields{
		"model":         resp.Model,
		"prompt_tokens": resp.Usage.PromptTokens,
		"output_tokens": resp.Usage.CompletionTokens,
	}).Debug("openai completion")

	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}, nil
}
