package llm

import (
	"context"
	"strings"

	"VidFlow/pkg/errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
)

const (
	DefaultAnthropicScriptModel   = "claude-sonnet-4-20250514"
	DefaultAnthropicMetadataModel = "claude-3-haiku-20240307"
)

// AnthropicHandler implements the LLM interface on the Messages API
type AnthropicHandler struct {
	client anthropic.Client
	logger *logrus.Logger
}

func NewAnthropicHandler(apiKey, baseURL string, logger *logrus.Logger) *AnthropicHandler {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicHandler{client: anthropic.NewClient(opts...), logger: logger}
}

func (h *AnthropicHandler) Name() string { return "anthropic" }

func (h *AnthropicHandler) Query(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	message, err := h.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, errors.Upstream("anthropic", apiErr.StatusCode, apiErr.Error())
		}
		return nil, errors.WrapCode(err, errors.CodeUpstream, "anthropic request failed")
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.WithCode(errors.CodeParse, "unexpected response format from anthropic: no text block")
	}

	h.logger.WithFields(logrus.Fields{
		"model":         string(message.Model),
		"input_tokens":  message.Usage.InputTokens,
		"output_tokens": message.Usage.OutputTokens,
		"stop_reason":   string(message.StopReason),
	}).Debug("anthropic message")

	return &Response{
		Text:  text.String(),
		Model: string(message.Model),
		Usage: Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
	}, nil
}
