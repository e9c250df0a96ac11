package llm

import (
	"context"
	"strings"

	"VidFlow/pkg/errors"

	"github.com/sirupsen/logrus"
)

// Request is a single-turn completion request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// LLM represents a generic interface for interacting with LLMs
type LLM interface {
	// Query sends one prompt and returns the concatenated text of the reply
	Query(ctx context.Context, req Request) (*Response, error)
	// Name identifies the provider in logs and metrics
	Name() string
}

type Config struct {
	Provider        string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	BaseURL         string
	ScriptModel     string
	MetadataModel   string
}

// Models returns the script and metadata models for the configured provider, falling
// back to provider defaults.
func (c Config) Models() (script, metadata string) {
	script, metadata = c.ScriptModel, c.MetadataModel
	defScript, defMeta := DefaultAnthropicScriptModel, DefaultAnthropicMetadataModel
	if strings.EqualFold(c.Provider, "openai") {
		defScript, defMeta = DefaultOpenAIScriptModel, DefaultOpenAIMetadataModel
	}
	if script == "" {
		script = defScript
	}
	if metadata == "" {
		metadata = defMeta
	}
	return script, metadata
}

// New builds the provider selected by cfg.Provider. Missing credentials fail here,
// before any request is sent.
func New(cfg Config, logger *logrus.Logger) (LLM, error) {
	if logger == nil {
		logger = logrus.New()
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.ConfigMissing("ANTHROPIC_API_KEY")
		}
		return NewAnthropicHandler(cfg.AnthropicAPIKey, cfg.BaseURL, logger), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.ConfigMissing("LLM_API_KEY")
		}
		return NewOpenAIHandler(cfg.OpenAIAPIKey, cfg.BaseURL, logger), nil
	default:
		return nil, errors.Precondition("unsupported llm provider: %s", cfg.Provider)
	}
}
