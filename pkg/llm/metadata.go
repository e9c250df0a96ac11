package llm

import (
	"context"
	"strings"

	"VidFlow/pkg/errors"

	"github.com/sirupsen/logrus"
)

const metadataSystemPrompt = "You are an expert YouTube content creator. Your task is to generate a catchy, " +
	"SEO-optimized title and a detailed description for a video based on the provided script. " +
	"The output should be JSON formatted with 'title' and 'description' keys. " +
	"IMPORTANT: The output must be valid JSON. Escape all newlines within value strings as \\n."

// MetadataGenerator asks an LLM for a title and description of a script.
type MetadataGenerator struct {
	llm    LLM
	model  string
	logger *logrus.Logger
	// OnDecode is told which decode strategy succeeded, or "failed".
	OnDecode func(strategy string)
}

func NewMetadataGenerator(l LLM, model string, logger *logrus.Logger) *MetadataGenerator {
	if logger == nil {
		logger = logrus.New()
	}
	return &MetadataGenerator{llm: l, model: model, logger: logger}
}

func (g *MetadataGenerator) Generate(ctx context.Context, script string) (*Metadata, error) {
	if strings.TrimSpace(script) == "" {
		return nil, errors.Precondition("script is empty")
	}
	temperature := 0.7
	resp, err := g.llm.Query(ctx, Request{
		Model:       g.model,
		System:      metadataSystemPrompt,
		Prompt:      "Please generate a YouTube title and description for this video script:\n\n" + script + "\n\nReturn ONLY valid JSON.",
		MaxTokens:   1000,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, errors.Wrap(err, "generate metadata")
	}

	md, err := DecodeMetadata(resp.Text)
	if err != nil {
		g.observe("failed")
		g.logger.WithField("raw", resp.Text).Warn("metadata response could not be decoded")
		return nil, err
	}
	g.observe(string(md.Strategy))
	if md.Strategy != StrategyStrict {
		g.logger.WithField("strategy", md.Strategy).Info("metadata decoded with fallback")
	}
	md.Usage = resp.Usage
	return &md, nil
}

func (g *MetadataGenerator) observe(strategy string) {
	if g.OnDecode != nil {
		g.OnDecode(strategy)
	}
}
