package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"VidFlow/pkg/errors"

	"github.com/sirupsen/logrus"
)

const (
	WordsPerMinute       = 150
	referenceScriptLimit = 2000
	defaultTone          = "Casual"
	defaultComplexity    = 5
)

// Reference is the transcript of a video used for style inspiration.
type Reference struct {
	Title  string `json:"title"`
	Script string `json:"script"`
}

type ScriptRequest struct {
	Idea       string      `json:"idea"`
	Minutes    float64     `json:"lengthInMinutes"`
	Tone       string      `json:"tone"`
	Complexity int         `json:"complexity"`
	References []Reference `json:"inspirationScripts"`
}

type Script struct {
	Text  string `json:"script"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// BuildScriptPrompt renders the script-writing prompt. The inspiration section only
// appears when there is at least one reference; each reference script is cut to 2000
// characters.
func BuildScriptPrompt(req ScriptRequest) string {
	tone := req.Tone
	if tone == "" {
		tone = defaultTone
	}
	complexity := req.Complexity
	if complexity == 0 {
		complexity = defaultComplexity
	}
	minutes := strconv.FormatFloat(req.Minutes, 'f', -1, 64)
	words := strconv.FormatFloat(req.Minutes*WordsPerMinute, 'f', -1, 64)

	var inspiration string
	if len(req.References) > 0 {
		blocks := make([]string, len(req.References))
		for i, ref := range req.References {
			blocks[i] = fmt.Sprintf("Reference Video %d: %q\n%s...", i+1, ref.Title, truncateRunes(ref.Script, referenceScriptLimit))
		}
		inspiration = "\n\nHere are some reference video transcripts for inspiration on style and structure:\n\n" +
			strings.Join(blocks, "\n\n")
	}

	var b strings.Builder
	b.WriteString("You are a professional video script writer. Create a compelling video script based on the following requirements:\n\n")
	fmt.Fprintf(&b, "**Video Idea:** %s\n\n", req.Idea)
	fmt.Fprintf(&b, "**Target Duration:** %s minute(s) of reading time (approximately %s words)\n\n", minutes, words)
	fmt.Fprintf(&b, "**Tone:** %s\n\n", tone)
	fmt.Fprintf(&b, "**Complexity Level:** %d/10\n", complexity)
	b.WriteString(inspiration)
	b.WriteString(`

CRITICAL REQUIREMENT: Output ONLY raw text that will be read aloud by a Text-to-Speech system.
- NO markdown formatting (no bold, italics, headers)
- NO section labels or titles
- NO stage directions or speaker notes
- NO brackets or parentheticals
- ONLY the exact words that should be spoken out loud

Write a complete, engaging video script that:
1. Has a strong hook in the first 5 seconds
2. Maintains viewer engagement throughout
3. Has natural, conversational language
4. Ends with a clear call-to-action
5. Matches the specified tone and complexity level
6. Takes inspiration from the reference videos (if provided) for style and pacing

Output the script as continuous spoken text with natural pauses indicated by punctuation only.`)
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ScriptWriter drafts narration scripts.
type ScriptWriter struct {
	llm    LLM
	model  string
	logger *logrus.Logger
}

func NewScriptWriter(l LLM, model string, logger *logrus.Logger) *ScriptWriter {
	if logger == nil {
		logger = logrus.New()
	}
	return &ScriptWriter{llm: l, model: model, logger: logger}
}

func (w *ScriptWriter) Write(ctx context.Context, req ScriptRequest) (*Script, error) {
	if strings.TrimSpace(req.Idea) == "" {
		return nil, errors.Precondition("video idea is empty")
	}
	if req.Minutes <= 0 {
		return nil, errors.Precondition("target length must be positive, got %v", req.Minutes)
	}
	if req.Complexity < 0 || req.Complexity > 10 {
		return nil, errors.Precondition("complexity must be within 1..10, got %d", req.Complexity)
	}

	resp, err := w.llm.Query(ctx, Request{
		Model:     w.model,
		Prompt:    BuildScriptPrompt(req),
		MaxTokens: 4096,
	})
	if err != nil {
		return nil, errors.Wrap(err, "generate script")
	}
	w.logger.WithFields(logrus.Fields{
		"provider":   w.llm.Name(),
		"references": len(req.References),
		"words":      len(strings.Fields(resp.Text)),
	}).Info("script generated")
	return &Script{Text: strings.TrimSpace(resp.Text), Model: resp.Model, Usage: resp.Usage}, nil
}
