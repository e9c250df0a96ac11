package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"VidFlow/pkg/errors"
)

// DecodeStrategy names the step of DecodeMetadata that produced the result.
type DecodeStrategy string

const (
	StrategyStrict  DecodeStrategy = "strict"
	StrategyPattern DecodeStrategy = "pattern"
)

var (
	fencePattern       = regexp.MustCompile("```json\\n?|```")
	titlePattern       = regexp.MustCompile(`"title"\s*:\s*"([\s\S]*?)"\s*,`)
	descriptionPattern = regexp.MustCompile(`"description"\s*:\s*"([\s\S]*?)"\s*}`)
	jsonEscapes        = strings.NewReplacer(`\\`, `\`, `\"`, `"`, `\n`, "\n", `\t`, "\t", `\r`, "\r", `\/`, "/")
)

// Metadata is a video title and description produced by an LLM.
type Metadata struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Strategy    DecodeStrategy `json:"strategy"`
	Usage       Usage          `json:"usage"`
}

// DecodeMetadata reads {"title": ..., "description": ...} out of free-form model
// output. Markdown fences and text around the outermost braces are ignored. When the
// object is not valid JSON (typically raw newlines inside the description) both fields
// are pulled out with patterns. The error carries the raw text when both fail.
func DecodeMetadata(raw string) (Metadata, error) {
	text := fencePattern.ReplaceAllString(raw, "")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		text = text[start : end+1]
	}

	var strict struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(text), &strict); err == nil && strict.Title != "" {
		return Metadata{Title: strict.Title, Description: strict.Description, Strategy: StrategyStrict}, nil
	}

	tm := titlePattern.FindStringSubmatch(text)
	dm := descriptionPattern.FindStringSubmatch(text)
	if tm != nil && dm != nil {
		return Metadata{
			Title:       jsonEscapes.Replace(tm[1]),
			Description: jsonEscapes.Replace(dm[1]),
			Strategy:    StrategyPattern,
		}, nil
	}

	return Metadata{}, errors.WithCode(errors.CodeParse, "failed to parse metadata JSON from model response").
		WithContext("raw", raw)
}
