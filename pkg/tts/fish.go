// Package tts talks to the Fish Audio speech synthesis API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"VidFlow/pkg/errors"
	"VidFlow/pkg/logger"
	stores "VidFlow/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultEndpoint = "https://api.fish.audio/v1/tts"

// Speech is one synthesized audio file.
type Speech struct {
	Path   string `json:"filePath"` // server-side path for the media tools
	URL    string `json:"publicUrl"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

// Synthesizer turns text into a stored audio file using the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, text string) (*Speech, error)
}

type Config struct {
	APIKey   string
	Endpoint string
	Latency  string // normal | balanced
	Timeout  time.Duration
}

type FishClient struct {
	cfg       Config
	http      *http.Client
	artifacts *stores.Artifacts
	now       func() time.Time
}

func NewFishClient(cfg Config, artifacts *stores.Artifacts) *FishClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Latency == "" {
		cfg.Latency = "normal"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &FishClient{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		artifacts: artifacts,
		now:       time.Now,
	}
}

type fishRequest struct {
	ReferenceID string `json:"reference_id"`
	Text        string `json:"text"`
	Format      string `json:"format"`
	Latency     string `json:"latency"`
}

type fishError struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (c *FishClient) Synthesize(ctx context.Context, voiceID, text string) (*Speech, error) {
	if c.cfg.APIKey == "" {
		return nil, errors.ConfigMissing("FISH_AUDIO_API_KEY")
	}
	if voiceID == "" {
		return nil, errors.Precondition("voice id is empty")
	}

	body, err := json.Marshal(fishRequest{
		ReferenceID: voiceID,
		Text:        text,
		Format:      "mp3",
		Latency:     c.cfg.Latency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeUpstream, "fish audio request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return nil, errors.WrapCode(err, errors.CodeUpstream, "read fish audio error body")
		}
		var fe fishError
		_ = json.Unmarshal(raw, &fe)
		msg := fe.Message
		if msg == "" {
			msg = fe.Detail
		}
		return nil, errors.Upstream("fish audio", resp.StatusCode, msg)
	}

	name := fmt.Sprintf("audio-%d-%s.mp3", c.now().UnixMilli(), uuid.NewString()[:8])
	art, err := c.artifacts.Save(ctx, name, resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "save synthesized audio")
	}
	logger.Debug("speech synthesized",
		zap.String("voice", voiceID),
		zap.Int("chars", len(text)),
		zap.Int64("bytes", art.Size),
		zap.Duration("took", time.Since(start)))

	return &Speech{Path: art.Path, URL: art.URL, Format: "mp3", Size: art.Size}, nil
}
