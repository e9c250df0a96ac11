package media

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"VidFlow/pkg/errors"
	"VidFlow/pkg/logger"
	"VidFlow/pkg/util"

	"go.uber.org/zap"
)

type ComposeRequest struct {
	BackgroundPath string
	AudioPath      string
	AudioDuration  float64 // seconds
	OutputPath     string
}

type ComposeResult struct {
	OutputPath    string  `json:"filePath"`
	VideoDuration float64 `json:"videoDuration"`
	AudioDuration float64 `json:"duration"`
	LoopCount     int     `json:"loopCount"`
	Size          int64   `json:"size"`
}

// Compose loops the background clip for as long as the narration lasts and muxes the
// narration in as the only audio track.
func (t *Toolkit) Compose(ctx context.Context, req ComposeRequest) (*ComposeResult, error) {
	if req.BackgroundPath == "" || !util.FileExists(req.BackgroundPath) {
		return nil, errors.Precondition("background video not found at: %s", req.BackgroundPath)
	}
	if req.AudioPath == "" || !util.FileExists(req.AudioPath) {
		return nil, errors.Precondition("audio file not found at: %s", req.AudioPath)
	}
	if !validDuration(req.AudioDuration) {
		return nil, errors.Precondition("invalid audio duration: %v", req.AudioDuration)
	}
	if req.OutputPath == "" {
		return nil, errors.Precondition("output path is empty")
	}

	videoDuration, err := t.ProbeDuration(ctx, req.BackgroundPath)
	if err != nil {
		return nil, err
	}
	loops, err := LoopCount(req.AudioDuration, videoDuration)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "create output dir")
	}

	logger.Info("composing video",
		zap.String("background", req.BackgroundPath),
		zap.Float64("audio_duration", req.AudioDuration),
		zap.Float64("video_duration", videoDuration),
		zap.Int("loops", loops))

	start := time.Now()
	_, err = t.runner.Run(ctx, t.ffmpegArgs(
		"-stream_loop", "-1",
		"-i", req.BackgroundPath,
		"-i", req.AudioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-shortest",
		"-pix_fmt", "yuv420p",
		"-y", req.OutputPath,
	))
	if err != nil {
		_ = os.Remove(req.OutputPath)
		return nil, errors.Wrap(err, "encode video")
	}

	res := &ComposeResult{
		OutputPath:    req.OutputPath,
		VideoDuration: videoDuration,
		AudioDuration: req.AudioDuration,
		LoopCount:     loops,
	}
	if st, err := os.Stat(req.OutputPath); err == nil {
		res.Size = st.Size()
	}
	logger.Info("video composed", zap.String("output", req.OutputPath), zap.Duration("took", time.Since(start)))
	return res, nil
}
