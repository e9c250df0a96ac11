// Package media wraps the ffmpeg and ffprobe command line tools: duration probing,
// audio concatenation and looping a background clip under narration.
package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"VidFlow/pkg/errors"
	"VidFlow/pkg/logger"
	"VidFlow/pkg/util"

	"go.uber.org/zap"
)

type Config struct {
	FFmpegBin  string
	FFprobeBin string
	// WorkDir holds scratch files such as concat lists. Empty means os.TempDir().
	WorkDir string
}

// Merger concatenates audio files in order into one output file.
type Merger interface {
	Concat(ctx context.Context, inputs []string, output string) error
}

// Toolkit runs ffmpeg/ffprobe through a Runner.
type Toolkit struct {
	ffmpeg  []string
	ffprobe []string
	workDir string
	runner  Runner
}

func New(cfg Config, runner Runner) (*Toolkit, error) {
	ffmpeg, err := parseCommand(cfg.FFmpegBin, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobe, err := parseCommand(cfg.FFprobeBin, "ffprobe")
	if err != nil {
		return nil, err
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Toolkit{ffmpeg: ffmpeg, ffprobe: ffprobe, workDir: cfg.WorkDir, runner: runner}, nil
}

func (t *Toolkit) ffmpegArgs(args ...string) []string {
	return append(append([]string{}, t.ffmpeg...), args...)
}

func (t *Toolkit) ffprobeArgs(args ...string) []string {
	return append(append([]string{}, t.ffprobe...), args...)
}

// ProbeDuration returns the container duration of path in seconds.
func (t *Toolkit) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := t.runner.Run(ctx, t.ffprobeArgs(
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	))
	if err != nil {
		return 0, errors.Wrapf(err, "probe duration of %s", path)
	}
	raw := strings.TrimSpace(string(out))
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.WrapCode(err, errors.CodeParse, "could not parse duration from ffprobe output").
			WithContext("output", raw)
	}
	return d, nil
}

// Concat joins inputs with the concat demuxer. Streams are copied, so all inputs must
// share one codec, which holds for the mp3 chunks produced by the synthesizer.
func (t *Toolkit) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) < 2 {
		return errors.Precondition("concat needs at least two inputs, got %d", len(inputs))
	}
	for _, in := range inputs {
		if !util.FileExists(in) {
			return errors.Precondition("audio file not found: %s", in)
		}
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}

	// 列表文件不放在输出目录，输出目录可能被静态路由公开
	list, err := os.CreateTemp(t.workDir, "concat-*.txt")
	if err != nil {
		return errors.Wrap(err, "create concat list")
	}
	defer os.Remove(list.Name())

	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			list.Close()
			return errors.Wrap(err, "resolve input path")
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if _, err := list.WriteString(b.String()); err != nil {
		list.Close()
		return errors.Wrap(err, "write concat list")
	}
	if err := list.Close(); err != nil {
		return errors.Wrap(err, "close concat list")
	}

	start := time.Now()
	_, err = t.runner.Run(ctx, t.ffmpegArgs(
		"-f", "concat",
		"-safe", "0",
		"-i", list.Name(),
		"-c", "copy",
		"-y", output,
	))
	if err != nil {
		_ = os.Remove(output)
		return errors.Wrapf(err, "merge %d audio files", len(inputs))
	}
	logger.Debug("audio merged",
		zap.Int("inputs", len(inputs)),
		zap.String("output", output),
		zap.Duration("took", time.Since(start)))
	return nil
}

// LoopCount is the number of background iterations needed to cover the narration.
// Both durations must be positive and finite.
func LoopCount(audioSeconds, videoSeconds float64) (int, error) {
	if !validDuration(audioSeconds) {
		return 0, errors.Precondition("invalid audio duration: %v", audioSeconds)
	}
	if !validDuration(videoSeconds) {
		return 0, errors.Precondition("invalid video duration: %v", videoSeconds)
	}
	n := math.Ceil(audioSeconds / videoSeconds)
	if math.IsInf(n, 0) || math.IsNaN(n) || n > math.MaxInt32 {
		return 0, errors.Precondition("invalid loop count: %v / %v", audioSeconds, videoSeconds)
	}
	return int(n), nil
}

func validDuration(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}
