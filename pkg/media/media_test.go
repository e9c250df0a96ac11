package media

import (
	"context"
	stderrors "errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"VidFlow/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   [][]string
	outputs map[string][]byte // keyed by argv[0]
	errs    map[string]error
	// lists captures the concat list content while it still exists on disk
	lists []string
}

func (f *fakeRunner) Run(ctx context.Context, argv []string) ([]byte, error) {
	f.calls = append(f.calls, argv)
	for i, a := range argv {
		if a == "-f" && i+4 < len(argv) && argv[i+1] == "concat" {
			b, _ := os.ReadFile(argv[i+5])
			f.lists = append(f.lists, string(b))
		}
	}
	if err := f.errs[argv[0]]; err != nil {
		return nil, err
	}
	return f.outputs[argv[0]], nil
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
	return p
}

func newToolkit(t *testing.T, r Runner) *Toolkit {
	t.Helper()
	tk, err := New(Config{}, r)
	require.NoError(t, err)
	return tk
}

func TestLoopCount(t *testing.T) {
	n, err := LoopCount(12, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = LoopCount(10, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = LoopCount(0.5, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, bad := range [][2]float64{{0, 5}, {12, 0}, {-1, 5}, {math.Inf(1), 5}, {12, math.NaN()}} {
		_, err := LoopCount(bad[0], bad[1])
		assert.True(t, errors.HasCode(err, errors.CodePrecondition), "%v", bad)
	}
}

func TestNewParsesCommandLines(t *testing.T) {
	tk, err := New(Config{FFmpegBin: `docker run --rm -v "/srv/media:/srv/media" ffmpeg-img ffmpeg`}, &fakeRunner{})
	require.NoError(t, err)
	assert.Equal(t, []string{"docker", "run", "--rm", "-v", "/srv/media:/srv/media", "ffmpeg-img", "ffmpeg"}, tk.ffmpeg)
	assert.Equal(t, []string{"ffprobe"}, tk.ffprobe)

	_, err = New(Config{FFmpegBin: `ffmpeg "unterminated`}, nil)
	assert.Error(t, err)
}

func TestProbeDuration(t *testing.T) {
	r := &fakeRunner{outputs: map[string][]byte{"ffprobe": []byte("5.000000\n")}}
	tk := newToolkit(t, r)

	d, err := tk.ProbeDuration(context.Background(), "bg.mp4")
	require.NoError(t, err)
	assert.Equal(t, 5.0, d)
	assert.Equal(t, []string{"ffprobe", "-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", "bg.mp4"}, r.calls[0])

	r.outputs["ffprobe"] = []byte("N/A")
	_, err = tk.ProbeDuration(context.Background(), "bg.mp4")
	assert.True(t, errors.HasCode(err, errors.CodeParse))
}

func TestComposeBuildsEncoderCommand(t *testing.T) {
	dir := t.TempDir()
	bg := touch(t, dir, "bg.mp4")
	audio := touch(t, dir, "narration.mp3")
	out := filepath.Join(dir, "out", "video.mp4")

	r := &fakeRunner{outputs: map[string][]byte{"ffprobe": []byte("5")}}
	tk := newToolkit(t, r)

	res, err := tk.Compose(context.Background(), ComposeRequest{
		BackgroundPath: bg, AudioPath: audio, AudioDuration: 12, OutputPath: out,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.LoopCount)
	assert.Equal(t, 5.0, res.VideoDuration)
	require.Len(t, r.calls, 2)
	assert.Equal(t, []string{"ffmpeg",
		"-stream_loop", "-1",
		"-i", bg,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-shortest",
		"-pix_fmt", "yuv420p",
		"-y", out,
	}, r.calls[1])
}

func TestComposePreconditions(t *testing.T) {
	dir := t.TempDir()
	bg := touch(t, dir, "bg.mp4")
	audio := touch(t, dir, "narration.mp3")
	out := filepath.Join(dir, "video.mp4")

	cases := map[string]ComposeRequest{
		"missing background": {BackgroundPath: filepath.Join(dir, "nope.mp4"), AudioPath: audio, AudioDuration: 3, OutputPath: out},
		"missing audio":      {BackgroundPath: bg, AudioPath: filepath.Join(dir, "nope.mp3"), AudioDuration: 3, OutputPath: out},
		"zero duration":      {BackgroundPath: bg, AudioPath: audio, AudioDuration: 0, OutputPath: out},
		"infinite duration":  {BackgroundPath: bg, AudioPath: audio, AudioDuration: math.Inf(1), OutputPath: out},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			r := &fakeRunner{outputs: map[string][]byte{"ffprobe": []byte("5")}}
			_, err := newToolkit(t, r).Compose(context.Background(), req)
			assert.True(t, errors.HasCode(err, errors.CodePrecondition), "%v", err)
			assert.Empty(t, r.calls, "no subprocess before preconditions hold")
		})
	}

	t.Run("non-positive probe", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string][]byte{"ffprobe": []byte("0")}}
		_, err := newToolkit(t, r).Compose(context.Background(), ComposeRequest{
			BackgroundPath: bg, AudioPath: audio, AudioDuration: 3, OutputPath: out,
		})
		assert.True(t, errors.HasCode(err, errors.CodePrecondition))
		assert.Len(t, r.calls, 1)
	})
}

func TestComposeEncoderFailureRemovesOutput(t *testing.T) {
	dir := t.TempDir()
	bg := touch(t, dir, "bg.mp4")
	audio := touch(t, dir, "narration.mp3")
	out := touch(t, dir, "video.mp4")

	r := &fakeRunner{
		outputs: map[string][]byte{"ffprobe": []byte("5")},
		errs:    map[string]error{"ffmpeg": errors.WrapCode(stderrors.New("exit status 1"), errors.CodeProcess, "ffmpeg failed")},
	}
	_, err := newToolkit(t, r).Compose(context.Background(), ComposeRequest{
		BackgroundPath: bg, AudioPath: audio, AudioDuration: 12, OutputPath: out,
	})
	assert.True(t, errors.HasCode(err, errors.CodeProcess))
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConcat(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.mp3")
	b := touch(t, dir, "it's.mp3")
	c := touch(t, dir, "c.mp3")
	out := filepath.Join(dir, "merged.mp3")

	r := &fakeRunner{}
	require.NoError(t, newToolkit(t, r).Concat(context.Background(), []string{a, b, c}, out))

	require.Len(t, r.calls, 1)
	argv := r.calls[0]
	assert.Equal(t, []string{"ffmpeg", "-f", "concat", "-safe", "0", "-i"}, argv[:6])
	assert.Equal(t, []string{"-c", "copy", "-y", out}, argv[7:])

	require.Len(t, r.lists, 1)
	lines := strings.Split(strings.TrimSpace(r.lists[0]), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file '"+a+"'", lines[0])
	assert.Contains(t, lines[1], `it'\''s.mp3`)
	assert.Equal(t, "file '"+c+"'", lines[2])

	_, err := os.Stat(argv[6])
	assert.True(t, os.IsNotExist(err), "list file is removed")
}

func TestConcatListStaysOutOfOutputDir(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	a := touch(t, dir, "a.mp3")
	b := touch(t, dir, "b.mp3")
	public := filepath.Join(t.TempDir(), "temp_audio")
	out := filepath.Join(public, "merged.mp3")

	r := &fakeRunner{}
	tk, err := New(Config{WorkDir: work}, r)
	require.NoError(t, err)
	require.NoError(t, tk.Concat(context.Background(), []string{a, b}, out))

	require.Len(t, r.calls, 1)
	list := r.calls[0][6]
	assert.Equal(t, work, filepath.Dir(list))
	require.Len(t, r.lists, 1)
	assert.Contains(t, r.lists[0], "file '"+a+"'")

	entries, err := os.ReadDir(public)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConcatPreconditions(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.mp3")
	tk := newToolkit(t, &fakeRunner{})

	err := tk.Concat(context.Background(), []string{a}, filepath.Join(dir, "m.mp3"))
	assert.True(t, errors.HasCode(err, errors.CodePrecondition))

	err = tk.Concat(context.Background(), []string{a, filepath.Join(dir, "gone.mp3")}, filepath.Join(dir, "m.mp3"))
	assert.True(t, errors.HasCode(err, errors.CodePrecondition))
}
