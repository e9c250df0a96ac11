package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"VidFlow/pkg/errors"
	"VidFlow/pkg/llm"
	"VidFlow/pkg/media"
	"VidFlow/pkg/response"
	"VidFlow/pkg/youtube"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) handlePreview(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		response.Fail(c, "missing url", nil)
		return
	}
	if h.deps.Previewer == nil {
		h.unavailable(c, "preview", "YOUTUBE_OEMBED_URL")
		return
	}
	p, err := h.deps.Previewer.Preview(c.Request.Context(), url)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, "preview", p)
}

// handleTranscripts 并发拉取，单个失败不影响其他链接
func (h *Handlers) handleTranscripts(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		response.Fail(c, "missing urls", nil)
		return
	}
	if h.deps.Transcripts == nil {
		h.unavailable(c, "transcript", "TRANSCRIPT_API_KEY")
		return
	}
	response.Success(c, "transcripts", h.deps.Transcripts.FetchAll(c.Request.Context(), req.URLs))
}

func (h *Handlers) handleWriteScript(c *gin.Context) {
	var req llm.ScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}
	if strings.TrimSpace(req.Idea) == "" {
		response.Fail(c, "Missing video idea", nil)
		return
	}
	if len(req.References) == 0 {
		response.Fail(c, "At least one inspiration script is required", nil)
		return
	}
	if h.deps.Scripts == nil {
		h.unavailable(c, "llm", "ANTHROPIC_API_KEY")
		return
	}
	script, err := h.deps.Scripts.Write(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, "script generated", script)
}

func (h *Handlers) handleGenerateMetadata(c *gin.Context) {
	var req struct {
		Script string `json:"script"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Script) == "" {
		response.Fail(c, "Missing script", nil)
		return
	}
	if h.deps.Metadata == nil {
		h.unavailable(c, "llm", "ANTHROPIC_API_KEY")
		return
	}
	meta, err := h.deps.Metadata.Generate(c.Request.Context(), req.Script)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, "metadata generated", meta)
}

func (h *Handlers) handleSynthesize(c *gin.Context) {
	var req struct {
		Text    string `json:"text"`
		VoiceID string `json:"voiceId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}
	if strings.TrimSpace(req.Text) == "" || strings.TrimSpace(req.VoiceID) == "" {
		response.Fail(c, "Missing text or voiceId", nil)
		return
	}
	if h.deps.Synth == nil {
		h.unavailable(c, "tts", "FISH_AUDIO_API_KEY")
		return
	}
	sp, err := h.deps.Synth.Synthesize(c.Request.Context(), strings.TrimSpace(req.VoiceID), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, "speech generated", sp)
}

type composeRequest struct {
	BackgroundPath string  `json:"backgroundVideoPath"`
	AudioPath      string  `json:"audioPath"`
	AudioDuration  float64 `json:"audioDuration"`
	OutputFilename string  `json:"outputFilename"`
}

type composeResponse struct {
	*media.ComposeResult
	URL string `json:"publicUrl,omitempty"`
}

func (h *Handlers) handleComposeVideo(c *gin.Context) {
	var req composeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}
	if req.BackgroundPath == "" || req.AudioPath == "" {
		response.Fail(c, "Missing backgroundVideoPath or audioPath", nil)
		return
	}
	if h.deps.Composer == nil || h.deps.Videos == nil {
		h.unavailable(c, "media", "FFMPEG_BIN")
		return
	}

	bg, err := h.resolveMediaPath("backgroundVideoPath", req.BackgroundPath)
	if err != nil {
		h.fail(c, err)
		return
	}
	audio, err := h.resolveMediaPath("audioPath", req.AudioPath)
	if err != nil {
		h.fail(c, err)
		return
	}
	req.BackgroundPath, req.AudioPath = bg, audio

	ctx := c.Request.Context()
	if req.AudioDuration == 0 {
		d, err := h.deps.Composer.ProbeDuration(ctx, req.AudioPath)
		if err != nil {
			h.fail(c, errors.Wrap(err, "probe narration"))
			return
		}
		req.AudioDuration = d
	}

	name := filepath.Base(req.OutputFilename)
	if req.OutputFilename == "" || name == "." || name == "/" {
		name = fmt.Sprintf("video-%d.mp4", time.Now().UnixMilli())
	}
	res, err := h.deps.Composer.Compose(ctx, media.ComposeRequest{
		BackgroundPath: req.BackgroundPath,
		AudioPath:      req.AudioPath,
		AudioDuration:  req.AudioDuration,
		OutputPath:     h.deps.Videos.Path(name),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	art, err := h.deps.Videos.Publish(ctx, name)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, "video created", composeResponse{ComposeResult: res, URL: art.URL})
}

func (h *Handlers) handlePublish(c *gin.Context) {
	var req youtube.Upload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Missing videoPath or title", nil)
		return
	}
	if h.deps.Publisher == nil {
		h.unavailable(c, "youtube", "YOUTUBE_REFRESH_TOKEN")
		return
	}
	video, err := h.resolveMediaPath("videoPath", req.VideoPath)
	if err != nil {
		h.fail(c, err)
		return
	}
	req.VideoPath = video
	if req.ThumbnailPath != "" {
		thumb, err := h.resolveMediaPath("thumbnailPath", req.ThumbnailPath)
		if err != nil {
			h.fail(c, err)
			return
		}
		req.ThumbnailPath = thumb
	}
	res, err := h.deps.Publisher.Publish(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, "video uploaded", res)
}
