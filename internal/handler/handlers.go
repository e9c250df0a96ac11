package handlers

import (
	"context"

	"VidFlow/pkg/config"
	"VidFlow/pkg/errors"
	"VidFlow/pkg/llm"
	"VidFlow/pkg/logger"
	"VidFlow/pkg/media"
	"VidFlow/pkg/middleware"
	"VidFlow/pkg/queue"
	"VidFlow/pkg/response"
	"VidFlow/pkg/search"
	"VidFlow/pkg/sse"
	stores "VidFlow/pkg/storage"
	"VidFlow/pkg/transcript"
	"VidFlow/pkg/tts"
	"VidFlow/pkg/youtube"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ScriptWriter interface {
	Write(ctx context.Context, req llm.ScriptRequest) (*llm.Script, error)
}

type MetadataGenerator interface {
	Generate(ctx context.Context, script string) (*llm.Metadata, error)
}

type VideoComposer interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	Compose(ctx context.Context, req media.ComposeRequest) (*media.ComposeResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, up youtube.Upload) (*youtube.Result, error)
}

type Previewer interface {
	Preview(ctx context.Context, videoURL string) (*transcript.Preview, error)
}

type TranscriptFetcher interface {
	FetchAll(ctx context.Context, urls []string) []transcript.Result
}

// Deps are the collaborators behind the routes. A nil service answers with the error
// recorded in Unavailable under its name ("llm", "youtube", "auth"), or a generic
// configuration error.
type Deps struct {
	Queue       queue.Queue
	Hub         *sse.Hub
	Index       *search.TaskIndex
	Synth       tts.Synthesizer
	Scripts     ScriptWriter
	Metadata    MetadataGenerator
	Composer    VideoComposer
	Audio       *stores.Artifacts
	Videos      *stores.Artifacts
	Publisher   Publisher
	Previewer   Previewer
	Transcripts TranscriptFetcher
	Identity    IdentityProvider
	IdemStore   middleware.IdemStore
	RateLimit   gin.HandlerFunc
	UploadDir   string
	DiskPath    string
	Unavailable map[string]error
}

type Handlers struct {
	db   *gorm.DB
	cfg  *config.Config
	deps Deps
}

func NewHandlers(db *gorm.DB, cfg *config.Config, deps Deps) *Handlers {
	if deps.UploadDir == "" {
		deps.UploadDir = "temp/uploads"
	}
	if deps.DiskPath == "" {
		deps.DiskPath = "/"
	}
	return &Handlers{
		db:   db,
		cfg:  routePrefixes(cfg),
		deps: deps,
	}
}

// fail 按错误码映射 HTTP 状态，5xx 记录日志
func (h *Handlers) fail(c *gin.Context, err error) {
	if errors.HTTPStatus(err) >= 500 {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("code", errors.GetCode(err)),
			zap.Error(err))
	}
	response.Error(c, err)
}

func (h *Handlers) unavailable(c *gin.Context, service, setting string) {
	if err, ok := h.deps.Unavailable[service]; ok && err != nil {
		h.fail(c, err)
		return
	}
	h.fail(c, errors.ConfigMissing(setting))
}
