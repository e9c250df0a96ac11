package handlers

import (
	"VidFlow/internal/models"
	"VidFlow/pkg/config"
	"VidFlow/pkg/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) Register(engine *gin.Engine) {
	h.registerAuthRoutes(engine.Group(h.cfg.AuthPrefix))

	r := engine.Group(h.cfg.APIPrefix)
	// Register Global Singleton DB
	r.Use(models.InjectDB(h.db))
	if h.deps.RateLimit != nil {
		r.Use(h.deps.RateLimit)
	}
	// Register System Module Routes
	h.registerSystemRoutes(r)

	// Register Business Module Routes
	authed := r.Group("", models.AuthRequired())
	h.registerTaskRoutes(authed)
	h.registerLibraryRoutes(authed)
	h.registerYouTubeRoutes(authed)
	h.registerStudioRoutes(authed)
	authed.POST("/uploads", h.handleUpload)
}

// User Module
func (h *Handlers) registerAuthRoutes(r *gin.RouterGroup) {
	r.Use(models.InjectDB(h.db))

	r.GET("/login", h.handleLogin)

	r.GET("/callback", h.handleAuthCallback)

	r.GET("/logout", models.AuthRequired(), h.handleLogout)

	r.GET("/info", models.AuthRequired(), h.handleUserInfo)
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	system := r.Group("system")
	{
		system.GET("/health", h.HealthCheck)
	}
}

func (h *Handlers) registerTaskRoutes(r *gin.RouterGroup) {
	tasks := r.Group("tts/tasks")
	{
		idem := middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{Store: h.deps.IdemStore})
		tasks.POST("", idem, h.handleCreateTask)

		tasks.GET("", h.handleListTasks)

		tasks.GET("/search", h.handleSearchTasks)

		tasks.GET("/:id", h.handleGetTask)

		tasks.GET("/:id/events", h.handleTaskEvents)
	}
}

func (h *Handlers) registerLibraryRoutes(r *gin.RouterGroup) {
	voices := r.Group("voices")
	{
		voices.GET("", h.handleListVoices)

		voices.POST("", h.handleCreateVoice)

		voices.DELETE("/:id", h.handleDeleteVoice)
	}

	presets := r.Group("presets")
	{
		presets.GET("", h.handleListPresets)

		presets.POST("", h.handleCreatePreset)
	}
}

func (h *Handlers) registerYouTubeRoutes(r *gin.RouterGroup) {
	yt := r.Group("youtube")
	{
		yt.GET("/preview", h.handlePreview)

		yt.POST("/transcripts", h.handleTranscripts)
	}
}

func (h *Handlers) registerStudioRoutes(r *gin.RouterGroup) {
	studio := r.Group("studio")
	{
		studio.POST("/script", h.handleWriteScript)

		studio.POST("/metadata", h.handleGenerateMetadata)

		studio.POST("/speech", h.handleSynthesize)

		studio.POST("/video", h.handleComposeVideo)

		studio.POST("/publish", h.handlePublish)
	}
}

// prefixes 未配置时回退到默认值
func routePrefixes(cfg *config.Config) *config.Config {
	out := *cfg
	if out.APIPrefix == "" {
		out.APIPrefix = "/api"
	}
	if out.AuthPrefix == "" {
		out.AuthPrefix = "/auth"
	}
	return &out
}
