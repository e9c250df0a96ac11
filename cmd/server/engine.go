package main

import (
	"net/http"

	handlers "VidFlow/internal/handler"
	"VidFlow/pkg/config"
	"VidFlow/pkg/metrics"
	"VidFlow/pkg/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const sessionName = "vidflow"

func newEngine(cfg *config.Config, db *gorm.DB, m *metrics.Metrics, deps handlers.Deps) *gin.Engine {
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.AccessLog(), metrics.GinMiddleware(m))

	store := cookie.NewStore(sessionSecret(cfg))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionExpireDays * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.Mode == "production",
		SameSite: http.SameSiteLaxMode,
	})
	engine.Use(sessions.Sessions(sessionName, store))

	// 生成的音频和视频直接由本服务提供
	engine.Static(cfg.Media.AudioURLPrefix, cfg.Media.AudioDir)
	engine.Static("/videos", cfg.Media.VideoDir)
	if cfg.MonitorPrefix != "" {
		engine.GET(cfg.MonitorPrefix, gin.WrapH(promhttp.Handler()))
	}

	handlers.NewHandlers(db, cfg, deps).Register(engine)
	return engine
}
