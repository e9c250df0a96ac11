package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	handlers "VidFlow/internal/handler"
	"VidFlow/internal/listeners"
	"VidFlow/internal/models"
	"VidFlow/internal/worker"
	"VidFlow/pkg/cache"
	"VidFlow/pkg/config"
	"VidFlow/pkg/llm"
	"VidFlow/pkg/logger"
	"VidFlow/pkg/media"
	"VidFlow/pkg/metrics"
	"VidFlow/pkg/middleware"
	"VidFlow/pkg/queue"
	"VidFlow/pkg/scheduler"
	"VidFlow/pkg/search"
	"VidFlow/pkg/sse"
	stores "VidFlow/pkg/storage"
	"VidFlow/pkg/transcript"
	"VidFlow/pkg/tts"
	"VidFlow/pkg/util"
	"VidFlow/pkg/youtube"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

var version = "0.1.0-dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	// 1. 数据库
	db, err := util.InitDatabase(os.Stdout, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := models.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	if err := metrics.InstrumentGorm(db, m); err != nil {
		return fmt.Errorf("instrument gorm: %w", err)
	}

	// 2. Redis（队列、限流、幂等或缓存任一需要时才连接）
	var rdb *redis.Client
	if needsRedis(cfg) {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		defer rdb.Close()
	}

	q, err := queue.New(ctx, queue.Config{
		Driver:   cfg.Queue.Driver,
		Name:     cfg.Queue.Name,
		NATSURL:  cfg.Queue.NATSURL,
		Capacity: cfg.Queue.Capacity,
	}, rdb)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer q.Close()

	c, err := cache.NewCache(cache.Config{
		Type:  cfg.Cache.Type,
		Redis: cache.RedisConfig{Addr: cfg.Cache.RedisAddr, Password: cfg.Cache.RedisPassword, DB: cfg.Cache.RedisDB},
		Local: cache.LocalConfig{MaxSize: cfg.Cache.LocalMaxSize},
	})
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer c.Close()

	// 3. 产物存储
	mirror, err := stores.NewStoreFromEnv(cfg.Storage.Driver)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	audio, err := stores.NewArtifacts(cfg.Media.AudioDir, cfg.Media.AudioURLPrefix, mirror, "audio/")
	if err != nil {
		return err
	}
	videos, err := stores.NewArtifacts(cfg.Media.VideoDir, "/videos", mirror, "video/")
	if err != nil {
		return err
	}

	// 4. 外部服务
	toolkit, err := media.New(media.Config{
		FFmpegBin:  cfg.Media.FFmpegBin,
		FFprobeBin: cfg.Media.FFprobeBin,
		WorkDir:    cfg.Media.WorkDir,
	}, nil)
	if err != nil {
		return fmt.Errorf("media toolkit: %w", err)
	}
	fish := tts.NewFishClient(tts.Config{
		APIKey:   cfg.TTS.APIKey,
		Endpoint: cfg.TTS.Endpoint,
		Latency:  cfg.TTS.Latency,
		Timeout:  cfg.HTTPTimeout,
	}, audio)
	if cfg.TTS.APIKey == "" {
		logger.Warn("FISH_AUDIO_API_KEY is not set, speech synthesis will fail")
	}

	unavailable := map[string]error{}
	deps := handlers.Deps{
		Queue:     q,
		Synth:     fish,
		Composer:  toolkit,
		Audio:     audio,
		Videos:    videos,
		UploadDir: cfg.Media.UploadDir,
		DiskPath:  cfg.Media.AudioDir,
		Previewer: transcript.NewPreviewer(cfg.Transcript.OEmbedURL, cfg.HTTPTimeout),
		Transcripts: transcript.NewClient(transcript.Config{
			APIKey:   cfg.Transcript.APIKey,
			Endpoint: cfg.Transcript.Endpoint,
			CacheTTL: cfg.Transcript.CacheTTL,
			Timeout:  cfg.HTTPTimeout,
		}, c),
		Unavailable: unavailable,
	}

	llmLogger := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		llmLogger.SetLevel(lvl)
	}
	llmCfg := llm.Config{
		Provider:        cfg.LLM.Provider,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.LLM.OpenAIAPIKey,
		BaseURL:         cfg.LLM.BaseURL,
		ScriptModel:     cfg.LLM.ScriptModel,
		MetadataModel:   cfg.LLM.MetadataModel,
	}
	if provider, err := llm.New(llmCfg, llmLogger); err != nil {
		logger.Warn("llm disabled", zap.Error(err))
		unavailable["llm"] = err
	} else {
		scriptModel, metadataModel := llmCfg.Models()
		deps.Scripts = llm.NewScriptWriter(provider, scriptModel, llmLogger)
		gen := llm.NewMetadataGenerator(provider, metadataModel, llmLogger)
		gen.OnDecode = m.MetadataDecoded
		deps.Metadata = gen
	}

	if pub, err := youtube.NewPublisher(ctx, youtube.Config{
		ClientID:     cfg.YouTube.ClientID,
		ClientSecret: cfg.YouTube.ClientSecret,
		RefreshToken: cfg.YouTube.RefreshToken,
		Privacy:      cfg.YouTube.Privacy,
	}); err != nil {
		logger.Warn("youtube publishing disabled", zap.Error(err))
		unavailable["youtube"] = err
	} else {
		deps.Publisher = pub
	}

	if idp, err := handlers.NewGoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.RedirectURL); err != nil {
		logger.Warn("google sign-in disabled", zap.Error(err))
		unavailable["auth"] = err
	} else {
		deps.Identity = idp
	}

	// 5. 事件推送、检索与监听器
	hub := sse.NewHub(30 * time.Second)
	deps.Hub = hub
	if cfg.Search.Enabled {
		idx, err := search.OpenTaskIndex(cfg.Search.Path)
		if err != nil {
			return fmt.Errorf("open search index: %w", err)
		}
		defer idx.Close()
		deps.Index = idx
	}
	defer listeners.InitUserListeners()()
	defer (&listeners.TaskListeners{Hub: hub, Index: deps.Index, Metrics: m}).Init()()

	if rdb != nil {
		deps.IdemStore = middleware.NewRedisIdemStore(rdb)
	}
	limitStore, err := middleware.NewLimiterStore(cfg.RateLimit.Store, rdb)
	if err != nil {
		return err
	}
	if deps.RateLimit, err = middleware.RateLimiter(cfg.RateLimit.Rate, limitStore); err != nil {
		return err
	}

	// 6. 后台 worker 与清扫任务
	wcfg := worker.Config{
		ChunkWords:  cfg.Media.ChunkWords,
		StaleAfter:  cfg.Worker.StaleAfter,
		MaxAttempts: cfg.Worker.MaxAttempts,
	}
	proc := worker.NewProcessor(db, fish, toolkit, audio, wcfg, m)
	pool := worker.NewPool(q, proc, cfg.Worker.Concurrency)

	cr := scheduler.NewCron(time.Local)
	if _, err := cr.Add(cfg.Worker.SweepSchedule, worker.NewSweeper(db, q, wcfg, m)); err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", cfg.Worker.SweepSchedule, err)
	}
	cr.Start()
	defer cr.Stop()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workersDone := make(chan error, 1)
	go func() { workersDone <- pool.Run(workerCtx) }()

	// 7. HTTP
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newEngine(cfg, db, m, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stopWorkers()
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// 进行中的任务保持 PROCESSING，过期后由 sweeper 重新投递
	stopWorkers()
	select {
	case err := <-workersDone:
		if err != nil {
			logger.Warn("worker pool", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Warn("worker pool did not stop in time")
	}
	return nil
}

func needsRedis(cfg *config.Config) bool {
	if strings.EqualFold(cfg.Queue.Driver, "redis") || strings.EqualFold(cfg.RateLimit.Store, "redis") {
		return true
	}
	t := strings.ToLower(cfg.Cache.Type)
	return t == "redis" || t == "layered"
}

func sessionSecret(cfg *config.Config) []byte {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret)
	}
	logger.Warn("SESSION_SECRET is not set, sessions will not survive a restart")
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return []byte(hex.EncodeToString(b))
}
