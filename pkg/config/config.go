package config

import (
	"VidFlow/pkg/logger"
	"VidFlow/pkg/util"
	"log"
	"os"
	"time"
)

type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER"`
	DSN    string `env:"DSN"`
}

type LLMConfig struct {
	Provider        string `env:"LLM_PROVIDER"` // anthropic | openai
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"LLM_API_KEY"`
	BaseURL         string `env:"LLM_BASE_URL"`
	ScriptModel     string `env:"LLM_SCRIPT_MODEL"`
	MetadataModel   string `env:"LLM_METADATA_MODEL"`
}

type TTSConfig struct {
	APIKey   string `env:"FISH_AUDIO_API_KEY"`
	Endpoint string `env:"FISH_AUDIO_ENDPOINT"`
	Latency  string `env:"FISH_AUDIO_LATENCY"`
}

type TranscriptConfig struct {
	APIKey    string        `env:"TRANSCRIPT_API_KEY"`
	Endpoint  string        `env:"TRANSCRIPT_API_ENDPOINT"`
	OEmbedURL string        `env:"YOUTUBE_OEMBED_URL"`
	CacheTTL  time.Duration `env:"TRANSCRIPT_CACHE_TTL"`
}

type YouTubeConfig struct {
	ClientID     string `env:"YOUTUBE_CLIENT_ID"`
	ClientSecret string `env:"YOUTUBE_CLIENT_SECRET"`
	RefreshToken string `env:"YOUTUBE_REFRESH_TOKEN"`
	Privacy      string `env:"YOUTUBE_PRIVACY"`
}

type MediaConfig struct {
	FFmpegBin      string `env:"FFMPEG_BIN"`
	FFprobeBin     string `env:"FFPROBE_BIN"`
	WorkDir        string `env:"MEDIA_WORK_DIR"`
	AudioDir       string `env:"MEDIA_DIR"`
	AudioURLPrefix string `env:"MEDIA_URL_PREFIX"`
	VideoDir       string `env:"VIDEO_DIR"`
	UploadDir      string `env:"UPLOAD_DIR"`
	ChunkWords     int    `env:"TTS_CHUNK_WORDS"`
}

type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER"` // 空 | minio | cos
}

type QueueConfig struct {
	Driver   string `env:"QUEUE_DRIVER"` // memory | redis | nats
	Name     string `env:"QUEUE_NAME"`
	NATSURL  string `env:"NATS_URL"`
	Capacity int    `env:"QUEUE_CAPACITY"`
}

type CacheConfig struct {
	Type          string `env:"CACHE_TYPE"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
	LocalMaxSize  int    `env:"LOCAL_CACHE_MAX_SIZE"`
}

type WorkerConfig struct {
	Concurrency   int           `env:"WORKER_CONCURRENCY"`
	StaleAfter    time.Duration `env:"TASK_STALE_AFTER"`
	MaxAttempts   int           `env:"TASK_MAX_ATTEMPTS"`
	SweepSchedule string        `env:"TASK_SWEEP_SCHEDULE"`
}

type AuthConfig struct {
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL        string `env:"GOOGLE_REDIRECT_URL"`
}

type RateLimitConfig struct {
	Rate  string `env:"RATE_LIMIT"`
	Store string `env:"RATE_LIMIT_STORE"` // memory | redis
}

type SearchConfig struct {
	Enabled bool   `env:"SEARCH_ENABLED"`
	Path    string `env:"SEARCH_PATH"`
}

// config/config.go
type Config struct {
	Addr              string        `env:"ADDR"`
	Mode              string        `env:"MODE"`
	APIPrefix         string        `env:"API_PREFIX"`
	AuthPrefix        string        `env:"AUTH_PREFIX"`
	MonitorPrefix     string        `env:"MONITOR_PREFIX"`
	SessionSecret     string        `env:"SESSION_SECRET"`
	SessionExpireDays int           `env:"SESSION_EXPIRE_DAYS"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT"`

	Log        logger.LogConfig
	Database   DatabaseConfig
	LLM        LLMConfig
	TTS        TTSConfig
	Transcript TranscriptConfig
	YouTube    YouTubeConfig
	Media      MediaConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Cache      CacheConfig
	Worker     WorkerConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Search     SearchConfig
}

// GlobalConfig 仅用于路由前缀等启动期读取；业务组件通过构造函数拿到各自的配置段
var GlobalConfig *Config

func Load() (*Config, error) {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 组装配置
	cfg := &Config{
		Addr:              util.GetEnvDefault("ADDR", ":8080"),
		Mode:              util.GetEnvDefault("MODE", env),
		APIPrefix:         util.GetEnvDefault("API_PREFIX", "/api"),
		AuthPrefix:        util.GetEnvDefault("AUTH_PREFIX", "/auth"),
		MonitorPrefix:     util.GetEnvDefault("MONITOR_PREFIX", "/metrics"),
		SessionSecret:     util.GetEnv("SESSION_SECRET"),
		SessionExpireDays: util.GetIntEnvDefault("SESSION_EXPIRE_DAYS", 7),
		HTTPTimeout:       util.GetDurationEnv("HTTP_TIMEOUT", 120*time.Second),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Database: DatabaseConfig{
			Driver: util.GetEnv("DB_DRIVER"),
			DSN:    util.GetEnvDefault("DSN", "vidflow.db"),
		},
		LLM: LLMConfig{
			Provider:        util.GetEnvDefault("LLM_PROVIDER", "anthropic"),
			AnthropicAPIKey: util.GetEnv("ANTHROPIC_API_KEY"),
			OpenAIAPIKey:    util.GetEnv("LLM_API_KEY"),
			BaseURL:         util.GetEnv("LLM_BASE_URL"),
			ScriptModel:     util.GetEnv("LLM_SCRIPT_MODEL"),
			MetadataModel:   util.GetEnv("LLM_METADATA_MODEL"),
		},
		TTS: TTSConfig{
			APIKey:   util.GetEnv("FISH_AUDIO_API_KEY"),
			Endpoint: util.GetEnvDefault("FISH_AUDIO_ENDPOINT", "https://api.fish.audio/v1/tts"),
			Latency:  util.GetEnvDefault("FISH_AUDIO_LATENCY", "normal"),
		},
		Transcript: TranscriptConfig{
			APIKey:    util.GetEnv("TRANSCRIPT_API_KEY"),
			Endpoint:  util.GetEnvDefault("TRANSCRIPT_API_ENDPOINT", "https://transcriptapi.com/api/v2/youtube/transcript"),
			OEmbedURL: util.GetEnvDefault("YOUTUBE_OEMBED_URL", "https://www.youtube.com/oembed"),
			CacheTTL:  util.GetDurationEnv("TRANSCRIPT_CACHE_TTL", 24*time.Hour),
		},
		YouTube: YouTubeConfig{
			ClientID:     util.GetEnv("YOUTUBE_CLIENT_ID"),
			ClientSecret: util.GetEnv("YOUTUBE_CLIENT_SECRET"),
			RefreshToken: util.GetEnv("YOUTUBE_REFRESH_TOKEN"),
			Privacy:      util.GetEnvDefault("YOUTUBE_PRIVACY", "private"),
		},
		Media: MediaConfig{
			FFmpegBin:      util.GetEnvDefault("FFMPEG_BIN", "ffmpeg"),
			FFprobeBin:     util.GetEnvDefault("FFPROBE_BIN", "ffprobe"),
			WorkDir:        util.GetEnv("MEDIA_WORK_DIR"),
			AudioDir:       util.GetEnvDefault("MEDIA_DIR", "public/temp_audio"),
			AudioURLPrefix: util.GetEnvDefault("MEDIA_URL_PREFIX", "/temp_audio"),
			VideoDir:       util.GetEnvDefault("VIDEO_DIR", "temp"),
			UploadDir:      util.GetEnvDefault("UPLOAD_DIR", "temp/uploads"),
			ChunkWords:     util.GetIntEnvDefault("TTS_CHUNK_WORDS", 150),
		},
		Storage: StorageConfig{
			Driver: util.GetEnv("STORAGE_DRIVER"),
		},
		Queue: QueueConfig{
			Driver:   util.GetEnvDefault("QUEUE_DRIVER", "memory"),
			Name:     util.GetEnvDefault("QUEUE_NAME", "vidflow_tts_tasks"),
			NATSURL:  util.GetEnvDefault("NATS_URL", "nats://127.0.0.1:4222"),
			Capacity: util.GetIntEnvDefault("QUEUE_CAPACITY", 1024),
		},
		Cache: CacheConfig{
			Type:          util.GetEnvDefault("CACHE_TYPE", "local"),
			RedisAddr:     util.GetEnvDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword: util.GetEnv("REDIS_PASSWORD"),
			RedisDB:       int(util.GetIntEnv("REDIS_DB")),
			LocalMaxSize:  util.GetIntEnvDefault("LOCAL_CACHE_MAX_SIZE", 1000),
		},
		Worker: WorkerConfig{
			Concurrency:   util.GetIntEnvDefault("WORKER_CONCURRENCY", 2),
			StaleAfter:    util.GetDurationEnv("TASK_STALE_AFTER", 15*time.Minute),
			MaxAttempts:   util.GetIntEnvDefault("TASK_MAX_ATTEMPTS", 3),
			SweepSchedule: util.GetEnvDefault("TASK_SWEEP_SCHEDULE", "@every 1m"),
		},
		Auth: AuthConfig{
			GoogleClientID:     util.GetEnv("GOOGLE_CLIENT_ID"),
			GoogleClientSecret: util.GetEnv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:        util.GetEnv("GOOGLE_REDIRECT_URL"),
		},
		RateLimit: RateLimitConfig{
			Rate:  util.GetEnvDefault("RATE_LIMIT", "300-M"),
			Store: util.GetEnvDefault("RATE_LIMIT_STORE", "memory"),
		},
		Search: SearchConfig{
			Enabled: util.GetBoolEnv("SEARCH_ENABLED"),
			Path:    util.GetEnv("SEARCH_PATH"),
		},
	}
	GlobalConfig = cfg
	return cfg, nil
}
