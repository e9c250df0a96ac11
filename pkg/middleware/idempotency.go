package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"VidFlow/pkg/logger"
	"VidFlow/pkg/response"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UserIDKey 认证中间件写入 gin.Context 的当前用户 id
const UserIDKey = "user_id"

type IdemStore interface {
	// Set returns true if key was stored, false if it already exists.
	Set(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type memoryIdemStore struct {
	c *gocache.Cache
}

// NewMemoryIdemStore 进程内幂等键存储，过期键由 go-cache 定期清理
func NewMemoryIdemStore() IdemStore {
	return &memoryIdemStore{c: gocache.New(10*time.Minute, time.Minute)}
}

func (s *memoryIdemStore) Set(_ context.Context, key string, ttl time.Duration) (bool, error) {
	return s.c.Add(key, struct{}{}, ttl) == nil, nil
}

type redisIdemStore struct {
	client *redis.Client
	prefix string
}

// NewRedisIdemStore 多实例部署时共享幂等键
func NewRedisIdemStore(client *redis.Client) IdemStore {
	return &redisIdemStore{client: client, prefix: "vidflow:idem:"}
}

func (s *redisIdemStore) Set(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
}

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	TTL        time.Duration // 决定一段时间内重复请求的拒绝窗口
	Store      IdemStore     // 可选外部存储（如 Redis）
}

// IdempotencyMiddleware rejects a repeated request with 409 within TTL. The key is the
// Idempotency-Key header or, when absent, a hash of the body; both are scoped to the
// current user.
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryIdemStore()
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			// 兜底以请求体生成哈希作为幂等键
			b, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(strings.NewReader(string(b)))
			h := sha256.Sum256(b)
			key = hex.EncodeToString(h[:])
		}
		key = fmt.Sprintf("%v:%s:%s", c.Value(UserIDKey), c.FullPath(), key)

		ok, err := store.Set(c.Request.Context(), key, cfg.TTL)
		if err != nil {
			// 存储不可用时放行，不阻断业务
			logger.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			response.AbortWithStatus(c, http.StatusConflict, "duplicate request")
			return
		}
		c.Next()
	}
}
