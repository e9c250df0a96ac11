package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"VidFlow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewLimiterStore 选择限流计数存储：memory 或 redis（多实例共享）
func NewLimiterStore(kind string, client *redis.Client) (limiter.Store, error) {
	switch strings.ToLower(kind) {
	case "", "memory":
		return memory.NewStore(), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis rate limit store requires a redis client")
		}
		return sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "vidflow:limiter"})
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", kind)
	}
}

// RateLimiter 按用户（已登录）或客户端 IP 限流，rate 形如 "300-M"
func RateLimiter(rate string, store limiter.Store) (gin.HandlerFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	if store == nil {
		store = memory.NewStore()
	}
	return mgin.NewMiddleware(limiter.New(store, r),
		mgin.WithKeyGetter(func(c *gin.Context) string {
			if uid, ok := c.Get(UserIDKey); ok {
				return fmt.Sprintf("user:%v", uid)
			}
			return "ip:" + c.ClientIP()
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			response.AbortWithStatus(c, http.StatusTooManyRequests, "too many requests")
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			response.AbortWithStatus(c, http.StatusInternalServerError, "rate limiter unavailable")
		}),
	), nil
}
