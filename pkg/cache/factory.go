package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// NewCache 创建缓存实例
func NewCache(config Config) (Cache, error) {
	local := config.Local.withDefaults()
	switch strings.ToLower(config.Type) {
	case "", "local":
		return NewLocalCache(local), nil
	case "gocache":
		return NewGoCache(local), nil
	case "redis":
		return NewRedisCache(config.Redis, local.DefaultExpiration)
	case "layered":
		return NewLayeredCache(config, time.Minute)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

// NewLayeredCache 创建分层缓存（本地 LRU + Redis），本地层使用较短的过期时间
func NewLayeredCache(config Config, localTTL time.Duration) (Cache, error) {
	distributed, err := NewRedisCache(config.Redis, config.Local.withDefaults().DefaultExpiration)
	if err != nil {
		return nil, err
	}
	local := config.Local
	local.DefaultExpiration = localTTL
	return &layeredCache{local: NewLocalCache(local), distributed: distributed, localTTL: localTTL}, nil
}

// layeredCache 分层缓存实现
type layeredCache struct {
	local       Cache
	distributed Cache
	localTTL    time.Duration
}

// Get 先查本地，未命中再查分布式缓存并回填本地
func (lc *layeredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := lc.local.Get(ctx, key); ok {
		return value, true
	}
	if value, ok := lc.distributed.Get(ctx, key); ok {
		_ = lc.local.Set(ctx, key, value, lc.localTTL)
		return value, true
	}
	return nil, false
}

func (lc *layeredCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := lc.distributed.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return lc.local.Set(ctx, key, value, lc.localTTL)
}

func (lc *layeredCache) Delete(ctx context.Context, key string) error {
	if err := lc.local.Delete(ctx, key); err != nil {
		return err
	}
	return lc.distributed.Delete(ctx, key)
}

func (lc *layeredCache) Close() error {
	_ = lc.local.Close()
	return lc.distributed.Close()
}
