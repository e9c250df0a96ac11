package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type localItem struct {
	value    []byte
	expireAt time.Time
}

// localCache 基于 expirable LRU 的进程内缓存。LRU 本身只有统一 TTL，
// 更短的单项过期时间在读取时检查。
type localCache struct {
	lru *expirable.LRU[string, localItem]
	ttl time.Duration
}

// NewLocalCache 创建本地缓存
func NewLocalCache(config LocalConfig) Cache {
	config = config.withDefaults()
	return &localCache{
		lru: expirable.NewLRU[string, localItem](config.MaxSize, nil, config.DefaultExpiration),
		ttl: config.DefaultExpiration,
	}
}

func (lc *localCache) Get(_ context.Context, key string) ([]byte, bool) {
	item, ok := lc.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expireAt) {
		lc.lru.Remove(key)
		return nil, false
	}
	return item.value, true
}

func (lc *localCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration <= 0 || expiration > lc.ttl {
		expiration = lc.ttl
	}
	lc.lru.Add(key, localItem{value: value, expireAt: time.Now().Add(expiration)})
	return nil
}

func (lc *localCache) Delete(_ context.Context, key string) error {
	lc.lru.Remove(key)
	return nil
}

func (lc *localCache) Close() error {
	lc.lru.Purge()
	return nil
}
