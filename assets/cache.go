package assets

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordCacheTTL     = 30 * time.Second
	recordCacheTimeout = 300 * time.Millisecond
)

// recordCache 用 Redis 缓存按编码命中的资产记录，降低扫码查询的存储压力。
type recordCache struct {
	client *redis.Client
}

// newRecordCache 使用 Redis 客户端创建记录缓存，client 为 nil 时禁用缓存。
func newRecordCache(client *redis.Client) *recordCache {
	if client == nil {
		return nil
	}
	return &recordCache{client: client}
}

// cacheContext 为缓存操作设置有界超时，避免缓存故障拖慢主流程。
func (c *recordCache) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), recordCacheTimeout)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= recordCacheTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, recordCacheTimeout)
}

// key 构造缓存键格式。
func (c *recordCache) key(id string) string {
	if c == nil || c.client == nil || id == "" {
		return ""
	}
	return "assets:record:" + id
}

// get 从缓存读取资产记录，任何错误都按未命中处理。
func (c *recordCache) get(ctx context.Context, id string) (*Asset, error) {
	if c == nil || c.client == nil {
		return nil, redis.Nil
	}
	key := c.key(id)
	if key == "" {
		return nil, redis.Nil
	}

	ctx, cancel := c.cacheContext(ctx)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var asset Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// store 把记录写入缓存，失败只记录日志。
func (c *recordCache) store(ctx context.Context, asset *Asset) {
	if c == nil || c.client == nil || asset == nil {
		return
	}
	key := c.key(asset.ID)
	if key == "" {
		return
	}

	payload, err := json.Marshal(asset)
	if err != nil {
		log.Printf("assets: marshal record cache payload failed: %v", err)
		return
	}

	ctx, cancel := c.cacheContext(ctx)
	defer cancel()

	if err := c.client.Set(ctx, key, payload, recordCacheTTL).Err(); err != nil {
		log.Printf("assets: store record cache failed: %v", err)
	}
}

// invalidate 在记录写入或删除后清除对应缓存。
func (c *recordCache) invalidate(ctx context.Context, id string) {
	if c == nil || c.client == nil {
		return
	}
	key := c.key(id)
	if key == "" {
		return
	}

	ctx, cancel := c.cacheContext(ctx)
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Printf("assets: invalidate record cache failed: %v", err)
	}
}
