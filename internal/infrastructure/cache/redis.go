package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"formpay/internal/config"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("连接 Redis 失败: %v", err)
	}

	RedisClient = client
	log.Println("Redis 连接成功")
	return client
}

// ============================================================================
// 计划列表缓存
// ============================================================================

const planCacheTTL = 10 * time.Minute

// PlanCache 缓存网关计划列表，后台下拉框频繁读取
type PlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPlanCache(client *redis.Client) *PlanCache {
	return &PlanCache{client: client, ttl: planCacheTTL}
}

func planCacheKey(mode, merchantID string) string {
	return fmt.Sprintf("formpay:plans:%s:%s", mode, merchantID)
}

// Get 未命中返回 "", false
func (c *PlanCache) Get(ctx context.Context, mode, merchantID string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, planCacheKey(mode, merchantID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[PlanCache] 读取缓存失败: mode=%s, err=%v", mode, err)
		}
		return "", false
	}
	return val, true
}

func (c *PlanCache) Set(ctx context.Context, mode, merchantID, payload string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, planCacheKey(mode, merchantID), payload, c.ttl).Err(); err != nil {
		log.Printf("[PlanCache] 写入缓存失败: mode=%s, err=%v", mode, err)
	}
}

func (c *PlanCache) Invalidate(ctx context.Context, mode, merchantID string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, planCacheKey(mode, merchantID))
}
