package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestPlanCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewPlanCache(client)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "test", "212000"); ok {
		t.Fatal("hit on empty cache")
	}
	c.Set(ctx, "test", "212000", `[{"plan_code":"gold"}]`)
	if v, ok := c.Get(ctx, "test", "212000"); !ok || v != `[{"plan_code":"gold"}]` {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if _, ok := c.Get(ctx, "live", "212000"); ok {
		t.Error("modes share a cache key")
	}
	if ttl := mr.TTL("formpay:plans:test:212000"); ttl != planCacheTTL {
		t.Errorf("ttl = %v", ttl)
	}

	c.Invalidate(ctx, "test", "212000")
	if _, ok := c.Get(ctx, "test", "212000"); ok {
		t.Error("hit after invalidate")
	}
}

func TestPlanCacheNil(t *testing.T) {
	var c *PlanCache
	c.Set(context.Background(), "test", "1", "x")
	if _, ok := c.Get(context.Background(), "test", "1"); ok {
		t.Error("nil cache returned a hit")
	}
}
