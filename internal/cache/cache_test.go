package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, nil), mr
}

func TestRedisCacheRoundtrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, SlotsKey); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, SlotsKey, []byte(`[{"id":"x"}]`), 300*time.Second)

	data, ok := c.Get(ctx, SlotsKey)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if string(data) != `[{"id":"x"}]` {
		t.Fatalf("unexpected payload: %s", data)
	}
}

func TestRedisCacheExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, SlotsKey, []byte("payload"), 300*time.Second)

	mr.FastForward(301 * time.Second)

	if _, ok := c.Get(ctx, SlotsKey); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
}

func TestRedisCacheDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, SlotsKey, []byte("payload"), 300*time.Second)
	c.Delete(ctx, SlotsKey)

	if _, ok := c.Get(ctx, SlotsKey); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRedisCacheDegradesWhenBackendGone(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(client, nil)
	ctx := context.Background()

	mr.Close()

	// None of these may panic or surface an error to the caller.
	if _, ok := c.Get(ctx, SlotsKey); ok {
		t.Fatal("expected miss when backend is down")
	}
	c.Set(ctx, SlotsKey, []byte("payload"), time.Minute)
	c.Delete(ctx, SlotsKey)
}

func TestDisabledCache(t *testing.T) {
	c := Disabled()
	ctx := context.Background()

	c.Set(ctx, SlotsKey, []byte("payload"), time.Minute)
	if _, ok := c.Get(ctx, SlotsKey); ok {
		t.Fatal("disabled cache must always miss")
	}
	c.Delete(ctx, SlotsKey)
}
