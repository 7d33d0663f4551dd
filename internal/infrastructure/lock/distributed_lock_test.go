package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestEntryActionLock(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	first := NewEntryActionLock(client, 7, "req-1", 0)
	second := NewEntryActionLock(client, 7, "req-2", time.Second)
	if first.Key() != "formpay:lock:entry:7" {
		t.Fatalf("key = %s", first.Key())
	}

	ok, err := first.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("first TryLock = %v, %v", ok, err)
	}
	if ttl := mr.TTL(first.Key()); ttl != defaultTTL {
		t.Errorf("ttl = %v", ttl)
	}
	if ok, _ := second.TryLock(ctx); ok {
		t.Fatal("second holder acquired a held lock")
	}
	if holder, _ := second.Holder(ctx); holder != "req-1" {
		t.Errorf("holder = %q", holder)
	}
	if err := second.Unlock(ctx); !errors.Is(err, ErrLockExpired) {
		t.Errorf("foreign unlock err = %v", err)
	}
	if got, _ := mr.Get(first.Key()); got != "req-1" {
		t.Errorf("owner = %q", got)
	}

	if err := first.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if holder, err := first.Holder(ctx); holder != "" || err != nil {
		t.Errorf("holder after unlock = %q, %v", holder, err)
	}
	if ok, _ := second.TryLock(ctx); !ok {
		t.Error("lock not free after unlock")
	}

	other := NewEntryActionLock(client, 8, "req-3", time.Second)
	if ok, _ := other.TryLock(ctx); !ok {
		t.Error("locks on different entries interfere")
	}
}

func TestUnlockAfterExpiry(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	l := NewEntryActionLock(client, 1, "req-1", time.Second)
	if ok, _ := l.TryLock(ctx); !ok {
		t.Fatal("TryLock failed")
	}
	mr.FastForward(2 * time.Second)

	late := NewEntryActionLock(client, 1, "req-2", time.Second)
	if ok, _ := late.TryLock(ctx); !ok {
		t.Fatal("expired lock still held")
	}
	if err := l.Unlock(ctx); !errors.Is(err, ErrLockExpired) {
		t.Errorf("err = %v", err)
	}
	if holder, _ := late.Holder(ctx); holder != "req-2" {
		t.Errorf("new holder removed: %q", holder)
	}
}
