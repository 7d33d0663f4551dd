package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 提交记录操作锁
// ============================================================================
//
// 后台对同一条提交记录的 void / capture / refund / 订阅操作必须串行，
// 否则两个管理员同时退款会各自调用一次网关。
//
//   加锁：SET formpay:lock:entry:{id} {requestID} NX EX ttl
//   释放：Lua 比对 requestID 后 DEL，锁过期后被他人持有时不会误删
//
// 拿不到锁直接返回，不排队等待：网关调用可能持续数十秒，
// 让管理员看到“操作进行中”比阻塞请求更合适。
//
// ============================================================================

var ErrLockExpired = errors.New("锁已过期或被他人持有")

const (
	defaultTTL = 30 * time.Second
	keyPattern = "formpay:lock:entry:%d"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// EntryLock 单条提交记录的互斥锁，owner 为持锁请求的 requestID
type EntryLock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// NewEntryActionLock ttl <= 0 时使用 30 秒
func NewEntryActionLock(client *redis.Client, entryID int64, requestID string, ttl time.Duration) *EntryLock {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &EntryLock{
		client: client,
		key:    fmt.Sprintf(keyPattern, entryID),
		owner:  requestID,
		ttl:    ttl,
	}
}

func (l *EntryLock) Key() string {
	return l.key
}

// TryLock 非阻塞，已被持有时返回 false
func (l *EntryLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
}

// Holder 当前持锁的 requestID，未加锁返回空串
func (l *EntryLock) Holder(ctx context.Context) (string, error) {
	owner, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return owner, err
}

// Unlock 只释放自己持有的锁
func (l *EntryLock) Unlock(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockExpired
	}
	return nil
}
