package annotation

import (
	"context"
	"sync"
	"time"

	"CareChat/logger"
	"CareChat/tools/clock"
	"CareChat/tools/errs"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker 互斥原语。acquired=false 表示被他人持有；err 表示原语本身不可用。
type Locker interface {
	Acquire(ctx context.Context, key string) (token string, acquired bool, err error)
	Release(ctx context.Context, key, token string) error
}

// 只删除自己持有的锁：过期后被别人重新拿到的锁不能被旧持有者释放
var luaCompareAndDelete = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisLocker struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (l *RedisLocker) key(k string) string { return l.prefix + ":" + k }

func (l *RedisLocker) Acquire(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key(key), token, l.ttl).Result()
	if err != nil {
		return "", false, errs.ErrLockUnavailable.WrapMsg("acquire", "key", key, "err", err.Error())
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if err := luaCompareAndDelete.Run(ctx, l.rdb, []string{l.key(key)}, token).Err(); err != nil {
		return errs.ErrLockUnavailable.WrapMsg("release", "key", key, "err", err.Error())
	}
	return nil
}

// MemoryLocker 进程内锁，带过期时间，语义与 RedisLocker 一致
type MemoryLocker struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock clock.Clock
	held  map[string]memLease
}

type memLease struct {
	token   string
	expires time.Time
}

func NewMemoryLocker(ttl time.Duration, c clock.Clock) *MemoryLocker {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryLocker{ttl: ttl, clock: c, held: make(map[string]memLease)}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = memLease{token: token, expires: now.Add(l.ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
	return nil
}

// Held 测试用
func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.held[key]
	return ok && l.clock.Now().Before(cur.expires)
}

const releaseTimeout = 3 * time.Second

// Guard 在锁内执行一次读改写。Hold>0 时 fn 的 ctx 带上该时限，
// 需短于锁的 TTL，租约过期前临界区一定已经结束
type Guard struct {
	Locker Locker
	Hold   time.Duration
}

// WithLock 拿不到锁返回 ErrLocked；fn 无论正常返回、panic 还是 ctx 取消，锁都会释放
func (g Guard) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token, ok, err := g.Locker.Acquire(ctx, key)
	if err != nil {
		if errs.ErrLockUnavailable.Is(err) {
			return err
		}
		return errs.ErrLockUnavailable.WrapMsg("acquire", "key", key, "err", err.Error())
	}
	if !ok {
		return errs.ErrLocked.WrapMsg("", "key", key)
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if rerr := g.Locker.Release(rctx, key, token); rerr != nil {
			logger.Warn("release annotation lock failed", zap.String("key", key), zap.Error(rerr))
		}
	}()
	if g.Hold <= 0 {
		return fn(ctx)
	}
	hctx, cancel := context.WithTimeout(ctx, g.Hold)
	defer cancel()
	return fn(hctx)
}
