package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Counter 固定窗口计数结果
type Counter struct {
	Count   int64
	ResetIn time.Duration // 距窗口结束的时间
}

// CounterStore 限流计数存储
//
// Incr 对 key 在当前窗口内原子加一；窗口从该 key 第一次计数开始。
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (Counter, error)
}

const defaultMemoryCounterSize = 10000

type windowEntry struct {
	count int64
	start time.Time
}

// MemoryCounterStore 进程内计数，容量有界，过期条目自动淘汰
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, *windowEntry]
	now     func() time.Time
}

// NewMemoryCounterStore size <= 0 时使用默认容量；ttl 应不小于限流窗口
func NewMemoryCounterStore(size int, ttl time.Duration) *MemoryCounterStore {
	if size <= 0 {
		size = defaultMemoryCounterSize
	}
	return &MemoryCounterStore{
		entries: expirable.NewLRU[string, *windowEntry](size, nil, ttl),
		now:     time.Now,
	}
}

func (s *MemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries.Get(key)
	if !ok || now.Sub(e.start) >= window {
		e = &windowEntry{start: now}
		s.entries.Add(key, e)
	}
	e.count++

	return Counter{Count: e.count, ResetIn: window - now.Sub(e.start)}, nil
}

// Len 当前跟踪的 key 数
func (s *MemoryCounterStore) Len() int {
	return s.entries.Len()
}

const redisCounterPrefix = "audioshare:ratelimit:"

// RedisCounterStore 多实例共享的计数，INCR + PEXPIRE
type RedisCounterStore struct {
	client redis.Cmdable
}

func NewRedisCounterStore(client redis.Cmdable) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (Counter, error) {
	key = redisCounterPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Counter{}, fmt.Errorf("redis incr %s: %w", key, err)
	}

	count := incr.Val()
	resetIn := ttl.Val()
	// 第一次计数或 key 没有过期时间时设置窗口
	if count == 1 || resetIn < 0 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return Counter{}, fmt.Errorf("redis pexpire %s: %w", key, err)
		}
		resetIn = window
	}
	return Counter{Count: count, ResetIn: resetIn}, nil
}
