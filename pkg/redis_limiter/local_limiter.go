package redis_limiter

import (
	"context"
	"fmt"
	"sync"
)

// LocalLimiter 进程内并发限制器，未启用Redis时使用
type LocalLimiter struct {
	maxConcurrent int
	mu            sync.Mutex
	slots         map[string]chan struct{}
}

// NewLocalLimiter 创建进程内并发限制器
func NewLocalLimiter(maxConcurrent int) *LocalLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &LocalLimiter{
		maxConcurrent: maxConcurrent,
		slots:         make(map[string]chan struct{}),
	}
}

func (l *LocalLimiter) semaphore(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.slots[key]
	if !ok {
		sem = make(chan struct{}, l.maxConcurrent)
		l.slots[key] = sem
	}
	return sem
}

// Acquire 获取处理槽位，不等待
func (l *LocalLimiter) Acquire(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case l.semaphore(key) <- struct{}{}:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrLimitReached, l.maxConcurrent)
	}
}

// Release 释放处理槽位
func (l *LocalLimiter) Release(ctx context.Context, key string) {
	select {
	case <-l.semaphore(key):
	default:
	}
}

// GetCurrent 获取当前占用数
func (l *LocalLimiter) GetCurrent(ctx context.Context, key string) (int, error) {
	return len(l.semaphore(key)), nil
}

// GetMaxConcurrent 获取最大并发数
func (l *LocalLimiter) GetMaxConcurrent() int {
	return l.maxConcurrent
}

var (
	_ Limiter = (*LocalLimiter)(nil)
	_ Limiter = (*RedisLimiter)(nil)
)
