package lock

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	token  string
	expiry time.Time
}

// LocalLock 单进程实现，没有配置 Redis 时使用
type LocalLock struct {
	mu    sync.Mutex
	held  map[string]localEntry
	nowFn func() time.Time
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]localEntry), nowFn: time.Now}
}

func (l *LocalLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if e, ok := l.held[key]; ok && now.Before(e.expiry) {
		return "", false, nil
	}
	token := newToken()
	l.held[key] = localEntry{token: token, expiry: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLock) Refresh(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.held[key]
	if !ok || e.token != token {
		return false, nil
	}
	e.expiry = l.nowFn().Add(ttl)
	l.held[key] = e
	return true, nil
}

func (l *LocalLock) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.held[key]; ok && e.token == token {
		delete(l.held, key)
	}
	return nil
}
