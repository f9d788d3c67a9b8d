package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryGuestStore 进程内的游客计数实现，单实例部署或无 Redis 时使用。
type MemoryGuestStore struct {
	mu      sync.RWMutex
	entries map[string]GuestUsage
}

// NewMemoryGuestStore 构造内存游客计数存储。
func NewMemoryGuestStore() *MemoryGuestStore {
	return &MemoryGuestStore{entries: make(map[string]GuestUsage)}
}

// Usage 实现 GuestStore 接口。
func (s *MemoryGuestStore) Usage(_ context.Context, key string) (GuestUsage, error) {
	s.mu.RLock()
	usage, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return GuestUsage{}, nil
	}
	return usage, nil
}

// Increment 实现 GuestStore 接口。窗口从第一次计数开始，满窗后重新开窗。
func (s *MemoryGuestStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage, ok := s.entries[key]
	if !ok || now.Sub(usage.StartedAt) >= window {
		s.entries[key] = GuestUsage{Count: 1, StartedAt: now}
		return nil
	}
	usage.Count++
	s.entries[key] = usage
	return nil
}

// Prune 清理窗口已过期的条目，由调用方按需触发。
func (s *MemoryGuestStore) Prune(now time.Time, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, usage := range s.entries {
		if now.Sub(usage.StartedAt) >= window {
			delete(s.entries, key)
		}
	}
}
