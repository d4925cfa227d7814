package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Store 按 key 维护令牌桶，长时间未使用的条目由 Run 定期清理
type Store struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	clients map[string]*clientEntry
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewStore rps 为每秒允许的请求数，ttl 为空闲条目保留时长
func NewStore(rps float64, burst int, ttl time.Duration) *Store {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = int(rps)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		clients: map[string]*clientEntry{},
	}
}

func (s *Store) getLimiter(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.clients[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	limiter := rate.NewLimiter(s.limit, s.burst)
	s.clients[key] = &clientEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// Allow 检查 key 是否还有令牌
func (s *Store) Allow(key string) bool {
	return s.getLimiter(key, time.Now()).Allow()
}

// Sweep 删除 cutoff 之前最后活跃的条目，返回删除数量
func (s *Store) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, v := range s.clients {
		if v.lastSeen.Before(cutoff) {
			delete(s.clients, k)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Run 清理循环，ctx 取消后返回
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(time.Now().Add(-s.ttl))
		case <-ctx.Done():
			return nil
		}
	}
}

// NewConnLimiter 单个长连接的入站帧限速器
func NewConnLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
