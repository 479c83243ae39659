package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/idforge/clog"
)

// clientLimiter 按客户端维护令牌桶，空闲的桶定期回收
type clientLimiter struct {
	cfg      RateLimitConfig
	logger   clog.Logger
	limiters sync.Map // map[string]*limiterEntry
	stopCh   chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

func newClientLimiter(cfg RateLimitConfig, logger clog.Logger) *clientLimiter {
	l := &clientLimiter{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	go l.cleanup()
	logger.Info("rate limiter enabled",
		clog.Float64("rate", cfg.Rate),
		clog.Int("burst", cfg.Burst),
		clog.Duration("idle_timeout", cfg.IdleTimeout),
	)
	return l
}

// allowN 尝试为 key 取 n 个令牌；n 超过桶容量时按桶容量计
func (l *clientLimiter) allowN(key string, n int) bool {
	if n > l.cfg.Burst {
		n = l.cfg.Burst
	}
	entry := l.get(key)
	now := time.Now()
	entry.mu.Lock()
	entry.lastSeen = now
	entry.mu.Unlock()
	return entry.limiter.AllowN(now, n)
}

func (l *clientLimiter) get(key string) *limiterEntry {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*limiterEntry)
	}
	entry := &limiterEntry{
		limiter:  rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst),
		lastSeen: time.Now(),
	}
	actual, _ := l.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry)
}

func (l *clientLimiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evict(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *clientLimiter) evict(now time.Time) int {
	count := 0
	l.limiters.Range(func(key, value any) bool {
		entry := value.(*limiterEntry)
		entry.mu.Lock()
		idle := now.Sub(entry.lastSeen)
		entry.mu.Unlock()
		if idle > l.cfg.IdleTimeout {
			l.limiters.Delete(key)
			count++
		}
		return true
	})
	if count > 0 {
		l.logger.Debug("cleaned up idle limiters", clog.Int("count", count))
	}
	return count
}

func (l *clientLimiter) close() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}
