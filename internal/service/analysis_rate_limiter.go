package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AnalysisRateLimiter limita la frecuencia de análisis por usuario.
type AnalysisRateLimiter interface {
	Allow(key string) bool
}

type memoryAnalysisRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewMemoryAnalysisRateLimiter crea un limiter en memoria de ventana deslizante.
func NewMemoryAnalysisRateLimiter(window time.Duration, max int) AnalysisRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &memoryAnalysisRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *memoryAnalysisRateLimiter) Allow(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	recent := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= l.max {
		l.hits[key] = recent
		return false
	}
	l.hits[key] = append(recent, now)
	return true
}

const redisAnalysisAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisAnalysisRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// NewRedisAnalysisRateLimiter crea un limiter compartido entre instancias.
func NewRedisAnalysisRateLimiter(client *redis.Client, window time.Duration, max int) AnalysisRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisAnalysisRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "meals:rl:",
	}
}

func (l *redisAnalysisRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisAnalysisAllowScript, []string{l.prefix + key}, seconds).Int()
	if err != nil {
		// Redis caído no bloquea el producto.
		return true
	}
	return count <= l.max
}
