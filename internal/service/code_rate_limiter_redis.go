package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisCodeAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisRateLimiter struct {
	logger *zap.Logger
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// NewRedisCodeRateLimiter comparte el contador entre réplicas. prefix separa los
// contadores de envío y de intentos.
func NewRedisCodeRateLimiter(client *redis.Client, logger *zap.Logger, prefix string, window time.Duration, max int) CodeRateLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	if prefix == "" {
		prefix = "code:rl:"
	}
	return &redisRateLimiter{
		logger: logger,
		client: client,
		window: window,
		max:    max,
		prefix: prefix,
	}
}

// Allow falla abierto si Redis no responde y lo deja en el log.
func (l *redisRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := strings.TrimSpace(key)
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	redisKey := l.prefix + normalizedKey
	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisCodeAllowScript, []string{redisKey}, seconds).Int()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("code rate limiter unavailable, allowing request", zap.String("prefix", l.prefix), zap.Error(err))
		}
		return true
	}
	return count <= l.max
}
