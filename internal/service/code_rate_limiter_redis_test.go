package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestRedisCodeRateLimiterAllow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisRateLimiter
		if !l.Allow("a@x.com") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := &redisRateLimiter{
			client: &mockRedisEvaler{result: 1},
			window: time.Minute,
			max:    3,
			prefix: "code:send:",
		}
		if l.Allow("   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("allow when count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := &redisRateLimiter{
			client: mock,
			window: 2 * time.Minute,
			max:    3,
			prefix: "code:send:",
		}
		if !l.Allow(" Alice@X.com ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "code:send:Alice@X.com" {
			t.Fatalf("expected trimmed case-preserving key, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("expected TTL seconds=120, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisCodeAllowScript {
			t.Fatalf("expected script to match")
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := &redisRateLimiter{
			client: &mockRedisEvaler{result: 4},
			window: time.Minute,
			max:    3,
			prefix: "code:send:",
		}
		if l.Allow("a@x.com") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		l := &redisRateLimiter{
			logger: zap.New(core),
			client: &mockRedisEvaler{err: errors.New("redis down")},
			window: time.Minute,
			max:    3,
			prefix: "code:send:",
		}
		if !l.Allow("a@x.com") {
			t.Fatalf("expected fail-open on redis errors")
		}
		if logs.FilterMessage("code rate limiter unavailable, allowing request").Len() != 1 {
			t.Fatalf("expected a warning when redis is unavailable")
		}
	})
}

func TestRedisCodeRateLimiter_Miniredis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisCodeRateLimiter(client, zap.NewNop(), "code:attempt:", time.Minute, 2)
	if !l.Allow("a@x.com") || !l.Allow("a@x.com") {
		t.Fatalf("expected first two attempts allowed")
	}
	if l.Allow("a@x.com") {
		t.Fatalf("expected third attempt denied")
	}
	if !l.Allow("b@x.com") {
		t.Fatalf("expected independent key allowed")
	}
	if ttl := mr.TTL("code:attempt:a@x.com"); ttl != time.Minute {
		t.Fatalf("expected key ttl of 1m, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if !l.Allow("a@x.com") {
		t.Fatalf("expected window to reset after expiry")
	}
}
