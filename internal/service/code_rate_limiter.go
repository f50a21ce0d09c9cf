package service

import (
	"sync"
	"time"
)

// CodeRateLimiter limita envíos e intentos de códigos por clave.
type CodeRateLimiter interface {
	Allow(key string) bool
}

// windowCounter cuenta los usos de una clave dentro de la ventana que empieza en start.
type windowCounter struct {
	start time.Time
	count int
}

// memoryRateLimiter usa ventanas fijas por clave, igual que el limiter de Redis.
// Las claves vencidas se barren como máximo una vez por ventana.
type memoryRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	counters  map[string]*windowCounter
	lastSweep time.Time
	now       func() time.Time
}

// NewCodeRateLimiter crea un rate limiter en memoria para un solo proceso.
func NewCodeRateLimiter(window time.Duration, max int) CodeRateLimiter {
	return newMemoryRateLimiter(window, max)
}

func newMemoryRateLimiter(window time.Duration, max int) *memoryRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryRateLimiter{
		window:   window,
		max:      max,
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

func (l *memoryRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}

	c, ok := l.counters[key]
	if !ok || l.expired(c, now) {
		l.counters[key] = &windowCounter{start: now, count: 1}
		return true
	}
	if c.count >= l.max {
		return false
	}
	c.count++
	return true
}

func (l *memoryRateLimiter) sweep(now time.Time) {
	for key, c := range l.counters {
		if l.expired(c, now) {
			delete(l.counters, key)
		}
	}
	l.lastSweep = now
}

func (l *memoryRateLimiter) expired(c *windowCounter, now time.Time) bool {
	return now.Sub(c.start) >= l.window
}

