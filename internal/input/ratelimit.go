package input

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-slot command limiting
type RateLimitConfig struct {
	PerSecond float64 // sustained commands per second per slot
	Burst     int
}

// DefaultRateLimitConfig allows a held key's repeat rate plus short bursts
var DefaultRateLimitConfig = RateLimitConfig{
	PerSecond: 30,
	Burst:     10,
}

const (
	limiterIdleTimeout   = 5 * time.Minute
	limiterSweepInterval = time.Minute
)

type slotLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits commands per player slot. Slots idle for limiterIdleTimeout
// are forgotten on the next sweep.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[int]*slotLimiter
	config    RateLimitConfig
	lastSweep time.Time
}

// NewRateLimiter creates a new per-slot limiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = DefaultRateLimitConfig.PerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateLimitConfig.Burst
	}
	return &RateLimiter{
		limiters: make(map[int]*slotLimiter),
		config:   cfg,
	}
}

// Allow checks if slot may issue a command now
func (rl *RateLimiter) Allow(slot int) bool {
	return rl.AllowAt(slot, time.Now())
}

// AllowAt is Allow at an explicit time
func (rl *RateLimiter) AllowAt(slot int, now time.Time) bool {
	rl.mu.Lock()
	if now.Sub(rl.lastSweep) >= limiterSweepInterval {
		rl.sweep(now)
	}
	sl, ok := rl.limiters[slot]
	if !ok {
		sl = &slotLimiter{limiter: rate.NewLimiter(rate.Limit(rl.config.PerSecond), rl.config.Burst)}
		rl.limiters[slot] = sl
	}
	sl.lastSeen = now
	rl.mu.Unlock()
	return sl.limiter.AllowN(now, 1)
}

// sweep drops limiters idle longer than limiterIdleTimeout. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.lastSweep = now
	for slot, sl := range rl.limiters {
		if now.Sub(sl.lastSeen) > limiterIdleTimeout {
			delete(rl.limiters, slot)
		}
	}
}

// Tracked returns how many slots currently hold a limiter
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
