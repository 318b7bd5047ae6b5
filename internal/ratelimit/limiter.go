// Package ratelimit provides per-key token bucket rate limiting for the MCP
// tools and the HTTP control endpoints.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ErrRateLimited is returned by CheckLimit when a bucket is empty.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// Reserve is Allow plus, on rejection, how long until the next token.
// The wait is zero when allowed and negative when the bucket never refills.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	return l.take(key)
}

func (l *Limiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, -1
	}
	missing := 1.0 - b.tokens
	return false, time.Duration(math.Ceil(missing / l.rate * float64(time.Second)))
}

// Policy is a rate in tokens per second plus a burst size.
type Policy struct {
	Rate  float64
	Burst int
}

// PerMinute builds a policy of n tokens per minute.
func PerMinute(n float64, burst int) Policy {
	return Policy{Rate: n / 60.0, Burst: burst}
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// DefaultToolPolicies are the limits applied to the gossip MCP tools.
// Stepping and reads are cheap; rebuilding draws a new topology and runs
// are bounded loops, so those are tighter.
var DefaultToolPolicies = map[string]Policy{
	"gossip_start":             {Rate: 2, Burst: 5},
	"gossip_step":              {Rate: 20, Burst: 50},
	"gossip_run":               PerMinute(10, 2),
	"gossip_statistics":        {Rate: 5, Burst: 20},
	"gossip_snapshot":          {Rate: 2, Burst: 5},
	"gossip_history":           {Rate: 5, Burst: 20},
	"gossip_reset":             {Rate: 1, Burst: 5},
	"gossip_rebuild":           PerMinute(10, 2),
	"gossip_update_parameters": {Rate: 1, Burst: 5},
}

// NewToolLimiters creates a limiter per tool in DefaultToolPolicies.
func NewToolLimiters() ToolLimiters {
	limiters := make(ToolLimiters, len(DefaultToolPolicies))
	for tool, p := range DefaultToolPolicies {
		limiters[tool] = NewLimiter(p.Rate, p.Burst)
	}
	return limiters
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error wrapping ErrRateLimited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	allowed, wait := limiter.Reserve(toolName)
	if allowed {
		return nil
	}
	if wait < 0 {
		return fmt.Errorf("%w for %s", ErrRateLimited, toolName)
	}
	return fmt.Errorf("%w for %s, retry in %s", ErrRateLimited, toolName, wait.Round(time.Millisecond))
}

// Middleware rejects requests with 429 once the bucket for key(r) is empty.
// A nil key function limits all requests through a single bucket.
func Middleware(l *Limiter, key func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k := "global"
		if key != nil {
			k = key(r)
		}
		allowed, wait := l.Reserve(k)
		if !allowed {
			if wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			http.Error(w, ErrRateLimited.Error(), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
