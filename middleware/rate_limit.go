package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// triggerAttempt tracks manual-trigger calls from one IP inside a window.
type triggerAttempt struct {
	Count   int
	FirstAt time.Time
}

// TriggerRateLimiter caps how often a single IP may force a refresh cycle.
// Every forced cycle fans out to the quote provider, so the cap protects the
// provider quota, not the server.
type TriggerRateLimiter struct {
	mu           sync.Mutex
	attempts     map[string]*triggerAttempt
	maxAttempts  int
	windowPeriod time.Duration
}

// NewTriggerRateLimiter allows maxAttempts triggers per IP per windowPeriod.
func NewTriggerRateLimiter(maxAttempts int, windowPeriod time.Duration) *TriggerRateLimiter {
	rl := &TriggerRateLimiter{
		attempts:     make(map[string]*triggerAttempt),
		maxAttempts:  maxAttempts,
		windowPeriod: windowPeriod,
	}
	go rl.startCleanup()
	return rl
}

// startCleanup periodically drops expired windows.
func (rl *TriggerRateLimiter) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.cleanup()
	}
}

func (rl *TriggerRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, attempt := range rl.attempts {
		if now.Sub(attempt.FirstAt) > rl.windowPeriod {
			delete(rl.attempts, ip)
		}
	}
}

// Allow records one attempt and reports whether it is within the cap, along
// with how long the caller should wait when it is not.
func (rl *TriggerRateLimiter) Allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	attempt, ok := rl.attempts[ip]
	if !ok || now.Sub(attempt.FirstAt) > rl.windowPeriod {
		rl.attempts[ip] = &triggerAttempt{Count: 1, FirstAt: now}
		return true, 0
	}

	attempt.Count++
	if attempt.Count > rl.maxAttempts {
		return false, rl.windowPeriod - now.Sub(attempt.FirstAt)
	}
	return true, 0
}

// TriggerRateLimitMiddleware rejects manual triggers beyond the per-IP cap.
func TriggerRateLimitMiddleware(rl *TriggerRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := rl.Allow(c.ClientIP())
		if !allowed {
			seconds := int(retryAfter.Seconds())
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": fmt.Sprintf("Too many refresh triggers. Please try again in %d second(s).", seconds),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
