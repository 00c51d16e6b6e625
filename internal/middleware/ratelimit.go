package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// TokenBucket implements token bucket rate limiting
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	refillRate int // tokens per second
	lastRefill time.Time
	lastSeen   time.Time
}

func NewTokenBucket(capacity, refillRate int, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now,
		lastSeen:   now,
	}
}

func (tb *TokenBucket) Allow(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.lastSeen = now
	if tb.refillRate > 0 {
		elapsed := now.Sub(tb.lastRefill)
		tokensToAdd := int(elapsed.Seconds() * float64(tb.refillRate))
		if tokensToAdd > 0 {
			tb.tokens += tokensToAdd
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			// keep the remainder so slow trickles still refill
			tb.lastRefill = tb.lastRefill.Add(time.Duration(tokensToAdd) * time.Second / time.Duration(tb.refillRate))
		}
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// RetryAfter is the wait until the next token, rounded up to whole seconds.
func (tb *TokenBucket) RetryAfter(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.refillRate <= 0 {
		return time.Minute
	}
	next := tb.lastRefill.Add(time.Second / time.Duration(tb.refillRate))
	wait := next.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	return wait.Round(time.Second)
}

// RateLimiter manages one bucket per client key
type RateLimiter struct {
	mu         sync.RWMutex
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate int
	now        func() time.Time
}

func NewRateLimiter(capacity, refillRate int) *RateLimiter {
	return &RateLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
	}
}

func (rl *RateLimiter) getBucket(key string) *TokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[key]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}
	bucket = NewTokenBucket(rl.capacity, rl.refillRate, rl.now())
	rl.buckets[key] = bucket
	return bucket
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.getBucket(key).Allow(rl.now())
}

// Sweep drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) Sweep(maxIdle time.Duration) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, bucket := range rl.buckets {
		bucket.mu.Lock()
		idle := now.Sub(bucket.lastSeen) > maxIdle
		bucket.mu.Unlock()
		if idle {
			delete(rl.buckets, key)
		}
	}
}

// Run sweeps idle buckets every five minutes until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep(10 * time.Minute)
		}
	}
}

// clientIP strips the port from RemoteAddr; chi's RealIP runs earlier when behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit limits requests per client IP
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !limiter.Allow(key) {
				wait := limiter.getBucket(key).RetryAfter(limiter.now())
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())))
				http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
