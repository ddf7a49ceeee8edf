package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitConfig controls per-client request rate limiting.
type RateLimitConfig struct {
	// Enabled turns rate limiting on.
	Enabled bool

	// RequestsPerSecond is the sustained rate allowed per client.
	RequestsPerSecond float64

	// Burst is the bucket capacity, the number of requests a client
	// may send at once before the sustained rate applies.
	Burst int64
}

// tokenBucket implements token bucket rate limiting. Tokens refill at a
// constant rate up to the capacity; each request consumes one token.
// Uses monotonic time to avoid clock skew issues.
type tokenBucket struct {
	capacity   int64
	tokens     float64
	refillRate float64
	lastRefill time.Time
	lastSeen   time.Time
	mu         sync.Mutex
}

func newTokenBucket(capacity int64, refillRate float64) *tokenBucket {
	now := time.Now()
	return &tokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
		lastSeen:   now,
	}
}

// take attempts to consume one token, refilling first based on elapsed
// time. Returns whether the request is allowed and the tokens left.
func (tb *tokenBucket) take() (bool, int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > float64(tb.capacity) {
		tb.tokens = float64(tb.capacity)
	}
	tb.lastRefill = now
	tb.lastSeen = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true, int64(tb.tokens)
	}
	return false, 0
}

func (tb *tokenBucket) idleSince(cutoff time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastSeen.Before(cutoff)
}

// RateLimiter tracks one token bucket per client address.
type RateLimiter struct {
	config   RateLimitConfig
	buckets  map[string]*tokenBucket
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts a janitor that drops
// buckets idle for ten minutes. Call Stop to end the janitor.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		buckets:  make(map[string]*tokenBucket),
		stopChan: make(chan struct{}),
	}
	if config.Enabled {
		go rl.janitor()
	}
	return rl
}

// Stop ends the janitor goroutine. Stop is idempotent.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *RateLimiter) bucketFor(client string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[client]
	if !ok {
		b = newTokenBucket(rl.config.Burst, rl.config.RequestsPerSecond)
		rl.buckets[client] = b
	}
	return b
}

func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			rl.mu.Lock()
			for client, b := range rl.buckets {
				if b.idleSince(cutoff) {
					delete(rl.buckets, client)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware returns the rate limiting middleware. Clients are keyed by
// source address; requests over the limit receive 429 with rate limit
// headers.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			client := clientAddress(r)
			allowed, remaining := rl.bucketFor(client).take()

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.config.Burst, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"detail":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddress strips the port from the remote address so all
// connections from one host share a bucket.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
