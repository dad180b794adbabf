package ratelimit

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// FixedWindow is the admission gate bounding how many resolutions a single
// caller identity may start per time window. It is intentionally
// approximate: bursts at window boundaries can momentarily exceed the
// capacity, which is acceptable for coarse abuse prevention.
type FixedWindow struct {
	capacity int
	window   time.Duration
	entries  map[string]*windowEntry
	mu       sync.Mutex
	stop     chan struct{}
	logger   zerolog.Logger
}

type windowEntry struct {
	count     int
	resetTime time.Time
}

// NewFixedWindow creates a fixed-window limiter with the given capacity per
// window. Expired entries are swept periodically so the map stays bounded.
func NewFixedWindow(capacity int, window time.Duration) *FixedWindow {
	fw := &FixedWindow{
		capacity: capacity,
		window:   window,
		entries:  make(map[string]*windowEntry),
		stop:     make(chan struct{}),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
	go fw.sweep()
	return fw
}

// Admit records one resolution attempt for the identity. It returns whether
// the attempt is admitted and, on rejection, how long until the window
// resets.
func (fw *FixedWindow) Admit(identity string) (bool, time.Duration) {
	now := time.Now()

	fw.mu.Lock()
	defer fw.mu.Unlock()

	entry, ok := fw.entries[identity]
	if !ok || now.After(entry.resetTime) {
		fw.entries[identity] = &windowEntry{count: 1, resetTime: now.Add(fw.window)}
		return true, 0
	}

	if entry.count >= fw.capacity {
		return false, time.Until(entry.resetTime)
	}

	entry.count++
	return true, 0
}

// sweep periodically removes expired entries
func (fw *FixedWindow) sweep() {
	ticker := time.NewTicker(fw.window)
	defer ticker.Stop()

	for {
		select {
		case <-fw.stop:
			return
		case <-ticker.C:
			now := time.Now()
			fw.mu.Lock()
			for identity, entry := range fw.entries {
				if now.After(entry.resetTime) {
					delete(fw.entries, identity)
				}
			}
			fw.mu.Unlock()
		}
	}
}

// Stop stops the background sweep
func (fw *FixedWindow) Stop() {
	close(fw.stop)
}

// RateLimiter applies a token-bucket limit per visitor IP. Used for the
// general API surface; the resolution engine itself is gated by FixedWindow.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	logger   zerolog.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new per-visitor rate limiter
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
	go rl.cleanupVisitors()
	return rl
}

// Middleware creates a rate limiting middleware
func (rl *RateLimiter) Middleware(rps int, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		limiter := rl.getLimiter(ip, rps, burst)
		if !limiter.Allow() {
			rl.logger.Warn().Str("ip", ip).Msg("Rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rps))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		c.Next()
	}
}

// getLimiter gets or creates a limiter for a visitor
func (rl *RateLimiter) getLimiter(ip string, rps int, burst int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		rl.visitors[ip] = &visitor{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes visitors not seen for an hour
func (rl *RateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Hour)

		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > time.Hour {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Config represents rate limiting configuration
type Config struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
	APIRequestsPerSec int
	APIBurst          int
	WhitelistedIPs    []string
}

// Manager owns the engine admission gate and the API middleware
type Manager struct {
	fixedWindow *FixedWindow
	rateLimiter *RateLimiter
	whitelist   map[string]bool
	config      *Config
}

// NewManager creates a new rate limiting manager
func NewManager(config *Config) *Manager {
	m := &Manager{
		config:    config,
		whitelist: make(map[string]bool),
	}

	if config.Enabled {
		m.fixedWindow = NewFixedWindow(config.RequestsPerWindow, config.Window)
		m.rateLimiter = NewRateLimiter()

		for _, ip := range config.WhitelistedIPs {
			m.whitelist[ip] = true
		}
	}

	return m
}

// Admit gates one resolution for the caller identity. Whitelisted
// identities and a disabled limiter always admit.
func (m *Manager) Admit(identity string) (bool, time.Duration) {
	if !m.config.Enabled || m.whitelist[identity] {
		return true, 0
	}
	return m.fixedWindow.Admit(identity)
}

// Middleware returns the general API rate limiting middleware
func (m *Manager) Middleware() gin.HandlerFunc {
	if !m.config.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if m.whitelist[c.ClientIP()] {
			c.Next()
			return
		}
		m.rateLimiter.Middleware(m.config.APIRequestsPerSec, m.config.APIBurst)(c)
	}
}

// Stop stops background sweeps
func (m *Manager) Stop() {
	if m.fixedWindow != nil {
		m.fixedWindow.Stop()
	}
}
