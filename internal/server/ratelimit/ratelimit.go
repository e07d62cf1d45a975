package ratelimit

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// RateLimiter caps concurrent websocket connections per IP and login
// attempts per minute per IP.
type RateLimiter struct {
	connections   map[string]int         // IP -> open connection count
	loginAttempts map[string][]time.Time // IP -> timestamps of login attempts
	mu            sync.RWMutex
	maxConns      int
	maxLogins     int
}

func New() *RateLimiter {
	maxConns := 10
	if v := os.Getenv("MAX_CONNECTIONS_PER_IP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxConns = n
		}
	}

	maxLogins := 5
	if v := os.Getenv("LOGIN_ATTEMPTS_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxLogins = n
		}
	}

	rl := &RateLimiter{
		connections:   make(map[string]int),
		loginAttempts: make(map[string][]time.Time),
		maxConns:      maxConns,
		maxLogins:     maxLogins,
	}

	// Cleanup old login attempts every minute
	go func() {
		for {
			time.Sleep(time.Minute)
			rl.cleanup()
		}
	}()

	return rl
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-time.Minute)
	for ip, attempts := range rl.loginAttempts {
		var valid []time.Time
		for _, t := range attempts {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		if len(valid) == 0 {
			delete(rl.loginAttempts, ip)
		} else {
			rl.loginAttempts[ip] = valid
		}
	}
}

func (rl *RateLimiter) CanConnect(ip string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.connections[ip] < rl.maxConns
}

func (rl *RateLimiter) AddConnection(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.connections[ip]++
}

func (rl *RateLimiter) RemoveConnection(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.connections[ip]--
	if rl.connections[ip] <= 0 {
		delete(rl.connections, ip)
	}
}

// CanLogin records an attempt and reports whether the IP is still under
// its per-minute budget.
func (rl *RateLimiter) CanLogin(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-time.Minute)
	var recent []time.Time
	for _, t := range rl.loginAttempts[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	rl.loginAttempts[ip] = recent

	if len(recent) >= rl.maxLogins {
		return false
	}

	rl.loginAttempts[ip] = append(rl.loginAttempts[ip], time.Now())
	return true
}

func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	return ip
}
