// Package ratelimit throttles mutation and gesture endpoints per client.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jw6ventures/crmcal/internal/workspace"
)

// KeyFunc derives the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// Limiter keeps one token bucket per key. Idle buckets are dropped by a
// background sweep until Close is called.
type Limiter struct {
	rate       rate.Limit
	burst      int
	idle       time.Duration
	maxEntries int
	key        KeyFunc
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop chan struct{}
	once sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter allowing r requests per second with the given
// burst. Buckets idle for longer than idle are swept.
func New(r rate.Limit, burst int, idle time.Duration, key KeyFunc) *Limiter {
	l := &Limiter{
		rate:       r,
		burst:      burst,
		idle:       idle,
		maxEntries: 10000,
		key:        key,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
		stop:       make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Close stops the sweeper.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

// Allow reports whether a request for key may proceed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.maxEntries {
			l.evictOldestLocked()
		}
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	now := l.now()
	b.lastSeen = now
	l.mu.Unlock()
	return b.limiter.AllowN(now, 1)
}

func (l *Limiter) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for k, b := range l.buckets {
		if oldest == "" || b.lastSeen.Before(oldestAt) {
			oldest, oldestAt = k, b.lastSeen
		}
	}
	delete(l.buckets, oldest)
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

func (l *Limiter) sweepLoop() {
	t := time.NewTicker(l.idle)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// Len is the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware answers 429 with Retry-After once a key's bucket is empty.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	retryAfter := "1"
	if l.rate > 0 && l.rate < 1 {
		retryAfter = strconv.Itoa(int(1/float64(l.rate)) + 1)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(l.key(r)) {
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByMember keys requests by workspace and member, falling back to the
// client address for anonymous callers.
func ByMember(trustedProxies []string) KeyFunc {
	byIP := ByClientIP(trustedProxies)
	return func(r *http.Request) string {
		ws, _ := workspace.WorkspaceIDFromContext(r.Context())
		if member := workspace.MemberIDFromContext(r.Context()); ws != "" && member != "" {
			return "member:" + ws + "/" + member
		}
		return "ip:" + byIP(r)
	}
}

// ByClientIP keys requests by client address. X-Forwarded-For and
// X-Real-IP are honored only when the peer is a trusted proxy; with no
// proxies configured every peer is trusted.
func ByClientIP(trustedProxies []string) KeyFunc {
	nets := parseNets(trustedProxies)
	return func(r *http.Request) string {
		peer := parseIP(r.RemoteAddr)
		if len(nets) > 0 && !containsIP(nets, peer) {
			return peer.String()
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(r.Header.Get("X-Real-IP")); ip != nil {
			return ip.String()
		}
		return peer.String()
	}
}

func parseNets(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, e := range entries {
		if !strings.Contains(e, "/") {
			if ip := net.ParseIP(e); ip != nil && ip.To4() != nil {
				e += "/32"
			} else {
				e += "/128"
			}
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}

func containsIP(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func parseIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
