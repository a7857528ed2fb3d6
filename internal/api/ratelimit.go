package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ridelens/ridelens/internal/observability"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

// ClientLimiter is a per-client token bucket keyed by remote IP.
type ClientLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter returns nil when rps is not positive, which disables
// limiting.
func NewClientLimiter(rps float64, burst int) *ClientLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &ClientLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow reports whether the client may proceed and, if not, how long it
// should wait.
func (l *ClientLimiter) Allow(client string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) > limiterSweepInterval {
		for key, entry := range l.clients {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}
	entry, ok := l.clients[client]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[client] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware rejects over-limit requests through reject.
func (l *ClientLimiter) Middleware(reject func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, delay := l.Allow(clientIP(r))
			if !allowed {
				observability.IncrementChatRateLimited()
				if delay > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
				}
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses RemoteAddr only; forwarding headers are client-controlled.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
