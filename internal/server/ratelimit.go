package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	clients map[string]*visitor
	mutex   sync.Mutex
	cleaner *time.Ticker
	stop    chan struct{}
	once    sync.Once
	now     func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleTimeout is how long a client bucket survives without requests.
const idleTimeout = 10 * time.Minute

// NewRateLimiter creates a limiter allowing perSecond requests with the
// given burst for every client. Call Stop to release the cleanup goroutine.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}

	rl := &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*visitor),
		cleaner: time.NewTicker(time.Minute),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go rl.cleanup()

	return rl
}

// Allow reports whether the client identified by key may make a request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	v, ok := rl.clients[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = v
	}
	v.lastSeen = rl.now()
	rl.mutex.Unlock()

	return v.limiter.Allow()
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			retry := 1
			if rl.limit > 0 {
				retry = int(time.Duration(float64(time.Second)/float64(rl.limit)).Seconds()) + 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error: "rate limit exceeded",
				Code:  "ERR_RATE_LIMITED",
			})

			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.stop:
			return
		case <-rl.cleaner.C:
			cutoff := rl.now().Add(-idleTimeout)
			rl.mutex.Lock()
			for key, v := range rl.clients {
				if v.lastSeen.Before(cutoff) {
					delete(rl.clients, key)
				}
			}
			rl.mutex.Unlock()
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() {
		rl.cleaner.Stop()
		close(rl.stop)
	})
}

// clientIP uses the connection address. Forwarding headers are ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
