package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"packvault-autosell-api/internal/metrics"
	"packvault-autosell-api/pkg/apierror"

	"golang.org/x/time/rate"
)

// Action is a rate-limited class of request.
type Action int

const (
	ActionPreview Action = iota
	ActionProcess
	ActionSellItem
	ActionProtect
	ActionStats
	actionCount
)

func (a Action) String() string {
	switch a {
	case ActionPreview:
		return "preview"
	case ActionProcess:
		return "process"
	case ActionSellItem:
		return "sell_item"
	case ActionProtect:
		return "protect"
	case ActionStats:
		return "stats"
	default:
		return "unknown"
	}
}

// Limit is the token bucket of one action.
type Limit struct {
	Every time.Duration
	Burst int
}

// DefaultLimits is the per-user budget of each action.
var DefaultLimits = [actionCount]Limit{
	ActionPreview:  {Every: time.Second, Burst: 10},
	ActionProcess:  {Every: 10 * time.Second, Burst: 2},
	ActionSellItem: {Every: 200 * time.Millisecond, Burst: 20},
	ActionProtect:  {Every: 200 * time.Millisecond, Burst: 20},
	ActionStats:    {Every: time.Second, Burst: 10},
}

type limiterKey struct {
	action Action
	caller string
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller and action.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[limiterKey]*limiterEntry
	limits    [actionCount]Limit
	idleAfter time.Duration
	now       func() time.Time
}

// NewRateLimiter creates a rate limiter. Buckets idle for idleAfter are
// dropped by Sweep.
func NewRateLimiter(limits [actionCount]Limit, idleAfter time.Duration) *RateLimiter {
	if idleAfter <= 0 {
		idleAfter = 10 * time.Minute
	}
	return &RateLimiter{
		limiters:  make(map[limiterKey]*limiterEntry),
		limits:    limits,
		idleAfter: idleAfter,
		now:       time.Now,
	}
}

// Allow reports whether caller may perform action now.
func (rl *RateLimiter) Allow(action Action, caller string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	key := limiterKey{action: action, caller: caller}
	entry, exists := rl.limiters[key]
	if !exists {
		l := rl.limits[action]
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(l.Every), l.Burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Limit returns a middleware enforcing the budget of action.
func (rl *RateLimiter) Limit(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Use user ID if authenticated, otherwise the client address
			caller := GetUserID(r.Context())
			if caller == "" {
				caller = clientAddr(r)
			}

			if !rl.Allow(action, caller) {
				metrics.RecordRateLimited(action.String())
				w.Header().Set("Retry-After", "1")
				writeError(w, apierror.TooManyRequests(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sweep removes buckets idle longer than idleAfter and returns how many.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleAfter)
	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
