package middleware

import (
	"net/http"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// Throttle counts mutating requests per client in fixed windows.
type Throttle struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewThrottle allows limit requests per period per client. A limit of zero
// or less disables throttling.
func NewThrottle(limit int, period time.Duration) *Throttle {
	return &Throttle{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow reports whether key may make another request in the current window.
func (t *Throttle) Allow(key string) bool {
	if t.limit <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	w, ok := t.windows[key]
	if !ok || !now.Before(w.resetAt) {
		t.windows[key] = &window{count: 1, resetAt: now.Add(t.period)}
		return true
	}
	w.count++
	return w.count <= t.limit
}

// Prune drops windows that have ended.
func (t *Throttle) Prune() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, w := range t.windows {
		if !now.Before(w.resetAt) {
			delete(t.windows, key)
		}
	}
}

// Writes applies the throttle to every request except GET, HEAD and
// OPTIONS, keyed by client address.
func (t *Throttle) Writes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if !t.Allow(RealIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"too many requests"}` + "\n"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
