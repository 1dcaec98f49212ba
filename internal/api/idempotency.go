package api

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayWindow      = 10 * time.Minute
	replaySweepAt     = 1024
)

// replayGuard remembers idempotency keys for a window so a resent seat
// action is refused instead of applied twice.
type replayGuard struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	seen   map[string]time.Time
}

func newReplayGuard(window time.Duration) *replayGuard {
	return &replayGuard{
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// claim records key and reports whether it was new.
func (g *replayGuard) claim(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if len(g.seen) >= replaySweepAt {
		for k, at := range g.seen {
			if now.Sub(at) > g.window {
				delete(g.seen, k)
			}
		}
	}
	if at, ok := g.seen[key]; ok && now.Sub(at) <= g.window {
		return false
	}
	g.seen[key] = now
	return true
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(idempotencyHeader))
}

// idempotencyMiddleware runs after seatMiddleware. Requests without a key
// pass through.
func (s *Server) idempotencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := idempotencyKey(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := seatFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if !s.replays.claim(claims.GameID + "/" + claims.Player + "/" + r.URL.Path + "/" + key) {
			writeError(w, http.StatusConflict, "duplicate idempotency key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
