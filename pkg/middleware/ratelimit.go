package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// sessionLimiter is the token bucket of one session.
type sessionLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore hands out a limiter per session and forgets sessions that have
// been quiet for longer than idle.
type limiterStore struct {
	mu        sync.Mutex
	sessions  map[string]*sessionLimiter
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	nowFunc   func() time.Time
}

func newLimiterStore(rps float64, burst int, idle time.Duration) *limiterStore {
	return &limiterStore{
		sessions: make(map[string]*sessionLimiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     idle,
		nowFunc:  time.Now,
	}
}

// get returns the limiter for sessionID, creating it on first use. Idle
// sessions are swept at most once per idle interval.
func (s *limiterStore) get(sessionID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if now.Sub(s.lastSweep) > s.idle {
		for id, sl := range s.sessions {
			if now.Sub(sl.lastSeen) > s.idle {
				delete(s.sessions, id)
			}
		}
		s.lastSweep = now
	}

	sl, ok := s.sessions[sessionID]
	if !ok {
		sl = &sessionLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.sessions[sessionID] = sl
	}
	sl.lastSeen = now
	return sl.limiter
}

func (s *limiterStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RateLimit returns middleware that enforces a token bucket per shopper
// session. It must run after Session. A non-positive rps disables limiting.
// Requests over the limit get 429 Too Many Requests.
func RateLimit(rps float64, burst int, l *slog.Logger) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	return rateLimit(newLimiterStore(rps, burst, 10*time.Minute), l)
}

func rateLimit(store *limiterStore, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := logger.SessionIDFromContext(r.Context())
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !store.get(sessionID).Allow() {
				l.Warn("rate limit exceeded",
					slog.String("session_id", sessionID),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:      "RATE_LIMITED",
						Message:   "too many requests",
						RequestID: logger.CorrelationIDFromContext(r.Context()),
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
