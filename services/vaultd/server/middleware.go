package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"yzyvault/observability"
	"yzyvault/services/vaultd/api"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID propagates a caller supplied request id or mints a new one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack exposes the underlying connection for the websocket stream.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func observe(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			route := routePattern(r)
			elapsed := time.Since(start)
			observability.API().Observe(route, r.Method, recorder.status, elapsed)
			logger.Debug("request", "method", r.Method, "route", route, "status", recorder.status,
				"duration", elapsed, "requestId", requestID(r.Context()))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// RateLimit bounds requests per client. Authenticated callers are keyed by
// address, anonymous ones by remote IP.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
	idleTTL  time.Duration
}

func newRateLimiter(limit RateLimit) *rateLimiter {
	return &rateLimiter{
		limit:    limit,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
		idleTTL:  5 * time.Minute,
	}
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil || l.limit.RequestsPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := clientID(r)
		if caller, ok := CallerFrom(r.Context()); ok {
			key = caller.Hex()
		}
		if !l.obtain(key).Allow() {
			observability.API().RecordThrottle(routePattern(r), "rate")
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, api.Error{Error: "rate_limited", Message: http.StatusText(http.StatusTooManyRequests), RequestID: requestID(r.Context())})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *rateLimiter) obtain(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clockNow()
	for id, entry := range l.visitors {
		if now.Sub(entry.lastSeen) > l.idleTTL {
			delete(l.visitors, id)
		}
	}
	entry, ok := l.visitors[key]
	if !ok {
		burst := l.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(l.limit.RequestsPerMinute/60.0), burst)}
		l.visitors[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func clientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
