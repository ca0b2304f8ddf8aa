// Package ratelimit limite le débit par adresse IP (token bucket).
package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// durée sans requête après laquelle un limiteur est oublié
const idleTTL = 5 * time.Minute

type visitor struct {
	limiter *rate.Limiter
	expires time.Time
}

type Limiter struct {
	limit  rate.Limit
	burst  int
	logger *slog.Logger

	mu       sync.Mutex
	visitors map[string]*visitor
}

// New autorise requests requêtes par fenêtre, en rafale au plus requests.
func New(requests int, window time.Duration, logger *slog.Logger) *Limiter {
	if requests < 1 {
		requests = 1
	}
	return &Limiter{
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		logger:   logger,
		visitors: make(map[string]*visitor),
	}
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for k, v := range l.visitors {
		if now.After(v.expires) {
			delete(l.visitors, k)
		}
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.expires = now.Add(idleTTL)
	return v.limiter.AllowN(now, 1)
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.Allow(ip) {
			l.logger.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
