package middleware

import (
	"net/http"
	"time"

	"github.com/Kwabena/Talaria/internal/server"
)

type RateLimit struct {
	s *server.Server
}

func NewRateLimit(s *server.Server) *RateLimit {
	return &RateLimit{
		s: s,
	}
}

// Limit applies a per-actor fixed window limit. Open if Redis is down: a
// degraded limiter must not take the settlement API with it.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.s.Redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-Actor-ID")
		if key == "" {
			key = r.RemoteAddr
		}

		allowed, err := rl.s.Redis.SimpleRateLimit(r.Context(), key, rl.s.Config.Server.RateLimitPerMinute, time.Minute)
		if err != nil {
			rl.s.Logger.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
