package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/veracore/veracore/internal/ports"
	"github.com/veracore/veracore/internal/service/logger"
)

// RateLimits holds the per-window request budgets. The token endpoint
// gets a tighter budget than the general API because it is the
// credential-guessing surface.
type RateLimits struct {
	TokenRequests   int
	TokenWindow     time.Duration
	GeneralRequests int
	GeneralWindow   time.Duration
	BlockDuration   time.Duration
}

// DefaultRateLimits are the budgets used when configuration leaves a
// field zero.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		TokenRequests:   10,
		TokenWindow:     15 * time.Minute,
		GeneralRequests: 300,
		GeneralWindow:   time.Minute,
		BlockDuration:   15 * time.Minute,
	}
}

func (l RateLimits) withDefaults() RateLimits {
	d := DefaultRateLimits()
	if l.TokenRequests <= 0 {
		l.TokenRequests = d.TokenRequests
	}
	if l.TokenWindow <= 0 {
		l.TokenWindow = d.TokenWindow
	}
	if l.GeneralRequests <= 0 {
		l.GeneralRequests = d.GeneralRequests
	}
	if l.GeneralWindow <= 0 {
		l.GeneralWindow = d.GeneralWindow
	}
	if l.BlockDuration <= 0 {
		l.BlockDuration = d.BlockDuration
	}
	return l
}

// RateLimitMiddleware bounds request rates per client IP, with a
// tighter budget on the token endpoint.
type RateLimitMiddleware struct {
	service ports.RateLimitService
	limits  RateLimits
	logger  logger.Logger
}

func NewRateLimitMiddleware(service ports.RateLimitService, limits RateLimits, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{service: service, limits: limits.withDefaults(), logger: log}
}

func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := clientIP(r)

		var key string
		var limit int
		var window time.Duration
		switch {
		case strings.HasSuffix(r.URL.Path, "/auth/token"):
			key = fmt.Sprintf("token:ip:%s", ip)
			limit = m.limits.TokenRequests
			window = m.limits.TokenWindow
		default:
			key = fmt.Sprintf("general:ip:%s", ip)
			limit = m.limits.GeneralRequests
			window = m.limits.GeneralWindow
		}

		blocked, err := m.service.IsBlocked(ctx, key)
		if err != nil {
			m.logger.Error(ctx, "failed to check block status", err, map[string]interface{}{"key": key})
			// Fail open: limiting is protection, not correctness.
		}
		if blocked {
			m.writeLimited(w)
			return
		}

		allowed, err := m.service.CheckLimit(ctx, key, limit, window)
		if err != nil {
			m.logger.Error(ctx, "failed to check rate limit", err, map[string]interface{}{"key": key})
		}
		if !allowed {
			if err := m.service.Block(ctx, key, m.limits.BlockDuration, "rate limit exceeded"); err != nil {
				m.logger.Error(ctx, "failed to block client", err, map[string]interface{}{"key": key})
			}
			m.logger.Warn(ctx, "rate limit exceeded", map[string]interface{}{
				"ip":   ip,
				"path": r.URL.Path,
			})
			m.writeLimited(w)
			return
		}

		// Spend one unit of the window budget before serving.
		if err := m.service.Increment(ctx, key, window); err != nil {
			m.logger.Error(ctx, "failed to count request", err, map[string]interface{}{"key": key})
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) writeLimited(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.Itoa(int(m.limits.BlockDuration.Seconds())))
	writeJSON(w, http.StatusTooManyRequests, Envelope{
		Status:  false,
		Message: "too many requests",
		Error:   &ErrorBody{Code: "RATE_LIMITED", Retryable: true},
	})
}
