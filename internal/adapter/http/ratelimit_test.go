package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracore/veracore/internal/service/logger"
)

// countingLimiter is a deterministic in-memory stand-in for the redis
// limiter: allows while the counter is below the limit, and records
// every Increment and Block call.
type countingLimiter struct {
	counts     map[string]int
	blocked    map[string]bool
	increments int
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{counts: make(map[string]int), blocked: make(map[string]bool)}
}

func (l *countingLimiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.counts[key] < limit, nil
}

func (l *countingLimiter) Increment(ctx context.Context, key string, window time.Duration) error {
	l.counts[key]++
	l.increments++
	return nil
}

func (l *countingLimiter) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	l.blocked[key] = true
	return nil
}

func (l *countingLimiter) IsBlocked(ctx context.Context, key string) (bool, error) {
	return l.blocked[key], nil
}

func limitedRouter(limiter *countingLimiter, limits RateLimits) *mux.Router {
	router := mux.NewRouter()
	ok := func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, "ok", nil)
	}
	router.HandleFunc("/v1/auth/token", ok).Methods("POST")
	router.HandleFunc("/api/v1/ledger/supply/COIN", ok).Methods("GET")
	router.Use(NewRateLimitMiddleware(limiter, limits, logger.Noop()).RateLimit)
	return router
}

func hit(router *mux.Router, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "198.51.100.7:4242"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_DeniesAfterBudget(t *testing.T) {
	limiter := newCountingLimiter()
	router := limitedRouter(limiter, RateLimits{TokenRequests: 3, TokenWindow: 15 * time.Minute})

	// Each served request spends one unit of the window budget, so a
	// burst from one IP is cut off at the configured limit.
	for i := 0; i < 3; i++ {
		w := hit(router, "POST", "/v1/auth/token")
		require.Equal(t, http.StatusOK, w.Code, "request %d within budget", i+1)
	}
	assert.Equal(t, 3, limiter.increments)

	w := hit(router, "POST", "/v1/auth/token")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "900", w.Header().Get("Retry-After"))
	assert.Equal(t, 3, limiter.increments, "denied requests are not counted")
	assert.True(t, limiter.blocked["token:ip:198.51.100.7"], "exceeding the budget blocks the key")
}

func TestRateLimitMiddleware_BlockListShortCircuits(t *testing.T) {
	limiter := newCountingLimiter()
	limiter.blocked["general:ip:198.51.100.7"] = true
	router := limitedRouter(limiter, RateLimits{})

	w := hit(router, "GET", "/api/v1/ledger/supply/COIN")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 0, limiter.increments, "blocked clients never reach the counter")
}

func TestRateLimitMiddleware_BudgetsArePerEndpointClass(t *testing.T) {
	limiter := newCountingLimiter()
	router := limitedRouter(limiter, RateLimits{TokenRequests: 1, GeneralRequests: 100})

	w := hit(router, "POST", "/v1/auth/token")
	require.Equal(t, http.StatusOK, w.Code)
	w = hit(router, "POST", "/v1/auth/token")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// The general budget is separate, so the same IP still reads.
	w = hit(router, "GET", "/api/v1/ledger/supply/COIN")
	assert.Equal(t, http.StatusOK, w.Code)
}
