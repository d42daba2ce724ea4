package ports

import (
	"context"
	"time"

	"github.com/veracore/veracore/internal/domain"
)

// TokenClaims is the identity a validated bearer token carries.
type TokenClaims struct {
	Principal    domain.Principal
	Capabilities []domain.Capability
}

// TokenService issues and validates bearer tokens for API callers.
type TokenService interface {
	Issue(claims TokenClaims) (string, error)
	Validate(token string) (*TokenClaims, error)
}

// RateLimitService bounds request rates per key. Implementations may be
// backed by Redis or be a noop when limiting is disabled.
type RateLimitService interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Increment(ctx context.Context, key string, window time.Duration) error
	Block(ctx context.Context, key string, duration time.Duration, reason string) error
	IsBlocked(ctx context.Context, key string) (bool, error)
}

// SecretVerifier checks an operator secret against its stored hash.
type SecretVerifier interface {
	Verify(secret, hash string) (bool, error)
}

// WeightFunc resolves a voter's weight (stake, reputation, balance)
// when the caller does not supply one explicitly.
type WeightFunc func(ctx context.Context, voter domain.Principal) (uint64, error)

// ConditionFunc is a caller-supplied execution gate for a scheduled
// action. Returning false keeps the action pending and retryable; an
// error is surfaced unchanged and changes nothing.
type ConditionFunc func(ctx context.Context, action *domain.Action) (bool, error)

// EffectFunc is a caller-supplied payload effect. It runs before the
// action commits to Executed; on error the action stays pending and no
// escrow moves. Effects must not call back into the queue and should be
// idempotent, since a crash between a successful effect and the commit
// re-runs the effect on retry.
type EffectFunc func(ctx context.Context, action *domain.Action) error

// EarlyRuleFunc is a caller-supplied early-resolution rule. When it
// returns true the tally may resolve before its deadline.
type EarlyRuleFunc func(view domain.TallyView) bool
