package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
	"github.com/veracore/veracore/internal/service/logger"
)

// QueueUseCase serialises scheduled-action mutation. Escrow is a real
// balance movement through the ledger's Hold/Release custody
// operations; when both components mutate in one operation the lock
// order is always queue then ledger, never the reverse.
//
// Condition and effect callbacks run while only the queue lock is held.
// They may call other components (that is how the caller composes the
// engine) but must never call back into the queue: a mutating operation
// does not re-enter its own component before its state change commits.
type QueueUseCase struct {
	mu         sync.Mutex
	queue      *domain.Queue
	ledger     *LedgerUseCase
	journal    ports.Journal
	clock      ports.Clock
	logger     logger.Logger
	conditions map[string]ports.ConditionFunc
	effects    map[string]ports.EffectFunc
}

// NewQueueUseCase creates an empty queue component backed by the given
// ledger for escrow custody.
func NewQueueUseCase(ledger *LedgerUseCase, journal ports.Journal, clock ports.Clock, log logger.Logger) *QueueUseCase {
	return &QueueUseCase{
		queue:      domain.NewQueue(),
		ledger:     ledger,
		journal:    journal,
		clock:      clock,
		logger:     log,
		conditions: make(map[string]ports.ConditionFunc),
		effects:    make(map[string]ports.EffectFunc),
	}
}

// RegisterCondition installs a named execution gate.
func (u *QueueUseCase) RegisterCondition(name string, fn ports.ConditionFunc) {
	u.conditions[name] = fn
}

// RegisterEffect installs a named payload effect.
func (u *QueueUseCase) RegisterEffect(name string, fn ports.EffectFunc) {
	u.effects[name] = fn
}

// Schedule creates a pending action. When escrow is given, the payer's
// balance moves into the action's custody before the id is returned;
// if the funds are insufficient, no action is created.
func (u *QueueUseCase) Schedule(ctx context.Context, creator domain.Principal,
	notBefore time.Time, notAfter *time.Time, condition, effect string,
	params []byte, escrow *domain.Escrow) (uint64, error) {
	if condition != "" {
		if _, ok := u.conditions[condition]; !ok {
			return 0, &domain.Error{Kind: domain.KindInvalidPayload,
				Message: fmt.Sprintf("unknown condition %q", condition)}
		}
	}
	if effect != "" {
		if _, ok := u.effects[effect]; !ok {
			return 0, &domain.Error{Kind: domain.KindInvalidPayload,
				Message: fmt.Sprintf("unknown effect %q", effect)}
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.queue.CanSchedule(notBefore, notAfter, escrow); err != nil {
		return 0, err
	}
	if escrow != nil {
		u.ledger.mu.Lock()
		defer u.ledger.mu.Unlock()
		if err := u.ledger.ledger.CanHold(escrow.Principal, escrow.Denomination, escrow.Amount); err != nil {
			u.logger.Warn(ctx, "schedule rejected, escrow not coverable", map[string]interface{}{
				"creator":      creator,
				"principal":    escrow.Principal,
				"denomination": escrow.Denomination,
				"amount":       escrow.Amount,
				"reason":       err.Error(),
			})
			return 0, err
		}
	}

	now := u.clock.Now()
	id := u.queue.PeekNextID()
	if err := appendEvent(ctx, u.journal, evActionScheduled, creator, now, actionScheduledEvent{
		ID:        id,
		Creator:   creator,
		NotBefore: notBefore,
		NotAfter:  notAfter,
		Condition: condition,
		Effect:    effect,
		Params:    params,
		Escrow:    escrow,
		CreatedAt: now,
	}); err != nil {
		return 0, err
	}
	id, _ = u.queue.Schedule(creator, notBefore, notAfter, condition, effect, params, escrow, now)
	if escrow != nil {
		_ = u.ledger.ledger.Hold(escrow.Principal, escrow.Denomination, escrow.Amount)
	}

	u.logger.Info(ctx, "action scheduled", map[string]interface{}{
		"id":         id,
		"creator":    creator,
		"not_before": notBefore,
		"escrowed":   escrow != nil,
	})
	return id, nil
}

// TryExecute attempts the action. Anyone may call it. The result is
// exactly-once: after a successful execution every further call
// returns the cached executed action without re-running the payload or
// re-releasing escrow. ConditionNotMet and TooEarly leave the action
// pending and are retryable; crossing the expiry window finalises the
// action as Expired and returns the escrow to its creator.
func (u *QueueUseCase) TryExecute(ctx context.Context, id uint64, executor domain.Principal) (domain.Action, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.clock.Now()
	switch err := u.queue.CheckExecutable(id, now); {
	case err == nil:
	case domain.IsKind(err, domain.KindAlreadyResolved):
		a, _ := u.queue.Get(id)
		u.logger.Debug(ctx, "action already executed, returning cached result", map[string]interface{}{"id": id})
		return a, nil
	case domain.IsKind(err, domain.KindExpired):
		return u.expireLocked(ctx, id, now)
	default:
		if domain.Retryable(err) {
			u.logger.Debug(ctx, "action not executable yet", map[string]interface{}{
				"id":     id,
				"reason": err.Error(),
			})
		}
		return domain.Action{}, err
	}

	action, _ := u.queue.Get(id)
	if action.Condition != "" {
		met, err := u.conditions[action.Condition](ctx, &action)
		if err != nil {
			return domain.Action{}, fmt.Errorf("condition %q failed: %w", action.Condition, err)
		}
		if !met {
			u.logger.Debug(ctx, "action condition not met", map[string]interface{}{
				"id":        id,
				"condition": action.Condition,
			})
			return domain.Action{}, domain.ErrConditionNotMet
		}
	}

	// The effect runs before the Executed commit; on failure the action
	// stays pending and no escrow moves.
	if action.Effect != "" {
		if err := u.effects[action.Effect](ctx, &action); err != nil {
			u.logger.Error(ctx, "action effect failed", err, map[string]interface{}{
				"id":     id,
				"effect": action.Effect,
			})
			return domain.Action{}, fmt.Errorf("effect %q failed: %w", action.Effect, err)
		}
	}

	if action.Escrow != nil {
		u.ledger.mu.Lock()
		defer u.ledger.mu.Unlock()
		if err := u.ledger.ledger.CanRelease(executor, action.Escrow.Denomination, action.Escrow.Amount); err != nil {
			return domain.Action{}, err
		}
	}
	if err := appendEvent(ctx, u.journal, evActionExecuted, executor, now,
		actionExecutedEvent{ID: id, Executor: executor, At: now}); err != nil {
		return domain.Action{}, err
	}
	_ = u.queue.MarkExecuted(id, executor, now)
	if action.Escrow != nil {
		_ = u.ledger.ledger.Release(executor, action.Escrow.Denomination, action.Escrow.Amount)
	}

	u.logger.Info(ctx, "action executed", map[string]interface{}{
		"id":       id,
		"executor": executor,
	})
	result, _ := u.queue.Get(id)
	return result, nil
}

// expireLocked finalises an action whose window has passed, releasing
// escrow back to the creator. Callers hold the queue lock.
func (u *QueueUseCase) expireLocked(ctx context.Context, id uint64, now time.Time) (domain.Action, error) {
	action, err := u.queue.Get(id)
	if err != nil {
		return domain.Action{}, err
	}
	if action.Escrow != nil {
		u.ledger.mu.Lock()
		defer u.ledger.mu.Unlock()
		if err := u.ledger.ledger.CanRelease(action.Creator, action.Escrow.Denomination, action.Escrow.Amount); err != nil {
			return domain.Action{}, err
		}
	}
	if err := appendEvent(ctx, u.journal, evActionExpired, action.Creator, now,
		actionExpiredEvent{ID: id, At: now}); err != nil {
		return domain.Action{}, err
	}
	_ = u.queue.MarkExpired(id, now)
	if action.Escrow != nil {
		_ = u.ledger.ledger.Release(action.Creator, action.Escrow.Denomination, action.Escrow.Amount)
	}

	u.logger.Info(ctx, "action expired", map[string]interface{}{"id": id})
	result, _ := u.queue.Get(id)
	return result, domain.ErrExpired
}

// Cancel finalises a pending action at its creator's request, returning
// escrow in full.
func (u *QueueUseCase) Cancel(ctx context.Context, id uint64, actor domain.Principal) (domain.Action, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.queue.CanCancel(id, actor); err != nil {
		u.logger.Warn(ctx, "cancel rejected", map[string]interface{}{
			"id":     id,
			"actor":  actor,
			"reason": err.Error(),
		})
		return domain.Action{}, err
	}
	action, _ := u.queue.Get(id)
	if action.Escrow != nil {
		u.ledger.mu.Lock()
		defer u.ledger.mu.Unlock()
		if err := u.ledger.ledger.CanRelease(action.Creator, action.Escrow.Denomination, action.Escrow.Amount); err != nil {
			return domain.Action{}, err
		}
	}
	now := u.clock.Now()
	if err := appendEvent(ctx, u.journal, evActionCancelled, actor, now,
		actionCancelledEvent{ID: id, Actor: actor, At: now}); err != nil {
		return domain.Action{}, err
	}
	_ = u.queue.MarkCancelled(id, actor, now)
	if action.Escrow != nil {
		_ = u.ledger.ledger.Release(action.Creator, action.Escrow.Denomination, action.Escrow.Amount)
	}

	u.logger.Info(ctx, "action cancelled", map[string]interface{}{"id": id, "actor": actor})
	result, _ := u.queue.Get(id)
	return result, nil
}

// Get returns a copy of the action.
func (u *QueueUseCase) Get(id uint64) (domain.Action, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.queue.Get(id)
}
