package usecase

import (
	"context"
	"sync"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
	"github.com/veracore/veracore/internal/service/logger"
)

// LedgerUseCase serialises all balance mutation. A single mutex gives
// the same single-writer discipline the engine's source environment
// guarantees: no two mutating calls interleave on overlapping keys, and
// no mutation re-enters another mid-flight.
type LedgerUseCase struct {
	mu      sync.Mutex
	ledger  *domain.Ledger
	journal ports.Journal
	clock   ports.Clock
	logger  logger.Logger
}

// NewLedgerUseCase creates an empty ledger component.
func NewLedgerUseCase(journal ports.Journal, clock ports.Clock, log logger.Logger) *LedgerUseCase {
	return &LedgerUseCase{
		ledger:  domain.NewLedger(),
		journal: journal,
		clock:   clock,
		logger:  log,
	}
}

// Credit issues new supply to a principal.
func (u *LedgerUseCase) Credit(ctx context.Context, actor, principal domain.Principal,
	denomination domain.Denomination, amount uint64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.ledger.CanCredit(principal, denomination, amount); err != nil {
		u.logger.Warn(ctx, "credit rejected", map[string]interface{}{
			"principal":    principal,
			"denomination": denomination,
			"amount":       amount,
			"reason":       err.Error(),
		})
		return err
	}
	now := u.clock.Now()
	if err := appendEvent(ctx, u.journal, evLedgerCredit, actor, now,
		creditEvent{Principal: principal, Denomination: denomination, Amount: amount}); err != nil {
		return err
	}
	// Cannot fail: preconditions checked under the same lock.
	_ = u.ledger.Credit(principal, denomination, amount)

	u.logger.Info(ctx, "credit applied", map[string]interface{}{
		"principal":    principal,
		"denomination": denomination,
		"amount":       amount,
	})
	return nil
}

// Debit removes spendable balance without touching issued supply.
func (u *LedgerUseCase) Debit(ctx context.Context, actor, principal domain.Principal,
	denomination domain.Denomination, amount uint64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.ledger.CanDebit(principal, denomination, amount); err != nil {
		u.logger.Warn(ctx, "debit rejected", map[string]interface{}{
			"principal":    principal,
			"denomination": denomination,
			"amount":       amount,
			"reason":       err.Error(),
		})
		return err
	}
	now := u.clock.Now()
	if err := appendEvent(ctx, u.journal, evLedgerDebit, actor, now,
		debitEvent{Principal: principal, Denomination: denomination, Amount: amount}); err != nil {
		return err
	}
	_ = u.ledger.Debit(principal, denomination, amount)

	u.logger.Info(ctx, "debit applied", map[string]interface{}{
		"principal":    principal,
		"denomination": denomination,
		"amount":       amount,
	})
	return nil
}

// Transfer moves funds between principals; the whole movement commits
// or none of it does.
func (u *LedgerUseCase) Transfer(ctx context.Context, actor, from, to domain.Principal,
	denomination domain.Denomination, amount uint64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.ledger.CanTransfer(from, to, denomination, amount); err != nil {
		u.logger.Warn(ctx, "transfer rejected", map[string]interface{}{
			"from":         from,
			"to":           to,
			"denomination": denomination,
			"amount":       amount,
			"reason":       err.Error(),
		})
		return err
	}
	now := u.clock.Now()
	if err := appendEvent(ctx, u.journal, evLedgerTransfer, actor, now,
		transferEvent{From: from, To: to, Denomination: denomination, Amount: amount}); err != nil {
		return err
	}
	_ = u.ledger.Transfer(from, to, denomination, amount)

	u.logger.Info(ctx, "transfer applied", map[string]interface{}{
		"from":         from,
		"to":           to,
		"denomination": denomination,
		"amount":       amount,
	})
	return nil
}

// Burn retires supply from a principal's balance.
func (u *LedgerUseCase) Burn(ctx context.Context, actor, principal domain.Principal,
	denomination domain.Denomination, amount uint64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.ledger.CanBurn(principal, denomination, amount); err != nil {
		u.logger.Warn(ctx, "burn rejected", map[string]interface{}{
			"principal":    principal,
			"denomination": denomination,
			"amount":       amount,
			"reason":       err.Error(),
		})
		return err
	}
	now := u.clock.Now()
	if err := appendEvent(ctx, u.journal, evLedgerBurn, actor, now,
		burnEvent{Principal: principal, Denomination: denomination, Amount: amount}); err != nil {
		return err
	}
	_ = u.ledger.Burn(principal, denomination, amount)

	u.logger.Info(ctx, "burn applied", map[string]interface{}{
		"principal":    principal,
		"denomination": denomination,
		"amount":       amount,
	})
	return nil
}

// BalanceOf returns the spendable balance.
func (u *LedgerUseCase) BalanceOf(principal domain.Principal, denomination domain.Denomination) uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.BalanceOf(principal, denomination)
}

// SupplyOf returns the denomination's running counters.
func (u *LedgerUseCase) SupplyOf(denomination domain.Denomination) domain.Supply {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.SupplyOf(denomination)
}

// HoldersOf returns the principals holding a nonzero balance.
func (u *LedgerUseCase) HoldersOf(denomination domain.Denomination) []domain.Principal {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.HoldersOf(denomination)
}
