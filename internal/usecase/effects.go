package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
)

// Built-in conditions and effects. The core components never call each
// other; these constructors are the caller-side composition layer that
// closes over whichever components a deployment wires together. Each
// reads the fields it needs from the action's opaque params blob.

// AlwaysCondition gates nothing.
func AlwaysCondition() ports.ConditionFunc {
	return func(ctx context.Context, action *domain.Action) (bool, error) {
		return true, nil
	}
}

type tallyParams struct {
	TallyID uint64 `json:"tally_id"`
}

// TallyPassedCondition is met once the referenced tally has resolved
// Passed. An unresolved tally keeps the action pending and retryable; a
// failed tally never satisfies the condition, so the action eventually
// expires and its escrow returns to the creator.
func TallyPassedCondition(tally *TallyUseCase) ports.ConditionFunc {
	return func(ctx context.Context, action *domain.Action) (bool, error) {
		var p tallyParams
		if err := json.Unmarshal(action.Params, &p); err != nil {
			return false, fmt.Errorf("invalid tally condition params: %w", err)
		}
		view, err := tally.Get(p.TallyID)
		if err != nil {
			return false, err
		}
		return view.Resolved && view.Outcome == domain.OutcomePassed, nil
	}
}

type entityStatusParams struct {
	EntityID uint64        `json:"entity_id"`
	Status   domain.Status `json:"status"`
}

// EntityStatusCondition is met while the referenced record sits in the
// given status.
func EntityStatusCondition(registry *RegistryUseCase) ports.ConditionFunc {
	return func(ctx context.Context, action *domain.Action) (bool, error) {
		var p entityStatusParams
		if err := json.Unmarshal(action.Params, &p); err != nil {
			return false, fmt.Errorf("invalid entity condition params: %w", err)
		}
		rec, err := registry.Get(p.EntityID)
		if err != nil {
			return false, err
		}
		return rec.Status == p.Status, nil
	}
}

// NoopEffect does nothing; the action is pure state.
func NoopEffect() ports.EffectFunc {
	return func(ctx context.Context, action *domain.Action) error {
		return nil
	}
}

type transferParams struct {
	From         domain.Principal    `json:"from"`
	To           domain.Principal    `json:"to"`
	Denomination domain.Denomination `json:"denomination"`
	Amount       uint64              `json:"amount"`
}

// TransferEffect moves ledger funds when the action fires. The transfer
// commits as its own journaled ledger operation, so it is naturally
// idempotent across replay.
func TransferEffect(ledger *LedgerUseCase) ports.EffectFunc {
	return func(ctx context.Context, action *domain.Action) error {
		var p transferParams
		if err := json.Unmarshal(action.Params, &p); err != nil {
			return fmt.Errorf("invalid transfer effect params: %w", err)
		}
		return ledger.Transfer(ctx, action.Creator, p.From, p.To, p.Denomination, p.Amount)
	}
}

type transitionParams struct {
	EntityID uint64        `json:"entity_id"`
	Status   domain.Status `json:"status"`
}

// EntityTransitionEffect drives a registry transition when the action
// fires, acting as the action's creator with the capabilities granted
// at registration time.
func EntityTransitionEffect(registry *RegistryUseCase, caps domain.CapabilitySet) ports.EffectFunc {
	return func(ctx context.Context, action *domain.Action) error {
		var p transitionParams
		if err := json.Unmarshal(action.Params, &p); err != nil {
			return fmt.Errorf("invalid transition effect params: %w", err)
		}
		return registry.Transition(ctx, p.EntityID, p.Status, action.Creator, caps)
	}
}

// BalanceWeight resolves a voter's weight as their spendable balance in
// the given denomination.
func BalanceWeight(ledger *LedgerUseCase, denomination domain.Denomination) ports.WeightFunc {
	return func(ctx context.Context, voter domain.Principal) (uint64, error) {
		return ledger.BalanceOf(voter, denomination), nil
	}
}

// SupermajorityEarlyRule permits resolution before the deadline once
// the yes share of cast votes reaches num/den with at least minVoters
// ballots in.
func SupermajorityEarlyRule(num, den uint32, minVoters int) ports.EarlyRuleFunc {
	return func(view domain.TallyView) bool {
		if view.VoterCount < minVoters {
			return false
		}
		total := view.WeightYes + view.WeightNo
		if total == 0 {
			return false
		}
		return domain.QuorumReached(view.WeightYes, total, num, den)
	}
}
