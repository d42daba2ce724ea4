package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
	"github.com/veracore/veracore/internal/service/logger"
)

// Journal event kinds. One event per committed mutating operation.
const (
	evLedgerCredit   = "ledger.credit"
	evLedgerDebit    = "ledger.debit"
	evLedgerTransfer = "ledger.transfer"
	evLedgerBurn     = "ledger.burn"

	evEntityCreated      = "entity.created"
	evEntityTransitioned = "entity.transitioned"

	evActionScheduled = "action.scheduled"
	evActionExecuted  = "action.executed"
	evActionCancelled = "action.cancelled"
	evActionExpired   = "action.expired"

	evTallyOpened   = "tally.opened"
	evTallyVoteCast = "tally.vote_cast"
	evTallyResolved = "tally.resolved"
)

type creditEvent struct {
	Principal    domain.Principal    `json:"principal"`
	Denomination domain.Denomination `json:"denomination"`
	Amount       uint64              `json:"amount"`
}

type debitEvent creditEvent

type burnEvent creditEvent

type transferEvent struct {
	From         domain.Principal    `json:"from"`
	To           domain.Principal    `json:"to"`
	Denomination domain.Denomination `json:"denomination"`
	Amount       uint64              `json:"amount"`
}

type entityCreatedEvent struct {
	ID        uint64           `json:"id"`
	Kind      domain.Kind      `json:"kind"`
	Owner     domain.Principal `json:"owner"`
	Payload   []byte           `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type entityTransitionedEvent struct {
	ID           uint64              `json:"id"`
	Target       domain.Status       `json:"target"`
	Actor        domain.Principal    `json:"actor"`
	Capabilities []domain.Capability `json:"capabilities,omitempty"`
	At           time.Time           `json:"at"`
}

type actionScheduledEvent struct {
	ID        uint64           `json:"id"`
	Creator   domain.Principal `json:"creator"`
	NotBefore time.Time        `json:"not_before"`
	NotAfter  *time.Time       `json:"not_after,omitempty"`
	Condition string           `json:"condition,omitempty"`
	Effect    string           `json:"effect,omitempty"`
	Params    []byte           `json:"params,omitempty"`
	Escrow    *domain.Escrow   `json:"escrow,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type actionExecutedEvent struct {
	ID       uint64           `json:"id"`
	Executor domain.Principal `json:"executor"`
	At       time.Time        `json:"at"`
}

type actionCancelledEvent struct {
	ID    uint64           `json:"id"`
	Actor domain.Principal `json:"actor"`
	At    time.Time        `json:"at"`
}

type actionExpiredEvent struct {
	ID uint64    `json:"id"`
	At time.Time `json:"at"`
}

type tallyOpenedEvent struct {
	ID                uint64    `json:"id"`
	QuorumNumerator   uint32    `json:"quorum_numerator"`
	QuorumDenominator uint32    `json:"quorum_denominator"`
	Deadline          time.Time `json:"deadline"`
	EarlyRule         string    `json:"early_rule,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type voteCastEvent struct {
	ID     uint64            `json:"id"`
	Voter  domain.Principal  `json:"voter"`
	Weight uint64            `json:"weight"`
	Choice domain.VoteChoice `json:"choice"`
	At     time.Time         `json:"at"`
}

type tallyResolvedEvent struct {
	ID    uint64    `json:"id"`
	Early bool      `json:"early"`
	At    time.Time `json:"at"`
}

// appendEvent commits one operation to the journal. It runs after all
// preconditions passed and before the in-memory apply, so a failed
// append leaves the engine byte-for-byte unchanged.
func appendEvent(ctx context.Context, journal ports.Journal, kind string,
	actor domain.Principal, now time.Time, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}
	if err := journal.Append(ctx, &ports.Event{
		ID:            uuid.NewString(),
		Kind:          kind,
		Payload:       raw,
		Actor:         actor,
		CorrelationID: logger.CorrelationIDFrom(ctx),
		RecordedAt:    now,
	}); err != nil {
		return fmt.Errorf("failed to append %s event: %w", kind, err)
	}
	return nil
}
