package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
	"github.com/veracore/veracore/internal/service/logger"
)

// Recovery rebuilds all four aggregates from the journal. Events are
// deterministic descriptions of committed operations, so replaying them
// in sequence order reproduces the exact pre-crash state, including
// monotonic id counters and terminal outcomes. Effect callbacks are
// never re-run during replay; an executed action replays as its
// recorded state change plus escrow release only.
//
// Run replay after kind registration and before serving traffic.
type Recovery struct {
	ledger   *LedgerUseCase
	registry *RegistryUseCase
	queue    *QueueUseCase
	tally    *TallyUseCase
	journal  ports.Journal
	logger   logger.Logger
}

// NewRecovery wires a replayer over the four components.
func NewRecovery(ledger *LedgerUseCase, registry *RegistryUseCase,
	queue *QueueUseCase, tally *TallyUseCase, journal ports.Journal, log logger.Logger) *Recovery {
	return &Recovery{
		ledger:   ledger,
		registry: registry,
		queue:    queue,
		tally:    tally,
		journal:  journal,
		logger:   log,
	}
}

// Replay applies every journaled event to the in-memory aggregates.
func (r *Recovery) Replay(ctx context.Context) error {
	count := 0
	err := r.journal.Replay(ctx, func(ev *ports.Event) error {
		if err := r.apply(ev); err != nil {
			return fmt.Errorf("replay failed at seq %d (%s): %w", ev.Seq, ev.Kind, err)
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.Info(ctx, "journal replay complete", map[string]interface{}{"events": count})
	return nil
}

func (r *Recovery) apply(ev *ports.Event) error {
	switch ev.Kind {
	case evLedgerCredit:
		var e creditEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		return r.ledger.ledger.Credit(e.Principal, e.Denomination, e.Amount)

	case evLedgerDebit:
		var e debitEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		return r.ledger.ledger.Debit(e.Principal, e.Denomination, e.Amount)

	case evLedgerTransfer:
		var e transferEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		return r.ledger.ledger.Transfer(e.From, e.To, e.Denomination, e.Amount)

	case evLedgerBurn:
		var e burnEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		return r.ledger.ledger.Burn(e.Principal, e.Denomination, e.Amount)

	case evEntityCreated:
		var e entityCreatedEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		id, err := r.registry.registry.Create(e.Kind, e.Owner, e.Payload, e.CreatedAt)
		if err != nil {
			return err
		}
		if id != e.ID {
			return fmt.Errorf("id drift: journal says %d, replay produced %d", e.ID, id)
		}
		return nil

	case evEntityTransitioned:
		var e entityTransitionedEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		return r.registry.registry.Transition(e.ID, e.Target, e.Actor,
			domain.NewCapabilitySet(e.Capabilities...), e.At)

	case evActionScheduled:
		var e actionScheduledEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		id, err := r.queue.queue.Schedule(e.Creator, e.NotBefore, e.NotAfter,
			e.Condition, e.Effect, e.Params, e.Escrow, e.CreatedAt)
		if err != nil {
			return err
		}
		if id != e.ID {
			return fmt.Errorf("id drift: journal says %d, replay produced %d", e.ID, id)
		}
		if e.Escrow != nil {
			return r.ledger.ledger.Hold(e.Escrow.Principal, e.Escrow.Denomination, e.Escrow.Amount)
		}
		return nil

	case evActionExecuted:
		var e actionExecutedEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		action, err := r.queue.queue.Get(e.ID)
		if err != nil {
			return err
		}
		if err := r.queue.queue.MarkExecuted(e.ID, e.Executor, e.At); err != nil {
			return err
		}
		if action.Escrow != nil {
			return r.ledger.ledger.Release(e.Executor, action.Escrow.Denomination, action.Escrow.Amount)
		}
		return nil

	case evActionCancelled:
		var e actionCancelledEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		action, err := r.queue.queue.Get(e.ID)
		if err != nil {
			return err
		}
		if err := r.queue.queue.MarkCancelled(e.ID, e.Actor, e.At); err != nil {
			return err
		}
		if action.Escrow != nil {
			return r.ledger.ledger.Release(action.Creator, action.Escrow.Denomination, action.Escrow.Amount)
		}
		return nil

	case evActionExpired:
		var e actionExpiredEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		action, err := r.queue.queue.Get(e.ID)
		if err != nil {
			return err
		}
		if err := r.queue.queue.MarkExpired(e.ID, e.At); err != nil {
			return err
		}
		if action.Escrow != nil {
			return r.ledger.ledger.Release(action.Creator, action.Escrow.Denomination, action.Escrow.Amount)
		}
		return nil

	case evTallyOpened:
		var e tallyOpenedEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		id, err := r.tally.book.Open(e.QuorumNumerator, e.QuorumDenominator, e.Deadline, e.EarlyRule, e.CreatedAt)
		if err != nil {
			return err
		}
		if id != e.ID {
			return fmt.Errorf("id drift: journal says %d, replay produced %d", e.ID, id)
		}
		return nil

	case evTallyVoteCast:
		var e voteCastEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		return r.tally.book.CastVote(e.ID, e.Voter, e.Weight, e.Choice, e.At)

	case evTallyResolved:
		var e tallyResolvedEvent
		if err := json.Unmarshal(ev.Payload, &e); err != nil {
			return err
		}
		_, err := r.tally.book.Resolve(e.ID, e.At, e.Early)
		return err

	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}
