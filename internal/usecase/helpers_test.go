package usecase

import (
	"testing"
	"time"

	"github.com/veracore/veracore/internal/adapter/persistence"
	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/service/logger"
)

// fakeClock is a manually advanced clock for time-gated operations.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// engine bundles all four components over one shared journal and clock.
type engine struct {
	ledger   *LedgerUseCase
	registry *RegistryUseCase
	queue    *QueueUseCase
	tally    *TallyUseCase
	journal  *persistence.MemoryJournal
	clock    *fakeClock
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	journal := persistence.NewMemoryJournal()
	clock := newFakeClock()
	log := logger.Noop()

	ledger := NewLedgerUseCase(journal, clock, log)
	registry := NewRegistryUseCase(journal, clock, log)
	queue := NewQueueUseCase(ledger, journal, clock, log)
	tally := NewTallyUseCase(journal, clock, log, BalanceWeight(ledger, "COIN"))

	if err := registry.RegisterKind("proposal", domain.KindSpec{
		Initial: "PROPOSED",
		Transitions: map[domain.Status][]domain.Status{
			"PROPOSED": {"APPROVED", "REJECTED"},
			"APPROVED": {"ACTIVE"},
		},
		Capabilities: map[domain.TransitionKey]domain.Capability{
			{From: "PROPOSED", To: "APPROVED"}: domain.CapRegistryWrite,
		},
	}); err != nil {
		t.Fatalf("register kind: %v", err)
	}

	queue.RegisterCondition("always", AlwaysCondition())
	queue.RegisterCondition("tally_passed", TallyPassedCondition(tally))
	queue.RegisterCondition("entity_in_status", EntityStatusCondition(registry))
	queue.RegisterEffect("noop", NoopEffect())
	queue.RegisterEffect("transfer", TransferEffect(ledger))
	tally.RegisterEarlyRule("supermajority", SupermajorityEarlyRule(2, 3, 3))

	return &engine{
		ledger:   ledger,
		registry: registry,
		queue:    queue,
		tally:    tally,
		journal:  journal,
		clock:    clock,
	}
}

// conservation asserts issued - burned == sum(balances) + escrowed for
// one denomination.
func (e *engine) conservation(t *testing.T, denomination domain.Denomination) {
	t.Helper()
	var sum uint64
	for _, p := range e.ledger.HoldersOf(denomination) {
		sum += e.ledger.BalanceOf(p, denomination)
	}
	s := e.ledger.SupplyOf(denomination)
	if s.Issued-s.Burned != sum+s.Escrowed {
		t.Fatalf("conservation violated: issued=%d burned=%d balances=%d escrowed=%d",
			s.Issued, s.Burned, sum, s.Escrowed)
	}
}
