package usecase

import (
	"context"
	"sync"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
	"github.com/veracore/veracore/internal/service/logger"
)

// RegistryUseCase serialises entity record mutation. Kind registration
// happens once at construction time, before the journal is replayed,
// so replayed records always find their transition tables.
type RegistryUseCase struct {
	mu       sync.Mutex
	registry *domain.Registry
	journal  ports.Journal
	clock    ports.Clock
	logger   logger.Logger
}

// NewRegistryUseCase creates an empty registry component.
func NewRegistryUseCase(journal ports.Journal, clock ports.Clock, log logger.Logger) *RegistryUseCase {
	return &RegistryUseCase{
		registry: domain.NewRegistry(),
		journal:  journal,
		clock:    clock,
		logger:   log,
	}
}

// RegisterKind installs lifecycle rules for a kind. Not journaled:
// kinds are deployment configuration, not state.
func (u *RegistryUseCase) RegisterKind(kind domain.Kind, spec domain.KindSpec) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.registry.RegisterKind(kind, spec)
}

// Create appends a record and returns its monotonic id.
func (u *RegistryUseCase) Create(ctx context.Context, kind domain.Kind,
	owner domain.Principal, payload []byte) (uint64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.registry.CanCreate(kind, payload); err != nil {
		u.logger.Warn(ctx, "entity create rejected", map[string]interface{}{
			"kind":   kind,
			"owner":  owner,
			"reason": err.Error(),
		})
		return 0, err
	}
	now := u.clock.Now()
	id := u.registry.PeekNextID()
	if err := appendEvent(ctx, u.journal, evEntityCreated, owner, now, entityCreatedEvent{
		ID:        id,
		Kind:      kind,
		Owner:     owner,
		Payload:   payload,
		CreatedAt: now,
	}); err != nil {
		return 0, err
	}
	id, _ = u.registry.Create(kind, owner, payload, now)

	u.logger.Info(ctx, "entity created", map[string]interface{}{
		"id":    id,
		"kind":  kind,
		"owner": owner,
	})
	return id, nil
}

// Transition moves a record to the target status, enforcing the kind's
// transition table and the actor's capabilities.
func (u *RegistryUseCase) Transition(ctx context.Context, id uint64, target domain.Status,
	actor domain.Principal, caps domain.CapabilitySet) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.registry.CanTransition(id, target, actor, caps); err != nil {
		u.logger.Warn(ctx, "entity transition rejected", map[string]interface{}{
			"id":     id,
			"target": target,
			"actor":  actor,
			"reason": err.Error(),
		})
		return err
	}
	now := u.clock.Now()
	capList := make([]domain.Capability, 0, len(caps))
	for c := range caps {
		capList = append(capList, c)
	}
	if err := appendEvent(ctx, u.journal, evEntityTransitioned, actor, now, entityTransitionedEvent{
		ID:           id,
		Target:       target,
		Actor:        actor,
		Capabilities: capList,
		At:           now,
	}); err != nil {
		return err
	}
	_ = u.registry.Transition(id, target, actor, caps, now)

	u.logger.Info(ctx, "entity transitioned", map[string]interface{}{
		"id":     id,
		"target": target,
		"actor":  actor,
	})
	return nil
}

// Get returns a copy of the record, including its transition history.
func (u *RegistryUseCase) Get(id uint64) (domain.Record, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.registry.Get(id)
}

// ListByOwner returns the owner's record ids in creation order.
func (u *RegistryUseCase) ListByOwner(owner domain.Principal) []uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.registry.ListByOwner(owner)
}
