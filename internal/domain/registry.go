package domain

import (
	"fmt"
	"time"
)

// Kind tags a record type (project, dataset, proposal, ...). The
// registry stores no business vocabulary; kinds and their rules are
// supplied by the caller at construction time.
type Kind string

// Status is a record lifecycle state. Legal movements between statuses
// come from the kind's transition table.
type Status string

// TransitionKey identifies one edge of a kind's transition table.
type TransitionKey struct {
	From Status
	To   Status
}

// PayloadValidator is a caller-supplied predicate that accepts or
// rejects a record payload for one kind. The registry itself is
// payload-agnostic.
type PayloadValidator func(payload []byte) error

// KindSpec describes the lifecycle rules for one record kind.
type KindSpec struct {
	// Initial is the status assigned to newly created records.
	Initial Status
	// Transitions maps each status to the statuses reachable from it.
	Transitions map[Status][]Status
	// Capabilities lists the capability required for specific
	// transitions. Edges without an entry require none.
	Capabilities map[TransitionKey]Capability
	// ValidatePayload, when set, gates record creation.
	ValidatePayload PayloadValidator
}

func (s KindSpec) allows(from, to Status) bool {
	for _, t := range s.Transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// TransitionEvent is one entry of a record's audit history.
type TransitionEvent struct {
	At    time.Time `json:"at"`
	Actor Principal `json:"actor"`
	From  Status    `json:"from"`
	To    Status    `json:"to"`
}

// Record is a typed registry entry. IDs are monotonic and never reused.
type Record struct {
	ID        uint64            `json:"id"`
	Kind      Kind              `json:"kind"`
	Status    Status            `json:"status"`
	Owner     Principal         `json:"owner"`
	CreatedAt time.Time         `json:"created_at"`
	Payload   []byte            `json:"payload,omitempty"`
	History   []TransitionEvent `json:"history"`
}

func (r *Record) clone() Record {
	out := *r
	out.Payload = append([]byte(nil), r.Payload...)
	out.History = append([]TransitionEvent(nil), r.History...)
	return out
}

// Registry is an append-only, monotonically-keyed store of typed
// records with status-transition validation per kind. Like the other
// aggregates it is pure in-memory state; the owning use case
// serialises access and persists events.
type Registry struct {
	kinds   map[Kind]KindSpec
	records map[uint64]*Record
	byOwner map[Principal][]uint64
	nextID  uint64
}

// NewRegistry creates an empty registry with no kinds registered.
func NewRegistry() *Registry {
	return &Registry{
		kinds:   make(map[Kind]KindSpec),
		records: make(map[uint64]*Record),
		byOwner: make(map[Principal][]uint64),
	}
}

// RegisterKind installs the lifecycle rules for a kind. Registration
// happens once, at construction time, before any records exist.
func (r *Registry) RegisterKind(kind Kind, spec KindSpec) error {
	if kind == "" {
		return newError(KindInvalidPayload, "kind name is required")
	}
	if spec.Initial == "" {
		return newError(KindInvalidPayload, fmt.Sprintf("kind %q has no initial status", kind))
	}
	if _, exists := r.kinds[kind]; exists {
		return newError(KindInvalidPayload, fmt.Sprintf("kind %q is already registered", kind))
	}
	r.kinds[kind] = spec
	return nil
}

// Kinds returns the registered kind names, unordered.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	return out
}

// PeekNextID returns the id the next created record will receive.
func (r *Registry) PeekNextID() uint64 {
	return r.nextID + 1
}

// CanCreate checks every precondition of Create without mutating.
func (r *Registry) CanCreate(kind Kind, payload []byte) error {
	spec, ok := r.kinds[kind]
	if !ok {
		return newError(KindInvalidPayload, fmt.Sprintf("unknown kind %q", kind))
	}
	if spec.ValidatePayload != nil {
		if err := spec.ValidatePayload(payload); err != nil {
			return newError(KindInvalidPayload, err.Error())
		}
	}
	return nil
}

// Create appends a record with the next monotonic id and the kind's
// initial status. IDs are never reused, even after the record reaches a
// terminal status.
func (r *Registry) Create(kind Kind, owner Principal, payload []byte, now time.Time) (uint64, error) {
	if err := r.CanCreate(kind, payload); err != nil {
		return 0, err
	}
	r.nextID++
	id := r.nextID
	rec := &Record{
		ID:        id,
		Kind:      kind,
		Status:    r.kinds[kind].Initial,
		Owner:     owner,
		CreatedAt: now,
		Payload:   append([]byte(nil), payload...),
	}
	r.records[id] = rec
	r.byOwner[owner] = append(r.byOwner[owner], id)
	return id, nil
}

// CanTransition checks every precondition of Transition without mutating.
func (r *Registry) CanTransition(id uint64, target Status, actor Principal, caps CapabilitySet) error {
	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	spec := r.kinds[rec.Kind]
	if !spec.allows(rec.Status, target) {
		return newError(KindInvalidTransition,
			fmt.Sprintf("kind %q does not allow %s -> %s", rec.Kind, rec.Status, target))
	}
	if required, ok := spec.Capabilities[TransitionKey{From: rec.Status, To: target}]; ok {
		if !caps.Has(required) {
			return newError(KindUnauthorized,
				fmt.Sprintf("transition %s -> %s requires capability %q", rec.Status, target, required))
		}
	}
	return nil
}

// Transition moves a record to the target status if the kind's table
// permits it and the actor holds the required capability. The movement
// is recorded in the record's audit history.
func (r *Registry) Transition(id uint64, target Status, actor Principal, caps CapabilitySet, now time.Time) error {
	if err := r.CanTransition(id, target, actor, caps); err != nil {
		return err
	}
	rec := r.records[id]
	rec.History = append(rec.History, TransitionEvent{
		At:    now,
		Actor: actor,
		From:  rec.Status,
		To:    target,
	})
	rec.Status = target
	return nil
}

// Get returns a copy of the record.
func (r *Registry) Get(id uint64) (Record, error) {
	rec, ok := r.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.clone(), nil
}

// ListByOwner returns the owner's record ids in creation order. The
// owner index is maintained on every create, so this never scans the
// full record set.
func (r *Registry) ListByOwner(owner Principal) []uint64 {
	return append([]uint64(nil), r.byOwner[owner]...)
}
