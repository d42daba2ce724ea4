package domain

import "time"

// ActionState is the lifecycle state of a scheduled action. Executed,
// Cancelled and Expired are terminal: no transition ever leaves them.
type ActionState string

const (
	ActionPending   ActionState = "PENDING"
	ActionExecuted  ActionState = "EXECUTED"
	ActionCancelled ActionState = "CANCELLED"
	ActionExpired   ActionState = "EXPIRED"
)

// Escrow describes funds held in an action's custody until a terminal
// state releases them exactly once.
type Escrow struct {
	Principal    Principal    `json:"principal"`
	Denomination Denomination `json:"denomination"`
	Amount       uint64       `json:"amount"`
}

// Action is a time- or condition-gated deferred operation. Condition
// and Effect are names resolved by the caller against its own
// registries; Params is an opaque blob both may read.
type Action struct {
	ID          uint64      `json:"id"`
	Creator     Principal   `json:"creator"`
	NotBefore   time.Time   `json:"not_before"`
	NotAfter    *time.Time  `json:"not_after,omitempty"`
	Condition   string      `json:"condition"`
	Effect      string      `json:"effect"`
	Params      []byte      `json:"params,omitempty"`
	State       ActionState `json:"state"`
	Escrow      *Escrow     `json:"escrow,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	FinalizedAt *time.Time  `json:"finalized_at,omitempty"`
	ExecutedBy  Principal   `json:"executed_by,omitempty"`
}

func (a *Action) clone() Action {
	out := *a
	out.Params = append([]byte(nil), a.Params...)
	if a.NotAfter != nil {
		t := *a.NotAfter
		out.NotAfter = &t
	}
	if a.Escrow != nil {
		e := *a.Escrow
		out.Escrow = &e
	}
	if a.FinalizedAt != nil {
		t := *a.FinalizedAt
		out.FinalizedAt = &t
	}
	return out
}

// Queue holds scheduled actions keyed by monotonic id. Escrowed funds
// belong to the action for the duration of pendency; the ledger's Hold
// and Release operations perform the actual movement, driven by the
// owning use case.
type Queue struct {
	actions map[uint64]*Action
	nextID  uint64
}

// NewQueue creates an empty action queue.
func NewQueue() *Queue {
	return &Queue{actions: make(map[uint64]*Action)}
}

// PeekNextID returns the id the next scheduled action will receive.
func (q *Queue) PeekNextID() uint64 {
	return q.nextID + 1
}

// CanSchedule checks every precondition of Schedule without mutating.
func (q *Queue) CanSchedule(notBefore time.Time, notAfter *time.Time, escrow *Escrow) error {
	if notAfter != nil && notAfter.Before(notBefore) {
		return newError(KindInvalidPayload, "not_after precedes not_before")
	}
	if escrow != nil && escrow.Amount == 0 {
		return newError(KindInvalidPayload, "escrow amount must be positive")
	}
	return nil
}

// Schedule appends a pending action with the next monotonic id.
// Escrow custody is the caller's responsibility: the owning use case
// holds the funds in the ledger before the action becomes visible.
func (q *Queue) Schedule(creator Principal, notBefore time.Time, notAfter *time.Time,
	condition, effect string, params []byte, escrow *Escrow, now time.Time) (uint64, error) {
	if err := q.CanSchedule(notBefore, notAfter, escrow); err != nil {
		return 0, err
	}
	q.nextID++
	id := q.nextID
	a := &Action{
		ID:        id,
		Creator:   creator,
		NotBefore: notBefore,
		Condition: condition,
		Effect:    effect,
		Params:    append([]byte(nil), params...),
		State:     ActionPending,
		CreatedAt: now,
	}
	if notAfter != nil {
		t := *notAfter
		a.NotAfter = &t
	}
	if escrow != nil {
		e := *escrow
		a.Escrow = &e
	}
	q.actions[id] = a
	return id, nil
}

// Get returns a copy of the action.
func (q *Queue) Get(id uint64) (Action, error) {
	a, ok := q.actions[id]
	if !ok {
		return Action{}, ErrNotFound
	}
	return a.clone(), nil
}

// CheckExecutable reports whether the action may execute at the given
// time. An already-executed action returns ErrAlreadyResolved so the
// caller can hand back the cached result; expiry detection returns
// ErrExpired so the caller can finalise the action.
func (q *Queue) CheckExecutable(id uint64, now time.Time) error {
	a, ok := q.actions[id]
	if !ok {
		return ErrNotFound
	}
	switch a.State {
	case ActionExecuted:
		return ErrAlreadyResolved
	case ActionCancelled, ActionExpired:
		return ErrNotPending
	}
	if a.NotAfter != nil && now.After(*a.NotAfter) {
		return ErrExpired
	}
	if now.Before(a.NotBefore) {
		return ErrTooEarly
	}
	return nil
}

// MarkExecuted finalises a pending action as executed by the given
// principal. Terminal states are never left again.
func (q *Queue) MarkExecuted(id uint64, executor Principal, now time.Time) error {
	a, ok := q.actions[id]
	if !ok {
		return ErrNotFound
	}
	if a.State != ActionPending {
		return ErrNotPending
	}
	a.State = ActionExecuted
	a.ExecutedBy = executor
	t := now
	a.FinalizedAt = &t
	return nil
}

// MarkExpired finalises a pending action as expired.
func (q *Queue) MarkExpired(id uint64, now time.Time) error {
	a, ok := q.actions[id]
	if !ok {
		return ErrNotFound
	}
	if a.State != ActionPending {
		return ErrNotPending
	}
	a.State = ActionExpired
	t := now
	a.FinalizedAt = &t
	return nil
}

// CanCancel checks every precondition of MarkCancelled without mutating.
func (q *Queue) CanCancel(id uint64, actor Principal) error {
	a, ok := q.actions[id]
	if !ok {
		return ErrNotFound
	}
	if a.Creator != actor {
		return newError(KindUnauthorized, "only the creator may cancel a scheduled action")
	}
	if a.State != ActionPending {
		return ErrNotPending
	}
	return nil
}

// MarkCancelled finalises a pending action as cancelled by its creator.
func (q *Queue) MarkCancelled(id uint64, actor Principal, now time.Time) error {
	if err := q.CanCancel(id, actor); err != nil {
		return err
	}
	a := q.actions[id]
	a.State = ActionCancelled
	t := now
	a.FinalizedAt = &t
	return nil
}
