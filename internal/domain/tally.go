package domain

import (
	"math"
	"math/bits"
	"time"
)

// VoteChoice is a yes/no ballot.
type VoteChoice string

const (
	VoteYes VoteChoice = "YES"
	VoteNo  VoteChoice = "NO"
)

// Outcome is the final result of a resolved tally.
type Outcome string

const (
	OutcomePassed Outcome = "PASSED"
	OutcomeFailed Outcome = "FAILED"
)

// Tally accumulates weighted yes/no votes against a quorum fraction and
// resolves exactly once. The quorum is measured against votes cast, not
// total eligible weight; that matches the dominant pattern in the
// systems this engine replaces and is a deliberate, documented choice.
type Tally struct {
	ID                uint64
	QuorumNumerator   uint32
	QuorumDenominator uint32
	Deadline          time.Time
	EarlyRule         string
	WeightYes         uint64
	WeightNo          uint64
	Resolved          bool
	Outcome           Outcome
	CreatedAt         time.Time
	ResolvedAt        *time.Time

	voters map[Principal]VoteChoice
}

// TallyView is the read model of a tally.
type TallyView struct {
	ID                uint64     `json:"id"`
	QuorumNumerator   uint32     `json:"quorum_numerator"`
	QuorumDenominator uint32     `json:"quorum_denominator"`
	Deadline          time.Time  `json:"deadline"`
	EarlyRule         string     `json:"early_rule,omitempty"`
	WeightYes         uint64     `json:"weight_yes"`
	WeightNo          uint64     `json:"weight_no"`
	VoterCount        int        `json:"voter_count"`
	Resolved          bool       `json:"resolved"`
	Outcome           Outcome    `json:"outcome,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

func (t *Tally) view() TallyView {
	v := TallyView{
		ID:                t.ID,
		QuorumNumerator:   t.QuorumNumerator,
		QuorumDenominator: t.QuorumDenominator,
		Deadline:          t.Deadline,
		EarlyRule:         t.EarlyRule,
		WeightYes:         t.WeightYes,
		WeightNo:          t.WeightNo,
		VoterCount:        len(t.voters),
		Resolved:          t.Resolved,
		Outcome:           t.Outcome,
		CreatedAt:         t.CreatedAt,
	}
	if t.ResolvedAt != nil {
		rt := *t.ResolvedAt
		v.ResolvedAt = &rt
	}
	return v
}

// TallyBook holds vote tallies keyed by monotonic id. It owns counters
// only, never funds.
type TallyBook struct {
	tallies map[uint64]*Tally
	nextID  uint64
}

// NewTallyBook creates an empty tally book.
func NewTallyBook() *TallyBook {
	return &TallyBook{tallies: make(map[uint64]*Tally)}
}

// PeekNextID returns the id the next opened tally will receive.
func (b *TallyBook) PeekNextID() uint64 {
	return b.nextID + 1
}

// CanOpen checks every precondition of Open without mutating.
func (b *TallyBook) CanOpen(quorumNum, quorumDen uint32, deadline time.Time) error {
	if quorumDen == 0 {
		return newError(KindInvalidPayload, "quorum denominator must be positive")
	}
	if quorumNum > quorumDen {
		return newError(KindInvalidPayload, "quorum numerator exceeds denominator")
	}
	if deadline.IsZero() {
		return newError(KindInvalidPayload, "deadline is required")
	}
	return nil
}

// Open creates a tally with the next monotonic id.
func (b *TallyBook) Open(quorumNum, quorumDen uint32, deadline time.Time, earlyRule string, now time.Time) (uint64, error) {
	if err := b.CanOpen(quorumNum, quorumDen, deadline); err != nil {
		return 0, err
	}
	b.nextID++
	id := b.nextID
	b.tallies[id] = &Tally{
		ID:                id,
		QuorumNumerator:   quorumNum,
		QuorumDenominator: quorumDen,
		Deadline:          deadline,
		EarlyRule:         earlyRule,
		CreatedAt:         now,
		voters:            make(map[Principal]VoteChoice),
	}
	return id, nil
}

// CanCastVote checks every precondition of CastVote without mutating.
func (b *TallyBook) CanCastVote(id uint64, voter Principal, weight uint64, now time.Time) error {
	t, ok := b.tallies[id]
	if !ok {
		return ErrNotFound
	}
	if t.Resolved {
		return ErrAlreadyResolved
	}
	if now.After(t.Deadline) {
		return ErrDeadlinePassed
	}
	if _, voted := t.voters[voter]; voted {
		return ErrAlreadyVoted
	}
	// Guard both the side accumulator and the combined cast weight so
	// resolution arithmetic stays within range.
	side := t.WeightYes
	if side < t.WeightNo {
		side = t.WeightNo
	}
	if side > math.MaxUint64-weight {
		return ErrOverflow
	}
	if t.WeightYes+t.WeightNo > math.MaxUint64-weight {
		return ErrOverflow
	}
	return nil
}

// CastVote adds weight to the chosen accumulator and records the voter.
// Each principal votes at most once per tally.
func (b *TallyBook) CastVote(id uint64, voter Principal, weight uint64, choice VoteChoice, now time.Time) error {
	if choice != VoteYes && choice != VoteNo {
		return newError(KindInvalidPayload, "choice must be YES or NO")
	}
	if err := b.CanCastVote(id, voter, weight, now); err != nil {
		return err
	}
	t := b.tallies[id]
	if choice == VoteYes {
		t.WeightYes += weight
	} else {
		t.WeightNo += weight
	}
	t.voters[voter] = choice
	return nil
}

// CanResolve checks every precondition of Resolve without mutating.
// Resolution is blocked strictly before the deadline; the deadline
// instant itself is resolvable. early reports that a caller-supplied
// early-resolution rule is satisfied, which lifts the deadline
// requirement.
func (b *TallyBook) CanResolve(id uint64, now time.Time, early bool) error {
	t, ok := b.tallies[id]
	if !ok {
		return ErrNotFound
	}
	if t.Resolved {
		return ErrAlreadyResolved
	}
	if !early && now.Before(t.Deadline) {
		return ErrNotYetResolvable
	}
	return nil
}

// Resolve computes and caches the outcome exactly once. A resolved
// tally returns its cached outcome alongside ErrAlreadyResolved.
// Passing requires the yes share to meet or exceed the quorum fraction
// of cast votes: weightYes * den >= num * (weightYes + weightNo), with
// the boundary counting as passed.
func (b *TallyBook) Resolve(id uint64, now time.Time, early bool) (Outcome, error) {
	t, ok := b.tallies[id]
	if !ok {
		return "", ErrNotFound
	}
	if t.Resolved {
		return t.Outcome, ErrAlreadyResolved
	}
	if err := b.CanResolve(id, now, early); err != nil {
		return "", err
	}
	if QuorumReached(t.WeightYes, t.WeightYes+t.WeightNo, t.QuorumNumerator, t.QuorumDenominator) {
		t.Outcome = OutcomePassed
	} else {
		t.Outcome = OutcomeFailed
	}
	t.Resolved = true
	rt := now
	t.ResolvedAt = &rt
	return t.Outcome, nil
}

// Get returns the tally's read model.
func (b *TallyBook) Get(id uint64) (TallyView, error) {
	t, ok := b.tallies[id]
	if !ok {
		return TallyView{}, ErrNotFound
	}
	return t.view(), nil
}

// HasVoted reports whether the voter already cast a ballot.
func (b *TallyBook) HasVoted(id uint64, voter Principal) (bool, error) {
	t, ok := b.tallies[id]
	if !ok {
		return false, ErrNotFound
	}
	_, voted := t.voters[voter]
	return voted, nil
}

// QuorumReached reports whether yes*den >= num*total, compared in 128
// bits so large weights cannot wrap the comparison.
func QuorumReached(yes, total uint64, num, den uint32) bool {
	hiYes, loYes := bits.Mul64(yes, uint64(den))
	hiQuo, loQuo := bits.Mul64(uint64(num), total)
	if hiYes != hiQuo {
		return hiYes > hiQuo
	}
	return loYes >= loQuo
}
