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

// TallyUseCase serialises vote accumulation and resolution. It owns
// counters only; weights come from the caller or from a configured
// weight function (stake, reputation, balance).
type TallyUseCase struct {
	mu         sync.Mutex
	book       *domain.TallyBook
	journal    ports.Journal
	clock      ports.Clock
	logger     logger.Logger
	weightFn   ports.WeightFunc
	earlyRules map[string]ports.EarlyRuleFunc
}

// NewTallyUseCase creates an empty tally component. weightFn may be nil
// when every caller supplies explicit weights.
func NewTallyUseCase(journal ports.Journal, clock ports.Clock, log logger.Logger, weightFn ports.WeightFunc) *TallyUseCase {
	return &TallyUseCase{
		book:       domain.NewTallyBook(),
		journal:    journal,
		clock:      clock,
		logger:     log,
		weightFn:   weightFn,
		earlyRules: make(map[string]ports.EarlyRuleFunc),
	}
}

// RegisterEarlyRule installs a named early-resolution rule.
func (u *TallyUseCase) RegisterEarlyRule(name string, fn ports.EarlyRuleFunc) {
	u.earlyRules[name] = fn
}

// Open creates a tally with the given quorum fraction and deadline.
func (u *TallyUseCase) Open(ctx context.Context, actor domain.Principal,
	quorumNum, quorumDen uint32, deadline time.Time, earlyRule string) (uint64, error) {
	if earlyRule != "" {
		if _, ok := u.earlyRules[earlyRule]; !ok {
			return 0, &domain.Error{Kind: domain.KindInvalidPayload,
				Message: fmt.Sprintf("unknown early-resolution rule %q", earlyRule)}
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.book.CanOpen(quorumNum, quorumDen, deadline); err != nil {
		return 0, err
	}
	now := u.clock.Now()
	id := u.book.PeekNextID()
	if err := appendEvent(ctx, u.journal, evTallyOpened, actor, now, tallyOpenedEvent{
		ID:                id,
		QuorumNumerator:   quorumNum,
		QuorumDenominator: quorumDen,
		Deadline:          deadline,
		EarlyRule:         earlyRule,
		CreatedAt:         now,
	}); err != nil {
		return 0, err
	}
	id, _ = u.book.Open(quorumNum, quorumDen, deadline, earlyRule, now)

	u.logger.Info(ctx, "tally opened", map[string]interface{}{
		"id":       id,
		"quorum":   fmt.Sprintf("%d/%d", quorumNum, quorumDen),
		"deadline": deadline,
	})
	return id, nil
}

// CastVote records a weighted ballot. When weight is nil the configured
// weight function resolves it. Each voter votes at most once per tally;
// the weight actually applied is returned.
func (u *TallyUseCase) CastVote(ctx context.Context, id uint64, voter domain.Principal,
	weight *uint64, choice domain.VoteChoice) (uint64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var w uint64
	if weight != nil {
		w = *weight
	} else {
		if u.weightFn == nil {
			return 0, &domain.Error{Kind: domain.KindInvalidPayload,
				Message: "no weight supplied and no weight function configured"}
		}
		resolved, err := u.weightFn(ctx, voter)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve vote weight: %w", err)
		}
		w = resolved
	}

	now := u.clock.Now()
	if choice != domain.VoteYes && choice != domain.VoteNo {
		return 0, &domain.Error{Kind: domain.KindInvalidPayload, Message: "choice must be YES or NO"}
	}
	if err := u.book.CanCastVote(id, voter, w, now); err != nil {
		u.logger.Warn(ctx, "vote rejected", map[string]interface{}{
			"tally":  id,
			"voter":  voter,
			"reason": err.Error(),
		})
		return 0, err
	}
	if err := appendEvent(ctx, u.journal, evTallyVoteCast, voter, now,
		voteCastEvent{ID: id, Voter: voter, Weight: w, Choice: choice, At: now}); err != nil {
		return 0, err
	}
	_ = u.book.CastVote(id, voter, w, choice, now)

	u.logger.Info(ctx, "vote cast", map[string]interface{}{
		"tally":  id,
		"voter":  voter,
		"weight": w,
		"choice": choice,
	})
	return w, nil
}

// Resolve computes the outcome exactly once. Before the deadline it
// fails NotYetResolvable unless the tally's early-resolution rule is
// satisfied; once resolved it returns the cached outcome with
// AlreadyResolved.
func (u *TallyUseCase) Resolve(ctx context.Context, id uint64, actor domain.Principal) (domain.Outcome, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	view, err := u.book.Get(id)
	if err != nil {
		return "", err
	}
	early := false
	if view.EarlyRule != "" {
		if fn, ok := u.earlyRules[view.EarlyRule]; ok {
			early = fn(view)
		}
	}

	now := u.clock.Now()
	if err := u.book.CanResolve(id, now, early); err != nil {
		if domain.IsKind(err, domain.KindAlreadyResolved) {
			return view.Outcome, err
		}
		return "", err
	}
	if err := appendEvent(ctx, u.journal, evTallyResolved, actor, now,
		tallyResolvedEvent{ID: id, Early: early, At: now}); err != nil {
		return "", err
	}
	outcome, _ := u.book.Resolve(id, now, early)

	u.logger.Info(ctx, "tally resolved", map[string]interface{}{
		"id":      id,
		"outcome": outcome,
		"early":   early,
	})
	return outcome, nil
}

// Get returns the tally's read model.
func (u *TallyUseCase) Get(id uint64) (domain.TallyView, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.book.Get(id)
}

// HasVoted reports whether the voter already cast a ballot.
func (u *TallyUseCase) HasVoted(id uint64, voter domain.Principal) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.book.HasVoted(id, voter)
}
