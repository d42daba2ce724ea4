package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracore/veracore/internal/domain"
)

func TestTallyDefaultWeightFromBalance(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ledger.Credit(ctx, "minter", "alice", "COIN", 42))

	id, err := e.tally.Open(ctx, "gov", 1, 2, e.clock.Now().Add(time.Hour), "")
	require.NoError(t, err)

	weight, err := e.tally.CastVote(ctx, id, "alice", nil, domain.VoteYes)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), weight, "nil weight resolves via the balance weight function")

	view, err := e.tally.Get(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), view.WeightYes)
}

func TestTallyExplicitWeight(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	id, err := e.tally.Open(ctx, "gov", 1, 2, e.clock.Now().Add(time.Hour), "")
	require.NoError(t, err)

	w := uint64(7)
	weight, err := e.tally.CastVote(ctx, id, "alice", &w, domain.VoteNo)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), weight)
}

func TestTallyUnknownEarlyRule(t *testing.T) {
	e := newEngine(t)
	_, err := e.tally.Open(context.Background(), "gov", 1, 2, e.clock.Now().Add(time.Hour), "no_such_rule")
	assert.True(t, domain.IsKind(err, domain.KindInvalidPayload))
}

func TestTallyEarlyResolution(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	deadline := e.clock.Now().Add(24 * time.Hour)

	id, err := e.tally.Open(ctx, "gov", 1, 2, deadline, "supermajority")
	require.NoError(t, err)

	// Two voters are below the rule's floor of three ballots.
	for _, voter := range []domain.Principal{"v1", "v2"} {
		w := uint64(10)
		_, err := e.tally.CastVote(ctx, id, voter, &w, domain.VoteYes)
		require.NoError(t, err)
	}
	_, err = e.tally.Resolve(ctx, id, "gov")
	assert.True(t, domain.IsKind(err, domain.KindNotYetResolvable))

	// A third yes ballot satisfies the 2/3 supermajority rule and lifts
	// the deadline.
	w := uint64(10)
	_, err = e.tally.CastVote(ctx, id, "v3", &w, domain.VoteYes)
	require.NoError(t, err)

	outcome, err := e.tally.Resolve(ctx, id, "gov")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePassed, outcome)
}

func TestTallyResolveCachesOutcome(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	deadline := e.clock.Now().Add(time.Hour)

	id, err := e.tally.Open(ctx, "gov", 1, 2, deadline, "")
	require.NoError(t, err)
	w := uint64(5)
	_, err = e.tally.CastVote(ctx, id, "alice", &w, domain.VoteYes)
	require.NoError(t, err)

	e.clock.Advance(time.Hour + time.Second)
	first, err := e.tally.Resolve(ctx, id, "gov")
	require.NoError(t, err)
	events := e.journal.Len()

	second, err := e.tally.Resolve(ctx, id, "gov")
	assert.True(t, domain.IsKind(err, domain.KindAlreadyResolved))
	assert.Equal(t, first, second, "repeat resolve returns the cached outcome")
	assert.Equal(t, events, e.journal.Len(), "repeat resolve journals nothing")
}
