package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracore/veracore/internal/domain"
)

func scheduleEscrowed(t *testing.T, e *engine, creator domain.Principal, amount uint64) uint64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.ledger.Credit(ctx, "minter", creator, "COIN", amount))

	id, err := e.queue.Schedule(ctx, creator, e.clock.Now(), nil, "always", "noop", nil,
		&domain.Escrow{Principal: creator, Denomination: "COIN", Amount: amount})
	require.NoError(t, err)
	return id
}

func TestQueueScheduleMovesEscrow(t *testing.T) {
	e := newEngine(t)
	scheduleEscrowed(t, e, "alice", 100)

	assert.Equal(t, uint64(0), e.ledger.BalanceOf("alice", "COIN"),
		"escrowed funds must leave the creator's spendable balance")
	assert.Equal(t, uint64(100), e.ledger.SupplyOf("COIN").Escrowed)
	e.conservation(t, "COIN")
}

func TestQueueScheduleInsufficientEscrow(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ledger.Credit(ctx, "minter", "alice", "COIN", 10))
	before := e.journal.Len()

	_, err := e.queue.Schedule(ctx, "alice", e.clock.Now(), nil, "always", "noop", nil,
		&domain.Escrow{Principal: "alice", Denomination: "COIN", Amount: 11})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientBalance))

	assert.Equal(t, before, e.journal.Len(), "no action row, no escrow movement")
	assert.Equal(t, uint64(10), e.ledger.BalanceOf("alice", "COIN"))
}

func TestQueueScheduleUnknownCallback(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.queue.Schedule(ctx, "alice", e.clock.Now(), nil, "no_such_condition", "", nil, nil)
	assert.True(t, domain.IsKind(err, domain.KindInvalidPayload))

	_, err = e.queue.Schedule(ctx, "alice", e.clock.Now(), nil, "", "no_such_effect", nil, nil)
	assert.True(t, domain.IsKind(err, domain.KindInvalidPayload))
}

func TestQueueExecutePaysExecutor(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	id := scheduleEscrowed(t, e, "alice", 100)

	action, err := e.queue.TryExecute(ctx, id, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionExecuted, action.State)
	assert.Equal(t, domain.Principal("bob"), action.ExecutedBy)

	assert.Equal(t, uint64(100), e.ledger.BalanceOf("bob", "COIN"))
	assert.Equal(t, uint64(0), e.ledger.SupplyOf("COIN").Escrowed)
	e.conservation(t, "COIN")
}

func TestQueueExecuteExactlyOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	id := scheduleEscrowed(t, e, "alice", 100)

	_, err := e.queue.TryExecute(ctx, id, "bob")
	require.NoError(t, err)
	events := e.journal.Len()

	// Repeat calls return the cached result: same action, no new journal
	// rows, no second escrow release even for a different executor.
	again, err := e.queue.TryExecute(ctx, id, "carol")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionExecuted, again.State)
	assert.Equal(t, domain.Principal("bob"), again.ExecutedBy)
	assert.Equal(t, events, e.journal.Len())
	assert.Equal(t, uint64(100), e.ledger.BalanceOf("bob", "COIN"))
	assert.Equal(t, uint64(0), e.ledger.BalanceOf("carol", "COIN"))
}

func TestQueueExecuteTooEarlyIsRetryable(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ledger.Credit(ctx, "minter", "alice", "COIN", 50))

	id, err := e.queue.Schedule(ctx, "alice", e.clock.Now().Add(time.Hour), nil, "", "", nil,
		&domain.Escrow{Principal: "alice", Denomination: "COIN", Amount: 50})
	require.NoError(t, err)
	before := e.journal.Len()

	_, err = e.queue.TryExecute(ctx, id, "bob")
	assert.True(t, domain.IsKind(err, domain.KindTooEarly))
	assert.True(t, domain.Retryable(err))
	assert.Equal(t, before, e.journal.Len())

	// Same call succeeds once the window opens.
	e.clock.Advance(time.Hour)
	_, err = e.queue.TryExecute(ctx, id, "bob")
	require.NoError(t, err)
}

func TestQueueConditionNotMetIsRetryable(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	deadline := e.clock.Now().Add(time.Hour)
	tallyID, err := e.tally.Open(ctx, "gov", 1, 2, deadline, "")
	require.NoError(t, err)

	id, err := e.queue.Schedule(ctx, "alice", e.clock.Now(), nil, "tally_passed", "",
		[]byte(`{"tally_id":1}`), nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), tallyID)

	_, err = e.queue.TryExecute(ctx, id, "bob")
	assert.True(t, domain.IsKind(err, domain.KindConditionNotMet))
	assert.True(t, domain.Retryable(err))

	// Resolve the tally passed, then the same call goes through.
	w := uint64(10)
	_, err = e.tally.CastVote(ctx, tallyID, "voter", &w, domain.VoteYes)
	require.NoError(t, err)
	e.clock.Advance(time.Hour + time.Second)
	_, err = e.tally.Resolve(ctx, tallyID, "gov")
	require.NoError(t, err)

	action, err := e.queue.TryExecute(ctx, id, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionExecuted, action.State)
}

func TestQueueEffectFailureLeavesPending(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	boom := errors.New("downstream unavailable")
	e.queue.RegisterEffect("failing", func(ctx context.Context, action *domain.Action) error {
		return boom
	})

	require.NoError(t, e.ledger.Credit(ctx, "minter", "alice", "COIN", 40))
	id, err := e.queue.Schedule(ctx, "alice", e.clock.Now(), nil, "", "failing", nil,
		&domain.Escrow{Principal: "alice", Denomination: "COIN", Amount: 40})
	require.NoError(t, err)
	before := e.journal.Len()

	_, err = e.queue.TryExecute(ctx, id, "bob")
	require.ErrorIs(t, err, boom)

	action, err := e.queue.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionPending, action.State, "failed effect must not finalize the action")
	assert.Equal(t, before, e.journal.Len())
	assert.Equal(t, uint64(40), e.ledger.SupplyOf("COIN").Escrowed, "escrow stays held")
}

func TestQueueCancelReturnsEscrowToCreator(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	id := scheduleEscrowed(t, e, "alice", 100)

	_, err := e.queue.Cancel(ctx, id, "mallory")
	assert.True(t, domain.IsKind(err, domain.KindUnauthorized))

	action, err := e.queue.Cancel(ctx, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCancelled, action.State)
	assert.Equal(t, uint64(100), e.ledger.BalanceOf("alice", "COIN"))
	assert.Equal(t, uint64(0), e.ledger.SupplyOf("COIN").Escrowed)
	e.conservation(t, "COIN")

	// Terminal: neither execution nor a second cancel works.
	_, err = e.queue.TryExecute(ctx, id, "bob")
	assert.True(t, domain.IsKind(err, domain.KindNotPending))
	_, err = e.queue.Cancel(ctx, id, "alice")
	assert.True(t, domain.IsKind(err, domain.KindNotPending))
}

func TestQueueExpiryReturnsEscrowToCreator(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ledger.Credit(ctx, "minter", "alice", "COIN", 100))

	notAfter := e.clock.Now().Add(time.Hour)
	id, err := e.queue.Schedule(ctx, "alice", e.clock.Now(), &notAfter, "", "", nil,
		&domain.Escrow{Principal: "alice", Denomination: "COIN", Amount: 100})
	require.NoError(t, err)

	e.clock.Advance(2 * time.Hour)
	action, err := e.queue.TryExecute(ctx, id, "bob")
	assert.True(t, domain.IsKind(err, domain.KindExpired))
	assert.Equal(t, domain.ActionExpired, action.State)

	assert.Equal(t, uint64(100), e.ledger.BalanceOf("alice", "COIN"))
	assert.Equal(t, uint64(0), e.ledger.BalanceOf("bob", "COIN"))
	assert.Equal(t, uint64(0), e.ledger.SupplyOf("COIN").Escrowed)
	e.conservation(t, "COIN")

	// Expiry is terminal; a later attempt does not release again.
	events := e.journal.Len()
	_, err = e.queue.TryExecute(ctx, id, "carol")
	assert.True(t, domain.IsKind(err, domain.KindNotPending))
	assert.Equal(t, events, e.journal.Len())
}

func TestQueueTransferEffect(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ledger.Credit(ctx, "minter", "alice", "COIN", 200))

	id, err := e.queue.Schedule(ctx, "alice", e.clock.Now(), nil, "", "transfer",
		[]byte(`{"from":"alice","to":"bob","denomination":"COIN","amount":75}`), nil)
	require.NoError(t, err)

	_, err = e.queue.TryExecute(ctx, id, "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(125), e.ledger.BalanceOf("alice", "COIN"))
	assert.Equal(t, uint64(75), e.ledger.BalanceOf("bob", "COIN"))
	e.conservation(t, "COIN")
}
