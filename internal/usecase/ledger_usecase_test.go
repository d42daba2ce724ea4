package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracore/veracore/internal/domain"
)

func TestLedgerUseCaseJournalsEveryMutation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ledger.Credit(ctx, "minter", "alice", "COIN", 100))
	require.NoError(t, e.ledger.Transfer(ctx, "alice", "alice", "bob", "COIN", 30))
	require.NoError(t, e.ledger.Burn(ctx, "burner", "bob", "COIN", 10))

	assert.Equal(t, 3, e.journal.Len())
	assert.Equal(t, uint64(70), e.ledger.BalanceOf("alice", "COIN"))
	assert.Equal(t, uint64(20), e.ledger.BalanceOf("bob", "COIN"))

	supply := e.ledger.SupplyOf("COIN")
	assert.Equal(t, uint64(100), supply.Issued)
	assert.Equal(t, uint64(10), supply.Burned)
	e.conservation(t, "COIN")
}

func TestLedgerUseCaseFailedOpJournalsNothing(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ledger.Credit(ctx, "minter", "alice", "COIN", 10))
	before := e.journal.Len()

	err := e.ledger.Transfer(ctx, "alice", "alice", "bob", "COIN", 11)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientBalance))

	assert.Equal(t, before, e.journal.Len(), "rejected transfer must not be journaled")
	assert.Equal(t, uint64(10), e.ledger.BalanceOf("alice", "COIN"))
	assert.Equal(t, uint64(0), e.ledger.BalanceOf("bob", "COIN"))
}

func TestLedgerUseCaseDebit(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ledger.Credit(ctx, "minter", "alice", "COIN", 50))
	require.NoError(t, e.ledger.Debit(ctx, "ops", "alice", "COIN", 20))

	assert.Equal(t, uint64(30), e.ledger.BalanceOf("alice", "COIN"))
	// Debit leaves issued untouched; only burn retires supply.
	assert.Equal(t, uint64(50), e.ledger.SupplyOf("COIN").Issued)
}
