package domain

import (
	"math"
	"sort"
)

// Ledger tracks per-principal balances of fungible credits. It is the
// only place arithmetic on funds occurs. All amounts are unsigned and
// every operation uses checked arithmetic; nothing ever wraps around.
//
// Invariant, per denomination: issued - burned == sum(balances) + escrowed.
//
// The aggregate is pure in-memory state and performs no locking itself;
// serialisation is the responsibility of the owning use case.
type Ledger struct {
	balances map[balanceKey]uint64
	issued   map[Denomination]uint64
	burned   map[Denomination]uint64
	escrowed map[Denomination]uint64
	holders  map[Denomination]map[Principal]struct{}
}

type balanceKey struct {
	principal    Principal
	denomination Denomination
}

// Supply holds the running counters for one denomination.
type Supply struct {
	Issued   uint64 `json:"issued"`
	Burned   uint64 `json:"burned"`
	Escrowed uint64 `json:"escrowed"`
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[balanceKey]uint64),
		issued:   make(map[Denomination]uint64),
		burned:   make(map[Denomination]uint64),
		escrowed: make(map[Denomination]uint64),
		holders:  make(map[Denomination]map[Principal]struct{}),
	}
}

// BalanceOf returns the spendable balance. Escrowed funds are not part
// of it; they are in the custody of the scheduled action that holds them.
func (l *Ledger) BalanceOf(principal Principal, denomination Denomination) uint64 {
	return l.balances[balanceKey{principal, denomination}]
}

// SupplyOf returns the issued/burned/escrowed counters for a denomination.
func (l *Ledger) SupplyOf(denomination Denomination) Supply {
	return Supply{
		Issued:   l.issued[denomination],
		Burned:   l.burned[denomination],
		Escrowed: l.escrowed[denomination],
	}
}

// HoldersOf returns the principals with a nonzero balance in the given
// denomination, sorted. The index is maintained incrementally on every
// mutation; no scan over the full key space ever happens.
func (l *Ledger) HoldersOf(denomination Denomination) []Principal {
	set := l.holders[denomination]
	out := make([]Principal, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanCredit checks every precondition of Credit without mutating.
func (l *Ledger) CanCredit(principal Principal, denomination Denomination, amount uint64) error {
	if l.balances[balanceKey{principal, denomination}] > math.MaxUint64-amount {
		return ErrOverflow
	}
	if l.issued[denomination] > math.MaxUint64-amount {
		return ErrOverflow
	}
	return nil
}

// Credit increases a balance and the denomination's issued counter.
func (l *Ledger) Credit(principal Principal, denomination Denomination, amount uint64) error {
	if err := l.CanCredit(principal, denomination, amount); err != nil {
		return err
	}
	l.addBalance(principal, denomination, amount)
	l.issued[denomination] += amount
	return nil
}

// CanDebit checks every precondition of Debit without mutating.
func (l *Ledger) CanDebit(principal Principal, denomination Denomination, amount uint64) error {
	if amount > l.balances[balanceKey{principal, denomination}] {
		return ErrInsufficientBalance
	}
	return nil
}

// Debit decreases a balance. Issued counters are untouched; use Burn to
// retire supply.
func (l *Ledger) Debit(principal Principal, denomination Denomination, amount uint64) error {
	if err := l.CanDebit(principal, denomination, amount); err != nil {
		return err
	}
	l.subBalance(principal, denomination, amount)
	return nil
}

// CanTransfer checks every precondition of Transfer without mutating.
func (l *Ledger) CanTransfer(from, to Principal, denomination Denomination, amount uint64) error {
	fromBal := l.balances[balanceKey{from, denomination}]
	if amount > fromBal {
		return ErrInsufficientBalance
	}
	toBal := l.balances[balanceKey{to, denomination}]
	if to == from {
		toBal -= amount
	}
	if toBal > math.MaxUint64-amount {
		return ErrOverflow
	}
	return nil
}

// Transfer moves funds between principals atomically. No partial
// movement is ever observable: both preconditions are checked before
// either balance changes.
func (l *Ledger) Transfer(from, to Principal, denomination Denomination, amount uint64) error {
	if err := l.CanTransfer(from, to, denomination, amount); err != nil {
		return err
	}
	l.subBalance(from, denomination, amount)
	l.addBalance(to, denomination, amount)
	return nil
}

// CanBurn checks every precondition of Burn without mutating.
func (l *Ledger) CanBurn(principal Principal, denomination Denomination, amount uint64) error {
	return l.CanDebit(principal, denomination, amount)
}

// Burn debits a balance and increases the denomination's burned counter,
// shrinking circulating supply.
func (l *Ledger) Burn(principal Principal, denomination Denomination, amount uint64) error {
	if err := l.CanBurn(principal, denomination, amount); err != nil {
		return err
	}
	l.subBalance(principal, denomination, amount)
	l.burned[denomination] += amount
	return nil
}

// CanHold checks every precondition of Hold without mutating.
func (l *Ledger) CanHold(principal Principal, denomination Denomination, amount uint64) error {
	if amount > l.balances[balanceKey{principal, denomination}] {
		return ErrInsufficientBalance
	}
	if l.escrowed[denomination] > math.MaxUint64-amount {
		return ErrOverflow
	}
	return nil
}

// Hold moves funds out of a principal's spendable balance into escrow
// custody. The funds stop being visible in BalanceOf until released.
// Only the scheduled-action queue calls this.
func (l *Ledger) Hold(principal Principal, denomination Denomination, amount uint64) error {
	if err := l.CanHold(principal, denomination, amount); err != nil {
		return err
	}
	l.subBalance(principal, denomination, amount)
	l.escrowed[denomination] += amount
	return nil
}

// CanRelease checks every precondition of Release without mutating.
func (l *Ledger) CanRelease(to Principal, denomination Denomination, amount uint64) error {
	if amount > l.escrowed[denomination] {
		return ErrInsufficientBalance
	}
	if l.balances[balanceKey{to, denomination}] > math.MaxUint64-amount {
		return ErrOverflow
	}
	return nil
}

// Release moves escrowed funds back into a spendable balance, exactly
// once per held amount. Issued counters are untouched.
func (l *Ledger) Release(to Principal, denomination Denomination, amount uint64) error {
	if err := l.CanRelease(to, denomination, amount); err != nil {
		return err
	}
	l.escrowed[denomination] -= amount
	l.addBalance(to, denomination, amount)
	return nil
}

func (l *Ledger) addBalance(principal Principal, denomination Denomination, amount uint64) {
	key := balanceKey{principal, denomination}
	l.balances[key] += amount
	if l.balances[key] > 0 {
		set := l.holders[denomination]
		if set == nil {
			set = make(map[Principal]struct{})
			l.holders[denomination] = set
		}
		set[principal] = struct{}{}
	}
}

func (l *Ledger) subBalance(principal Principal, denomination Denomination, amount uint64) {
	key := balanceKey{principal, denomination}
	l.balances[key] -= amount
	if l.balances[key] == 0 {
		delete(l.balances, key)
		if set := l.holders[denomination]; set != nil {
			delete(set, principal)
		}
	}
}
