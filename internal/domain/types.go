package domain

// Principal is an opaque account identity (wallet/address-equivalent).
// The engine assumes nothing about its structure beyond equality.
type Principal string

// Denomination names a unit of fungible value. One ledger can track many
// denominations at once.
type Denomination string

// Capability names a permission an actor may hold. Capabilities are
// resolved by the caller (e.g. from token claims); the engine only
// compares them against per-transition requirements.
type Capability string

// Capabilities understood by the engine's own surfaces. Kind transition
// tables may name arbitrary additional capabilities.
const (
	CapLedgerMint    Capability = "ledger:mint"
	CapLedgerMove    Capability = "ledger:move"
	CapLedgerBurn    Capability = "ledger:burn"
	CapRegistryWrite Capability = "registry:write"
	CapQueueSchedule Capability = "queue:schedule"
	CapTallyOpen     Capability = "tally:open"
	CapTallyWeigh    Capability = "tally:weigh"
)

// CapabilitySet is the set of capabilities attached to an actor.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from a list of capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the given capability.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}
