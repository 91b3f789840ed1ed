package game

import "time"

// BetEntry tracks one player's stake and settlement status for the
// active round.
type BetEntry struct {
	Amount        int64 // Stake in base units, immutable once placed
	CashedOut     bool  // Set at most once, while the round is in play
	CashoutTime   time.Time
	PayoutClaimed bool // Guards against double settlement
}

// BetLedger tracks stakes for the active round. The bettor registry is
// a dense slice with a reverse index from address to position, so both
// placement and removal are O(1). Removal swaps the last registry entry
// into the freed slot, so order is not preserved after the first
// removal; order carries no game meaning.
//
// An entry exists if and only if its address is registered. The Engine
// guards all access.
type BetLedger struct {
	entries map[string]*BetEntry
	bettors []string
	index   map[string]int
	total   int64
}

// NewBetLedger creates an empty ledger.
func NewBetLedger() *BetLedger {
	return &BetLedger{
		entries: make(map[string]*BetEntry),
		index:   make(map[string]int),
	}
}

// Has reports whether the player holds a bet this round.
func (l *BetLedger) Has(player string) bool {
	_, ok := l.entries[player]
	return ok
}

// Entry returns the player's entry, or nil if none exists.
func (l *BetLedger) Entry(player string) *BetEntry {
	return l.entries[player]
}

// Place records a new stake for the player. The caller validates phase,
// amount and duplicates first.
func (l *BetLedger) Place(player string, amount int64) {
	l.entries[player] = &BetEntry{Amount: amount}
	l.index[player] = len(l.bettors)
	l.bettors = append(l.bettors, player)
	l.total += amount
}

// Remove discards the player's entry and registry slot. The last
// registered address moves into the freed position and its reverse
// index is updated.
func (l *BetLedger) Remove(player string) {
	pos, ok := l.index[player]
	if !ok {
		return
	}
	last := len(l.bettors) - 1
	moved := l.bettors[last]
	l.bettors[pos] = moved
	l.index[moved] = pos
	l.bettors = l.bettors[:last]
	delete(l.index, player)
	l.total -= l.entries[player].Amount
	delete(l.entries, player)
}

// Bettors returns a copy of the registry.
func (l *BetLedger) Bettors() []string {
	out := make([]string, len(l.bettors))
	copy(out, l.bettors)
	return out
}

// Size returns the number of active bettors.
func (l *BetLedger) Size() int {
	return len(l.bettors)
}

// Total returns the sum of all active stakes.
func (l *BetLedger) Total() int64 {
	return l.total
}

// Reset discards every entry for the next round.
func (l *BetLedger) Reset() {
	l.entries = make(map[string]*BetEntry)
	l.index = make(map[string]int)
	l.bettors = l.bettors[:0]
	l.total = 0
}
