package game

// Treasury accumulates the house's share of settled stakes across
// rounds. The balance is signed: a winning cash-out larger than its
// stake drives a round's delta negative. The Engine guards access.
type Treasury struct {
	profit int64
}

// NewTreasury creates an empty treasury.
func NewTreasury() *Treasury {
	return &Treasury{}
}

// Add applies a settlement delta, positive or negative.
func (t *Treasury) Add(delta int64) {
	t.profit += delta
}

// Profit returns the accumulated balance.
func (t *Treasury) Profit() int64 {
	return t.profit
}

// Withdrawable returns the amount a withdrawal would move: the balance
// when positive, zero otherwise. A negative balance stays in place
// until later rounds earn it back.
func (t *Treasury) Withdrawable() int64 {
	if t.profit <= 0 {
		return 0
	}
	return t.profit
}
