package game

import "time"

// Settlement multiplier curve: the multiplier starts at BaseMultiplier
// when the round starts and grows by MultiplierRate per whole elapsed
// second. This linear curve is authoritative for settlement; a display
// layer may animate a richer one.
const (
	BaseMultiplier = Precision
	MultiplierRate = 100
)

// MultiplierAt returns the settlement multiplier for a cash-out
// registered elapsed time after round start. Elapsed time is floored to
// whole seconds; timestamps are coarse.
func MultiplierAt(elapsed time.Duration) int64 {
	if elapsed < 0 {
		elapsed = 0
	}
	return BaseMultiplier + int64(elapsed/time.Second)*MultiplierRate
}

// TimeToReach returns the elapsed round time at which the running
// multiplier first equals or exceeds target. Bots and simulations use
// it to turn a target multiplier into a cash-out delay.
func TimeToReach(target int64) time.Duration {
	if target <= BaseMultiplier {
		return 0
	}
	seconds := (target - BaseMultiplier + MultiplierRate - 1) / MultiplierRate
	return time.Duration(seconds) * time.Second
}

// Settlement is the split of one claimed stake between player and
// house. Payout goes to the player; HouseDelta is credited to the
// treasury and is negative when the payout exceeds the stake.
type Settlement struct {
	Payout     int64
	HouseDelta int64
}

// SettleBet computes the settlement for one entry against the revealed
// crash point. A player who never cashed out, or whose cash-out
// multiplier reached the crash point, forfeits the full stake.
func SettleBet(entry *BetEntry, startTime time.Time, crashPoint int64) Settlement {
	if !entry.CashedOut {
		return Settlement{HouseDelta: entry.Amount}
	}
	mult := MultiplierAt(entry.CashoutTime.Sub(startTime))
	if mult >= crashPoint {
		return Settlement{HouseDelta: entry.Amount}
	}
	payout := entry.Amount * mult / Precision
	return Settlement{Payout: payout, HouseDelta: entry.Amount - payout}
}
