package game

import (
	"fmt"
	"time"
)

// Phase identifies where the active round is in its lifecycle. Phases
// advance strictly in order; ResetRound is the only way back to Betting.
type Phase int

const (
	// Betting accepts new bets.
	Betting Phase = iota
	// Committed has the seed hash fixed. No new bets; refunds become
	// available once the refund window elapses.
	Committed
	// InGame has the multiplier running; cash-outs are accepted.
	InGame
	// Revealed has the crash point known; payout claims are accepted.
	Revealed
)

// String returns the phase name used in logs and on the wire.
func (p Phase) String() string {
	switch p {
	case Betting:
		return "betting"
	case Committed:
		return "committed"
	case InGame:
		return "in_game"
	case Revealed:
		return "revealed"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Round holds the state of the single active round. The Engine owns the
// instance and guards all access. Fields are round-scoped and cleared on
// reset, except ID, which increments.
type Round struct {
	ID            uint64
	Phase         Phase
	CommittedHash string
	CommitTime    time.Time
	StartTime     time.Time
	RevealedSeed  string
	CrashPoint    int64
}

// requirePhase returns ErrInvalidPhase unless the round is in want.
func (r *Round) requirePhase(want Phase) error {
	if r.Phase != want {
		return fmt.Errorf("%w: round %d is %s, need %s", ErrInvalidPhase, r.ID, r.Phase, want)
	}
	return nil
}

// next clears round-scoped fields and advances the identity for the
// next betting window.
func (r *Round) next() {
	*r = Round{ID: r.ID + 1, Phase: Betting}
}
