package game

import "errors"

// Sentinel errors for round operations. Callers distinguish failure
// kinds with errors.Is; operations wrap these with context where it
// helps.
var (
	ErrUnauthorized     = errors.New("game: caller is not the operator")
	ErrInvalidPhase     = errors.New("game: operation not allowed in current phase")
	ErrInvalidBet       = errors.New("game: bet amount must be positive")
	ErrDuplicateBet     = errors.New("game: player already has a bet this round")
	ErrNoBet            = errors.New("game: player has no bet this round")
	ErrAlreadyCashedOut = errors.New("game: player already cashed out")
	ErrAlreadyClaimed   = errors.New("game: payout already claimed")
	ErrSeedMismatch     = errors.New("game: revealed seed does not match committed hash")
	ErrRefundTooEarly   = errors.New("game: refund window has not elapsed")
	ErrEmptyRound       = errors.New("game: cannot commit a round with no bets")
	ErrTransferFailed   = errors.New("game: settlement transfer failed")
)
