// Package game implements the round settlement core for a multiplier
// crash game.
//
// The main type is Engine, which owns the single active Round and
// serializes every operation against it: bet placement, the
// commit-reveal of the round seed, cash-outs, payout claims, refunds
// and profit withdrawal.
//
// # Basic Usage
//
// Create an engine and run a round end to end:
//
//	e := game.NewEngine(bank)
//	e.PlaceBet(game.Caller{Address: "alice"}, 10000)
//	e.CommitSeedHash(operator, game.HashSeed(seed))
//	e.StartGame(operator)
//	e.CashOut(game.Caller{Address: "alice"})
//	e.Reveal(operator, seed)
//	e.ClaimPayout(game.Caller{Address: "alice"})
//	e.ResetRound(operator)
//
// # Deterministic Testing
//
// For deterministic testing, inject a mock clock:
//
//	clock := quartz.NewMock(t)
//	e := game.NewEngine(bank, game.WithClock(clock))
//
// The crash point itself is a pure function of the revealed seed, so
// fixed seeds give fixed outcomes.
//
// # Architecture
//
// Engine delegates responsibilities to specialized components:
//   - Round: phase, commitment and timestamps for the active round
//   - BetLedger: per-player stakes with O(1) insertion and removal
//   - Treasury: the signed house profit accumulator
//   - CrashPoint: the pure seed-to-multiplier mapping
//
// Every operation is atomic: validation happens before any mutation,
// and settlement transfers are attempted before accounting commits, so
// a failed transfer leaves the operation retryable.
package game
