package server

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/lox/crashforbots/internal/auth"
	"github.com/lox/crashforbots/internal/bank"
	"github.com/lox/crashforbots/internal/game"
)

// GameService ties the round engine to the transport: it resolves
// tokens to identities, funds fresh accounts, exposes the engine
// operations to connections, and fans round events out to every
// authenticated client.
type GameService struct {
	engine        *game.Engine
	bank          *bank.Bank
	validator     auth.Validator
	server        *Server
	logger        *log.Logger
	depositOnAuth int64
}

// GameServiceConfig carries the collaborators the service needs.
type GameServiceConfig struct {
	Engine    *game.Engine
	Bank      *bank.Bank
	Validator auth.Validator

	// DepositOnAuth funds a player account on first authentication, so
	// bots can play without an out-of-band deposit step. Zero disables.
	DepositOnAuth int64
}

// NewGameService creates a game service and subscribes it to the
// engine's event stream.
func NewGameService(server *Server, cfg GameServiceConfig, logger *log.Logger) *GameService {
	gs := &GameService{
		engine:        cfg.Engine,
		bank:          cfg.Bank,
		validator:     cfg.Validator,
		server:        server,
		logger:        logger.WithPrefix("game-service"),
		depositOnAuth: cfg.DepositOnAuth,
	}

	gs.engine.EventBus().Subscribe(&engineEventSubscriber{
		server: server,
		logger: gs.logger.WithPrefix("events"),
	})

	return gs
}

// engineEventSubscriber forwards round events to connected clients.
type engineEventSubscriber struct {
	server *Server
	logger *log.Logger
}

// OnEvent implements the game.EventSubscriber interface. It runs under
// the engine lock, so it only hands messages to connection send
// buffers and never calls back into the engine.
func (s *engineEventSubscriber) OnEvent(event game.GameEvent) {
	msg, err := MessageFromEvent(event)
	if err != nil {
		s.logger.Error("Failed to convert event", "type", event.EventType(), "error", err)
		return
	}
	s.server.Broadcast(msg)
}

// Authenticate resolves a token and funds the account on first sight.
func (gs *GameService) Authenticate(ctx context.Context, token string) (*auth.Identity, error) {
	identity, err := gs.validator.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	if gs.depositOnAuth > 0 && !identity.Operator && gs.bank.Balance(identity.Address) == 0 {
		if err := gs.bank.Deposit(identity.Address, gs.depositOnAuth); err != nil {
			gs.logger.Error("Failed to fund account", "address", identity.Address, "error", err)
		} else {
			gs.logger.Info("Account funded", "address", identity.Address, "amount", gs.depositOnAuth)
		}
	}

	return identity, nil
}

// Balance returns a player's bank balance.
func (gs *GameService) Balance(address string) int64 {
	return gs.bank.Balance(address)
}

// State returns the engine's public snapshot.
func (gs *GameService) State() game.State {
	return gs.engine.State()
}

// PlaceBet stakes amount for the caller.
func (gs *GameService) PlaceBet(caller game.Caller, amount int64) error {
	return gs.engine.PlaceBet(caller, amount)
}

// CashOut registers the caller's cash-out.
func (gs *GameService) CashOut(caller game.Caller) error {
	return gs.engine.CashOut(caller)
}

// ClaimPayout settles the caller's bet.
func (gs *GameService) ClaimPayout(caller game.Caller) (game.Settlement, error) {
	return gs.engine.ClaimPayout(caller)
}

// Refund returns the caller's stake from a stalled round.
func (gs *GameService) Refund(caller game.Caller) (int64, error) {
	return gs.engine.Refund(caller)
}

// Commit fixes the seed commitment.
func (gs *GameService) Commit(caller game.Caller, hash string) error {
	return gs.engine.CommitSeedHash(caller, hash)
}

// Start opens the multiplier run.
func (gs *GameService) Start(caller game.Caller) error {
	return gs.engine.StartGame(caller)
}

// Reveal discloses the seed and fixes the crash point.
func (gs *GameService) Reveal(caller game.Caller, seed string) (int64, error) {
	return gs.engine.Reveal(caller, seed)
}

// Reset closes a revealed round and opens the next.
func (gs *GameService) Reset(caller game.Caller) error {
	return gs.engine.ResetRound(caller)
}

// Withdraw drains the house profit to the caller.
func (gs *GameService) Withdraw(caller game.Caller) (int64, error) {
	return gs.engine.WithdrawProfit(caller)
}

// RoundID returns the active round's identity.
func (gs *GameService) RoundID() uint64 {
	return gs.engine.RoundID()
}

// errorCode maps an engine error to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, game.ErrInvalidPhase):
		return "invalid_phase"
	case errors.Is(err, game.ErrInvalidBet):
		return "invalid_bet"
	case errors.Is(err, game.ErrDuplicateBet):
		return "duplicate_bet"
	case errors.Is(err, game.ErrNoBet):
		return "no_bet"
	case errors.Is(err, game.ErrAlreadyCashedOut):
		return "already_cashed_out"
	case errors.Is(err, game.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, game.ErrSeedMismatch):
		return "seed_mismatch"
	case errors.Is(err, game.ErrRefundTooEarly):
		return "refund_too_early"
	case errors.Is(err, game.ErrEmptyRound):
		return "empty_round"
	case errors.Is(err, game.ErrTransferFailed):
		return "transfer_failed"
	default:
		return "internal_error"
	}
}
