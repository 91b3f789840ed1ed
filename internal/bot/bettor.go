// Package bot implements automated crash players. Bettor stakes and
// cashes out against a live server using the strategy populations the
// simulator models; Croupier runs the operator side of the round
// lifecycle. Both speak the public WebSocket protocol through the
// client package.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/crashforbots/internal/client"
	"github.com/lox/crashforbots/internal/game"
	"github.com/lox/crashforbots/internal/randutil"
	"github.com/lox/crashforbots/internal/server"
)

// BettorConfig controls one automated bettor.
type BettorConfig struct {
	ServerURL string
	Token     string
	Strategy  string // cautious, steady, greedy or yolo
	Stake     int64  // stake per round; 0 draws one each round
	Target    int64  // fixed cash-out target; 0 draws from the strategy
	Seed      int64  // rng seed; 0 seeds from the wall clock
	Rounds    int    // settle this many rounds then stop; 0 plays until the context ends
}

// Bettor is an automated player. It bets every round, arms a cash-out
// timer when the round starts and claims winning payouts after reveal.
// It also audits the operator: every revealed seed is checked against
// the hash committed before the round.
type Bettor struct {
	config   BettorConfig
	strategy Strategy
	logger   *log.Logger
	clock    quartz.Clock
	rng      *rand.Rand

	// Round state below is owned by the Run loop.
	committedHash string
	betPlaced     bool
	cashedOut     bool
	stake         int64
	cashTimer     *quartz.Timer
	played        int
	net           int64
}

// NewBettor creates a bettor from the config. An empty strategy plays
// steady; a zero seed draws a fresh one from the wall clock.
func NewBettor(logger *log.Logger, config BettorConfig) (*Bettor, error) {
	return NewBettorWithClock(logger, config, quartz.NewReal())
}

// NewBettorWithClock creates a bettor with an explicit time source for
// its cash-out timers.
func NewBettorWithClock(logger *log.Logger, config BettorConfig, clock quartz.Clock) (*Bettor, error) {
	if config.Strategy == "" {
		config.Strategy = "steady"
	}
	strategy, err := StrategyByName(config.Strategy)
	if err != nil && config.Target == 0 {
		return nil, err
	}
	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}
	return &Bettor{
		config:   config,
		strategy: strategy,
		logger:   logger.WithPrefix("bettor"),
		clock:    clock,
		rng:      randutil.New(config.Seed),
	}, nil
}

// Played returns the number of rounds the bettor settled. Valid after
// Run returns.
func (b *Bettor) Played() int {
	return b.played
}

// Net returns the bettor's profit across all settled rounds, negative
// when the house won. Valid after Run returns.
func (b *Bettor) Net() int64 {
	return b.net
}

// Run connects, authenticates and plays until the context ends, the
// connection drops or the configured round count settles.
func (b *Bettor) Run(ctx context.Context) error {
	cli := client.New(b.config.ServerURL, b.logger)
	if err := cli.Connect(); err != nil {
		return err
	}
	defer cli.Close()

	events := make(chan *server.Message, 256)
	forward := func(msg *server.Message) {
		select {
		case events <- msg:
		default:
			b.logger.Warn("Dropping event, bettor is behind", "type", msg.Type)
		}
	}
	for _, t := range []server.MessageType{
		client.Event(game.EventTypeBetPlaced),
		client.Event(game.EventTypeRoundCommitted),
		client.Event(game.EventTypeRoundStarted),
		client.Event(game.EventTypeCashedOut),
		client.Event(game.EventTypeRoundRevealed),
		client.Event(game.EventTypeRoundReset),
		server.MessageTypeError,
	} {
		cli.OnMessage(t, forward)
	}

	auth, err := cli.Auth(ctx, b.config.Token)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	b.logger.Info("Bettor joined",
		"address", cli.Address(),
		"balance", auth.Balance,
		"strategy", b.config.Strategy)

	// Join the round in flight. Betting may still be open, and a
	// committed hash in the snapshot seeds the reveal audit.
	state, err := cli.State(ctx)
	if err != nil {
		return err
	}
	b.committedHash = state.CommittedHash
	if state.Phase == game.Betting.String() {
		b.placeBet(cli)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cli.Done():
			return errors.New("connection closed")
		case msg := <-events:
			done, err := b.handle(ctx, cli, msg)
			if err != nil {
				return err
			}
			if done {
				b.logger.Info("Bettor done", "rounds", b.played, "net", b.net)
				return nil
			}
		}
	}
}

func (b *Bettor) handle(ctx context.Context, cli *client.Client, msg *server.Message) (bool, error) {
	switch msg.Type {
	case client.Event(game.EventTypeBetPlaced):
		var data server.BetPlacedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return false, err
		}
		if data.Player == cli.Address() {
			b.betPlaced = true
			b.stake = data.Amount
			b.logger.Debug("Bet confirmed", "round", data.RoundID, "stake", data.Amount)
		}

	case client.Event(game.EventTypeRoundCommitted):
		var data server.RoundCommittedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return false, err
		}
		b.committedHash = data.CommittedHash

	case client.Event(game.EventTypeRoundStarted):
		if b.betPlaced {
			b.armCashOut(cli)
		}

	case client.Event(game.EventTypeCashedOut):
		var data server.CashedOutData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return false, err
		}
		if data.Player == cli.Address() {
			b.cashedOut = true
			b.logger.Debug("Cashed out", "round", data.RoundID, "multiplier", data.Multiplier)
		}

	case client.Event(game.EventTypeRoundRevealed):
		var data server.RoundRevealedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return false, err
		}
		return b.settleRound(ctx, cli, data)

	case client.Event(game.EventTypeRoundReset):
		b.committedHash = ""
		b.betPlaced = false
		b.cashedOut = false
		b.stake = 0
		b.placeBet(cli)

	case server.MessageTypeError:
		var data server.ErrorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return false, err
		}
		b.logger.Warn("Server rejected a command", "code", data.Code, "message", data.Message)
	}
	return false, nil
}

func (b *Bettor) placeBet(cli *client.Client) {
	stake := b.config.Stake
	if stake == 0 {
		stake = DrawStake(b.rng)
	}
	if err := cli.PlaceBet(stake); err != nil {
		b.logger.Warn("Failed to send bet", "error", err)
	}
}

// armCashOut schedules the cash-out for this round. Targets at or
// below the opening multiplier cash out immediately.
func (b *Bettor) armCashOut(cli *client.Client) {
	target := b.config.Target
	if target == 0 {
		target = b.strategy.DrawTarget(b.rng)
	}
	delay := game.TimeToReach(target)
	if delay == 0 {
		b.logger.Debug("Cashing out at the opening multiplier", "target", target)
		if err := cli.CashOut(); err != nil {
			b.logger.Warn("Failed to send cash-out", "error", err)
		}
		return
	}
	b.logger.Debug("Armed cash-out", "target", target, "delay", delay)
	b.cashTimer = b.clock.AfterFunc(delay, func() {
		if err := cli.CashOut(); err != nil {
			b.logger.Warn("Failed to send cash-out", "error", err)
		}
	})
}

// settleRound closes the bettor's book on a revealed round: it checks
// the reveal against the commitment, claims the payout if the cash-out
// landed, and writes off the stake otherwise.
func (b *Bettor) settleRound(ctx context.Context, cli *client.Client, data server.RoundRevealedData) (bool, error) {
	if b.cashTimer != nil {
		b.cashTimer.Stop()
		b.cashTimer = nil
	}

	// The point of the commitment scheme. A mismatch means the operator
	// swapped seeds after seeing the bets, so stop playing.
	if b.committedHash != "" && game.HashSeed(data.Seed) != b.committedHash {
		return false, fmt.Errorf("round %d revealed seed %q that does not match commitment %s",
			data.RoundID, data.Seed, b.committedHash)
	}

	if !b.betPlaced {
		return false, nil
	}
	b.played++

	if !b.cashedOut {
		// Nothing to claim; the stake sweeps to the house at reset.
		b.net -= b.stake
		b.logger.Info("Busted", "round", data.RoundID, "crashPoint", data.CrashPoint, "stake", b.stake, "net", b.net)
	} else if res, err := cli.ClaimPayout(ctx); err != nil {
		var serverErr *client.ServerError
		if !errors.As(err, &serverErr) {
			return false, err
		}
		b.net -= b.stake
		b.logger.Warn("Claim rejected", "round", data.RoundID, "code", serverErr.Code, "net", b.net)
	} else {
		b.net += res.Payout - b.stake
		if res.Payout > 0 {
			b.logger.Info("Claimed payout", "round", data.RoundID, "stake", b.stake, "payout", res.Payout, "net", b.net)
		} else {
			b.logger.Info("Cashed out too late", "round", data.RoundID, "crashPoint", data.CrashPoint, "net", b.net)
		}
	}

	return b.config.Rounds > 0 && b.played >= b.config.Rounds, nil
}
