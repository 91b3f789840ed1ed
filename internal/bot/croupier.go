package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/crashforbots/internal/client"
	"github.com/lox/crashforbots/internal/game"
	"github.com/lox/crashforbots/internal/server"
)

// CroupierConfig controls the automated operator.
type CroupierConfig struct {
	ServerURL     string
	Token         string        // must resolve to an operator identity
	BettingWindow time.Duration // extra time bets stay open after the first one
	MaxRoundTime  time.Duration // reveal deadline for far-out crash points
	ClaimGrace    time.Duration // pause between reveal and reset for claims
	Rounds        int           // run this many rounds then stop; 0 runs until the context ends
}

// Croupier runs the operator side of the game. Once bets arrive it
// commits a fresh seed, starts the round, reveals at the moment the
// crash point is reached and resets for the next round. The plaintext
// seed never leaves the process before reveal.
//
// A croupier joining a server whose round is already committed or
// running refuses to run: the seed for that round died with whoever
// committed it, and only player refunds can unwind it.
type Croupier struct {
	config CroupierConfig
	logger *log.Logger
}

// NewCroupier creates a croupier, filling in defaults for unset
// timings.
func NewCroupier(logger *log.Logger, config CroupierConfig) *Croupier {
	if config.BettingWindow <= 0 {
		config.BettingWindow = 5 * time.Second
	}
	if config.MaxRoundTime <= 0 {
		config.MaxRoundTime = 2 * time.Minute
	}
	if config.ClaimGrace <= 0 {
		config.ClaimGrace = 3 * time.Second
	}
	return &Croupier{
		config: config,
		logger: logger.WithPrefix("croupier"),
	}
}

// Run connects, authenticates as the operator and deals rounds until
// the context ends or the configured round count completes.
func (c *Croupier) Run(ctx context.Context) error {
	cli := client.New(c.config.ServerURL, c.logger)
	if err := cli.Connect(); err != nil {
		return err
	}
	defer cli.Close()

	events := make(chan *server.Message, 256)
	forward := func(msg *server.Message) {
		select {
		case events <- msg:
		default:
			c.logger.Warn("Dropping event, croupier is behind", "type", msg.Type)
		}
	}
	for _, t := range []server.MessageType{
		client.Event(game.EventTypeBetPlaced),
		client.Event(game.EventTypeRoundCommitted),
		client.Event(game.EventTypeRoundStarted),
		client.Event(game.EventTypeRoundRevealed),
		client.Event(game.EventTypeRoundReset),
		server.MessageTypeError,
	} {
		cli.OnMessage(t, forward)
	}

	if _, err := cli.Auth(ctx, c.config.Token); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if !cli.Operator() {
		return fmt.Errorf("token for %s has no operator rights", cli.Address())
	}
	c.logger.Info("Croupier online", "address", cli.Address())

	played := 0
	for {
		if err := c.runRound(ctx, cli, events); err != nil {
			return err
		}
		played++
		if c.config.Rounds > 0 && played >= c.config.Rounds {
			c.logger.Info("Croupier done", "rounds", played)
			return nil
		}
	}
}

// runRound deals one complete round, from open betting to reset.
func (c *Croupier) runRound(ctx context.Context, cli *client.Client, events <-chan *server.Message) error {
	state, err := cli.State(ctx)
	if err != nil {
		return err
	}
	switch state.Phase {
	case game.Betting.String():
	case game.Revealed.String():
		// A predecessor revealed but never reset. Close its round out.
		if err := c.sleep(ctx, cli, c.config.ClaimGrace); err != nil {
			return err
		}
		if err := cli.Reset(); err != nil {
			return err
		}
		_, err := c.await(ctx, cli, events, client.Event(game.EventTypeRoundReset))
		return err
	default:
		return fmt.Errorf("round %d is %s and its seed is unknown", state.RoundID, state.Phase)
	}

	if state.TotalBets == 0 {
		if _, err := c.await(ctx, cli, events, client.Event(game.EventTypeBetPlaced)); err != nil {
			return err
		}
	}
	if err := c.sleep(ctx, cli, c.config.BettingWindow); err != nil {
		return err
	}

	seed, err := game.GenerateSeed()
	if err != nil {
		return err
	}
	if err := cli.Commit(game.HashSeed(seed)); err != nil {
		return err
	}
	msg, err := c.await(ctx, cli, events, client.Event(game.EventTypeRoundCommitted))
	if err != nil {
		return err
	}
	var committed server.RoundCommittedData
	if err := json.Unmarshal(msg.Data, &committed); err != nil {
		return err
	}
	c.logger.Info("Round committed", "round", committed.RoundID, "bettors", committed.Bettors)

	if err := cli.StartRound(); err != nil {
		return err
	}
	if _, err := c.await(ctx, cli, events, client.Event(game.EventTypeRoundStarted)); err != nil {
		return err
	}

	// The seed already fixes when this round crashes. Reveal at that
	// moment, or at the deadline when the crash point lies far out.
	crash := game.CrashPoint(seed)
	delay := game.TimeToReach(crash)
	if delay > c.config.MaxRoundTime {
		delay = c.config.MaxRoundTime
	}
	c.logger.Info("Round running", "round", committed.RoundID, "revealIn", delay)
	if err := c.sleep(ctx, cli, delay); err != nil {
		return err
	}

	if err := cli.Reveal(seed); err != nil {
		return err
	}
	msg, err = c.await(ctx, cli, events, client.Event(game.EventTypeRoundRevealed))
	if err != nil {
		return err
	}
	var revealed server.RoundRevealedData
	if err := json.Unmarshal(msg.Data, &revealed); err != nil {
		return err
	}
	c.logger.Info("Round revealed", "round", revealed.RoundID, "crashPoint", revealed.CrashPoint)

	if err := c.sleep(ctx, cli, c.config.ClaimGrace); err != nil {
		return err
	}
	if err := cli.Reset(); err != nil {
		return err
	}
	_, err = c.await(ctx, cli, events, client.Event(game.EventTypeRoundReset))
	return err
}

// await blocks until a broadcast of the wanted type arrives, skipping
// other broadcasts. A rejection of one of the croupier's own commands
// arrives as an error message and aborts the round in flight.
func (c *Croupier) await(ctx context.Context, cli *client.Client, events <-chan *server.Message, want server.MessageType) (*server.Message, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-cli.Done():
			return nil, errors.New("connection closed")
		case msg := <-events:
			if msg.Type == server.MessageTypeError {
				var data server.ErrorData
				if err := json.Unmarshal(msg.Data, &data); err != nil {
					return nil, err
				}
				return nil, &client.ServerError{Code: data.Code, Message: data.Message}
			}
			if msg.Type == want {
				return msg, nil
			}
		}
	}
}

func (c *Croupier) sleep(ctx context.Context, cli *client.Client, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-cli.Done():
		return errors.New("connection closed")
	case <-timer.C:
		return nil
	}
}
