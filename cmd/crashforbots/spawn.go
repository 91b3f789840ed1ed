package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/crashforbots/internal/auth"
	"github.com/lox/crashforbots/internal/bank"
	"github.com/lox/crashforbots/internal/bot"
	"github.com/lox/crashforbots/internal/game"
	"github.com/lox/crashforbots/internal/server"
)

// SpawnCmd runs a self-contained game: an in-process server, a
// croupier dealing rounds and a swarm of bettors playing them.
type SpawnCmd struct {
	Addr          string        `default:"localhost:0" help:"Server address, defaults to a random port on localhost"`
	Bots          int           `short:"n" default:"5" help:"Number of bettors to spawn"`
	Strategy      string        `default:"mixed" enum:"cautious,steady,greedy,yolo,mixed" help:"Bettor cash-out strategy"`
	Rounds        int           `default:"10" help:"Deal this many rounds (0 deals until interrupted)"`
	BettingWindow time.Duration `default:"500ms" help:"Extra time betting stays open after the first bet"`
	MaxRoundTime  time.Duration `default:"30s" help:"Reveal deadline for far-out crash points"`
	ClaimGrace    time.Duration `default:"500ms" help:"Pause between reveal and reset for claims"`
	HouseFloat    int64         `default:"10000000" help:"Opening house treasury"`
	Deposit       int64         `default:"1000000" help:"Balance deposited for each bettor on auth"`
	Seed          int64         `help:"Seed for reproducible bettor behavior (0 for random)"`
	LogLevel      string        `short:"l" default:"info" enum:"debug,info,warn,error" help:"Log level"`
}

func (c *SpawnCmd) Run() error {
	logger, closeLog, err := setupLogger(c.LogLevel, "")
	if err != nil {
		return err
	}
	defer closeLog()

	if c.Bots < 1 {
		return fmt.Errorf("bots must be at least 1")
	}

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	listener, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer listener.Close()
	serverURL := fmt.Sprintf("http://%s", listener.Addr())

	treasury := bank.New(c.HouseFloat)
	engine := game.NewEngine(treasury, game.WithLogger(logger))
	wsServer := server.NewServer(listener.Addr().String(), logger)
	gameService := server.NewGameService(wsServer, server.GameServiceConfig{
		Engine:        engine,
		Bank:          treasury,
		Validator:     auth.NewNoopValidator(),
		DepositOnAuth: c.Deposit,
	}, logger)
	wsServer.SetGameService(gameService)

	serverErr := make(chan error, 1)
	go func() {
		if err := http.Serve(listener, wsServer.Handler()); err != nil {
			serverErr <- err
		}
	}()
	defer func() { _ = wsServer.Stop() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.WaitForHealthy(ctx, serverURL); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	logger.Info("Server started", "url", serverURL, "seed", seed)

	croupier := bot.NewCroupier(logger, bot.CroupierConfig{
		ServerURL:     serverURL,
		Token:         "operator:croupier",
		BettingWindow: c.BettingWindow,
		MaxRoundTime:  c.MaxRoundTime,
		ClaimGrace:    c.ClaimGrace,
		Rounds:        c.Rounds,
	})

	bettors, err := buildBettors(logger, serverURL, "bettor", c.Bots, c.Strategy, 0, 0, seed, c.Rounds)
	if err != nil {
		return err
	}

	logger.Info("Spawning bots", "bots", c.Bots, "strategy", c.Strategy, "rounds", c.Rounds)

	// Bettors stop themselves after their round count; the croupier
	// cancels any stragglers once the last round is dealt.
	betCtx, cancelBets := context.WithCancel(ctx)
	defer cancelBets()

	var g errgroup.Group
	g.Go(func() error {
		defer cancelBets()
		if err := croupier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	for _, b := range bettors {
		g.Go(func() error {
			if err := b.Run(betCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- g.Wait() }()
	select {
	case err := <-waitErr:
		if err != nil {
			return err
		}
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	state := engine.State()
	logger.Info("Spawn complete",
		"roundsDealt", state.RoundID-1,
		"houseProfit", state.HouseProfit)
	for i, b := range bettors {
		logger.Info("Bettor result", "bot", bettorToken("bettor", c.Bots, i), "played", b.Played(), "net", b.Net())
	}
	return nil
}
