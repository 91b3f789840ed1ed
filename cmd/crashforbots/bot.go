package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/crashforbots/internal/bot"
)

// BotCmd connects automated bettors to a running server.
type BotCmd struct {
	Server   string `short:"s" default:"http://localhost:8080" help:"Server URL to connect to"`
	Name     string `default:"bettor" help:"Bettor name, used as the auth token (numbered when count > 1)"`
	Count    int    `short:"n" default:"1" help:"Number of bettors to run"`
	Strategy string `default:"steady" enum:"cautious,steady,greedy,yolo,mixed" help:"Cash-out strategy"`
	Stake    int64  `help:"Fixed stake per round (0 draws one each round)"`
	Target   int64  `help:"Fixed cash-out target in fixed point (0 draws from the strategy)"`
	Rounds   int    `help:"Stop after this many settled rounds (0 plays until interrupted)"`
	Seed     int64  `help:"Seed for reproducible behavior (0 for random)"`
	LogLevel string `short:"l" default:"info" enum:"debug,info,warn,error" help:"Log level"`
}

func (c *BotCmd) Run() error {
	logger, closeLog, err := setupLogger(c.LogLevel, "")
	if err != nil {
		return err
	}
	defer closeLog()

	if c.Count < 1 {
		return fmt.Errorf("count must be at least 1")
	}

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	bettors, err := buildBettors(logger, c.Server, c.Name, c.Count, c.Strategy, c.Stake, c.Target, seed, c.Rounds)
	if err != nil {
		return err
	}

	logger.Info("Starting bettors",
		"server", c.Server,
		"count", c.Count,
		"strategy", c.Strategy,
		"rounds", c.Rounds,
		"seed", seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range bettors {
		g.Go(func() error {
			if err := b.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, b := range bettors {
		logger.Info("Bettor result", "bot", bettorToken(c.Name, c.Count, i), "played", b.Played(), "net", b.Net())
	}
	return nil
}

// buildBettors constructs count bettors with derived tokens and seeds.
// A mixed strategy cycles through the known strategies.
func buildBettors(logger *log.Logger, serverURL, name string, count int, strategy string, stake, target, seed int64, rounds int) ([]*bot.Bettor, error) {
	names := bot.StrategyNames()
	bettors := make([]*bot.Bettor, 0, count)
	for i := 0; i < count; i++ {
		botStrategy := strategy
		if strategy == "mixed" {
			botStrategy = names[i%len(names)]
		}
		token := bettorToken(name, count, i)
		b, err := bot.NewBettor(logger.With("bot", token), bot.BettorConfig{
			ServerURL: serverURL,
			Token:     token,
			Strategy:  botStrategy,
			Stake:     stake,
			Target:    target,
			Seed:      seed + int64(i),
			Rounds:    rounds,
		})
		if err != nil {
			return nil, err
		}
		bettors = append(bettors, b)
	}
	return bettors, nil
}

func bettorToken(name string, count, index int) string {
	if count == 1 {
		return name
	}
	return fmt.Sprintf("%s-%d", name, index+1)
}
