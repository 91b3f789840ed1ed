package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/crashforbots/internal/fileutil"
	"github.com/lox/crashforbots/internal/game"
	"github.com/lox/crashforbots/internal/sessiontag"
	"github.com/lox/crashforbots/internal/simulator"
	"github.com/lox/crashforbots/internal/statistics"
)

// SimulateCmd plays Monte Carlo rounds against synthetic bettors to
// measure house economics.
type SimulateCmd struct {
	Rounds    int     `default:"50000" help:"Number of rounds to simulate"`
	Bettors   int     `default:"5" help:"Synthetic bettors per round"`
	Strategy  string  `default:"mixed" help:"Bettor strategy: cautious, steady, greedy, yolo, mixed"`
	StallRate float64 `default:"0" help:"Fraction of rounds that stall and refund all stakes"`
	Seed      int64   `default:"0" help:"RNG seed (0 for random)"`
	Workers   int     `default:"0" help:"Concurrent round workers (0 for GOMAXPROCS)"`
	StatsFile string  `help:"Write summary statistics as JSON to this file"`
	Verbose   bool    `short:"v" help:"Verbose logging"`
}

func (c *SimulateCmd) Run() error {
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}

	var logger *log.Logger
	if c.Verbose {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.DebugLevel})
	} else {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})
	}

	fmt.Printf("Starting simulation: %d rounds x %d bettors vs %s (seed: %d)\n",
		c.Rounds, c.Bettors, c.Strategy, c.Seed)

	sim := simulator.New(simulator.Config{
		Rounds:    c.Rounds,
		Bettors:   c.Bettors,
		Strategy:  c.Strategy,
		StallRate: c.StallRate,
		Seed:      c.Seed,
		Workers:   c.Workers,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	stats, strategyInfo, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	duration := time.Since(startTime)

	simulator.PrintSummary(stats, strategyInfo)
	fmt.Printf("\nTotal time: %v (%.0f rounds/sec)\n",
		duration.Round(time.Millisecond), float64(stats.Rounds)/duration.Seconds())

	if c.StatsFile != "" {
		if err := writeStatsFile(c.StatsFile, stats, strategyInfo, c.Seed); err != nil {
			return fmt.Errorf("failed to write stats file: %w", err)
		}
		logger.Info("Stats written to file", "file", c.StatsFile)
	}
	return nil
}

// simulationSummary is the JSON shape written by --stats-file. It
// carries the headline numbers rather than the per-round values.
type simulationSummary struct {
	RunID          string  `json:"runId"`
	Seed           int64   `json:"seed"`
	Strategy       string  `json:"strategy"`
	Rounds         int     `json:"rounds"`
	Bettors        int     `json:"bettors"`
	Cashouts       int     `json:"cashouts"`
	TotalStaked    int64   `json:"totalStaked"`
	TotalPaidOut   int64   `json:"totalPaidOut"`
	TotalRefunded  int64   `json:"totalRefunded"`
	TotalSwept     int64   `json:"totalSwept"`
	MeanNet        float64 `json:"meanNet"`
	MedianNet      float64 `json:"medianNet"`
	StdDev         float64 `json:"stdDev"`
	CILow          float64 `json:"ciLow"`
	CIHigh         float64 `json:"ciHigh"`
	RTP            float64 `json:"rtp"`
	HouseEdge      float64 `json:"houseEdge"`
	CashoutRate    float64 `json:"cashoutRate"`
	MaxCrashPoint  float64 `json:"maxCrashPoint"`
	MaxRoundPayout int64   `json:"maxRoundPayout"`
	InstantBusts   int     `json:"instantBusts"`
}

func writeStatsFile(path string, stats *statistics.Statistics, strategy string, seed int64) error {
	low, high := stats.ConfidenceInterval95()
	summary := simulationSummary{
		RunID:          sessiontag.Generate(),
		Seed:           seed,
		Strategy:       strategy,
		Rounds:         stats.Rounds,
		Bettors:        stats.Bettors,
		Cashouts:       stats.Cashouts,
		TotalStaked:    stats.TotalStaked,
		TotalPaidOut:   stats.TotalPaidOut,
		TotalRefunded:  stats.TotalRefunded,
		TotalSwept:     stats.TotalSwept,
		MeanNet:        stats.Mean(),
		MedianNet:      stats.Median(),
		StdDev:         stats.StdDev(),
		CILow:          low,
		CIHigh:         high,
		RTP:            stats.RTP(),
		HouseEdge:      stats.HouseEdge(),
		CashoutRate:    stats.CashoutRate(),
		MaxCrashPoint:  float64(stats.MaxCrashPoint) / game.Precision,
		MaxRoundPayout: stats.MaxRoundPayout,
		InstantBusts:   stats.InstantBusts,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}
