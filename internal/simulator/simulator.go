package simulator

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/crashforbots/internal/game"
	"github.com/lox/crashforbots/internal/randutil"
	"github.com/lox/crashforbots/internal/statistics"
)

// Stake range for synthetic bettors, in base units.
const (
	minStake = 1000
	maxStake = 50000
)

// Config holds configuration for running simulations
type Config struct {
	Rounds    int
	Bettors   int     // synthetic bettors per round
	Strategy  string  // cash-out strategy for the bettor pool
	StallRate float64 // fraction of rounds that stall and refund every stake
	Seed      int64
	Workers   int // concurrent round workers, defaults to GOMAXPROCS
	Logger    *log.Logger
}

// Simulator replays the settlement curve against synthetic bettors to
// measure the house economics of the payout rules.
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	return &Simulator{config: config}
}

// Run executes the simulation and returns aggregated results
func (s *Simulator) Run(ctx context.Context) (*statistics.Statistics, string, error) {
	// Determine strategy info string
	strategyInfo := s.config.Strategy
	var strategyMix []string
	if s.config.Strategy == "mixed" {
		strategyMix = createMixedStrategyTypes()
		strategyInfo = fmt.Sprintf("mixed(%s)", strings.Join(strategyMix, ","))
	}

	workers := s.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	stats := &statistics.Statistics{}
	results := make(chan statistics.RoundResult, workers)

	// Single collector goroutine owns the statistics, so workers never
	// contend on it.
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for result := range results {
			stats.Add(result)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	rounds := make(chan int)
	g.Go(func() error {
		defer close(rounds)
		for round := 0; round < s.config.Rounds; round++ {
			select {
			case rounds <- round:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for round := range rounds {
				// Each round derives its own seed, so results do not
				// depend on worker count or scheduling.
				result := s.playRound(s.config.Seed+int64(round), strategyMix)
				select {
				case results <- result:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	err := g.Wait()
	close(results)
	<-collected
	if err != nil {
		return nil, "", err
	}

	// Validate statistics before returning
	if err := stats.Validate(); err != nil {
		return nil, "", fmt.Errorf("statistics validation failed: %w", err)
	}

	return stats, strategyInfo, nil
}

// playRound settles one synthetic round and reports its economics
func (s *Simulator) playRound(roundSeed int64, strategyMix []string) statistics.RoundResult {
	rng := randutil.New(roundSeed)

	seed := fmt.Sprintf("%d-%016x", roundSeed, rng.Uint64())
	crashPoint := game.CrashPoint(seed)

	result := statistics.RoundResult{
		Seed:       seed,
		CrashPoint: crashPoint,
		Bettors:    s.config.Bettors,
	}

	// A stalled round never starts; every stake comes back as a refund.
	if rng.Float64() < s.config.StallRate {
		for i := 0; i < s.config.Bettors; i++ {
			stake := drawStake(rng)
			result.Staked += stake
			result.Refunded += stake
		}
		return result
	}

	start := time.Unix(0, 0)
	for i := 0; i < s.config.Bettors; i++ {
		stake := drawStake(rng)
		strategy := s.config.Strategy
		if strategyMix != nil {
			strategy = strategyMix[i%len(strategyMix)]
		}
		target := s.drawTarget(strategy, rng)

		// The bettor presses cash-out at the first tick that reaches
		// the target; whether the round crashed first is decided by
		// the settlement rules.
		entry := game.BetEntry{
			Amount:      stake,
			CashedOut:   true,
			CashoutTime: start.Add(game.TimeToReach(target)),
		}
		result.Staked += stake

		settlement := game.SettleBet(&entry, start, crashPoint)
		if settlement.Payout > 0 {
			result.Cashouts++
			result.PaidOut += settlement.Payout
		} else {
			// Busted bettors rarely bother claiming a zero payout;
			// their stakes sweep at reset.
			result.Swept += stake
		}
	}

	return result
}

func drawStake(rng *rand.Rand) int64 {
	return minStake + rng.Int64N(maxStake-minStake+1)
}

// createMixedStrategyTypes returns a fixed strategy mix for consistent testing
func createMixedStrategyTypes() []string {
	return []string{"cautious", "steady", "cautious", "greedy", "steady", "yolo"}
}

// drawTarget picks a fixed-point cash-out target for one bettor
func (s *Simulator) drawTarget(strategy string, rng *rand.Rand) int64 {
	switch strategy {
	case "cautious":
		return targetBetween(rng, 11000, 15000) // 1.1x - 1.5x
	case "steady":
		return targetBetween(rng, 15000, 30000) // 1.5x - 3x
	case "greedy":
		return targetBetween(rng, 30000, 100000) // 3x - 10x
	case "yolo":
		return targetBetween(rng, 100000, 500000) // 10x - 50x
	default:
		s.config.Logger.Fatal("Unknown strategy", "strategy", strategy)
		return 0
	}
}

func targetBetween(rng *rand.Rand, low, high int64) int64 {
	return low + rng.Int64N(high-low+1)
}

// RunSimulation is a convenience function for running a simulation with basic parameters
func RunSimulation(ctx context.Context, rounds, bettors int, strategy string, seed int64, logger *log.Logger) (*statistics.Statistics, string, error) {
	config := Config{
		Rounds:   rounds,
		Bettors:  bettors,
		Strategy: strategy,
		Seed:     seed,
		Logger:   logger,
	}

	simulator := New(config)
	return simulator.Run(ctx)
}

// PrintSummary prints a comprehensive summary of simulation results
func PrintSummary(stats *statistics.Statistics, strategy string) {
	mean := stats.Mean()
	median := stats.Median()
	stdDev := stats.StdDev()
	stdErr := stats.StdError()
	low, high := stats.ConfidenceInterval95()
	p05 := stats.Percentile(0.05)
	p25 := stats.Percentile(0.25)
	p75 := stats.Percentile(0.75)
	p95 := stats.Percentile(0.95)

	fmt.Printf("\n=== FINAL RESULTS vs %s bettors ===\n", strategy)
	fmt.Printf("Rounds played: %d\n", stats.Rounds)
	fmt.Printf("Stakes accepted: %d\n", stats.Bettors)

	fmt.Printf("\n=== STATISTICAL RESULTS ===\n")
	fmt.Printf("Mean: %.2f units/round house net\n", mean)
	fmt.Printf("Median: %.2f units/round\n", median)
	fmt.Printf("Std Dev: %.2f units\n", stdDev)
	fmt.Printf("Std Error: %.2f units\n", stdErr)
	fmt.Printf("95%% CI: [%.2f, %.2f] units/round\n", low, high)
	fmt.Printf("Percentiles: P5=%.1f, P25=%.1f, P75=%.1f, P95=%.1f\n", p05, p25, p75, p95)

	fmt.Printf("\n=== ECONOMICS ===\n")
	fmt.Printf("Total staked: %d, paid out: %d, refunded: %d, swept: %d\n",
		stats.TotalStaked, stats.TotalPaidOut, stats.TotalRefunded, stats.TotalSwept)
	fmt.Printf("RTP: %.2f%% (house edge %.2f%%)\n", stats.RTP()*100, stats.HouseEdge()*100)
	fmt.Printf("Cashout rate: %.1f%% of %d stakes\n", stats.CashoutRate()*100, stats.Bettors)
	fmt.Printf("Largest single-round payout: %d units\n", stats.MaxRoundPayout)

	fmt.Printf("\n=== CRASH DISTRIBUTION ===\n")
	for i := range stats.CrashBuckets {
		bucket := stats.CrashBuckets[i]
		if bucket.Rounds == 0 {
			continue
		}
		fmt.Printf("%-9s %6d rounds (%5.1f%%), net %+.0f units\n",
			statistics.BucketLabel(i), bucket.Rounds, stats.BucketShare(i)*100, bucket.Net)
	}
	fmt.Printf("Max crash point: %.2fx, instant busts: %d (%.1f%%)\n",
		float64(stats.MaxCrashPoint)/game.Precision, stats.InstantBusts,
		float64(stats.InstantBusts)/float64(stats.Rounds)*100)
}
