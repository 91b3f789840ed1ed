package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/crashforbots/internal/game"
)

// RoundResult represents the settled outcome of a single round from the
// house's perspective.
type RoundResult struct {
	Seed       string // round seed (for replay)
	CrashPoint int64  // fixed-point crash multiplier
	Bettors    int    // stakes accepted this round
	Cashouts   int    // bettors who cashed out before the crash
	Staked     int64
	PaidOut    int64
	Refunded   int64
	Swept      int64
}

// HouseNet is what the round moved into the treasury: settled stakes
// minus payouts. Refunded stakes wash out entirely.
func (r RoundResult) HouseNet() int64 {
	return r.Staked - r.Refunded - r.PaidOut
}

// crashBucketBounds are the fixed-point upper bounds of the histogram
// buckets (1.2x, 1.5x, 2x, 3x, 5x and 10x); the final bucket is
// unbounded.
var crashBucketBounds = [6]int64{
	12 * game.Precision / 10,
	15 * game.Precision / 10,
	2 * game.Precision,
	3 * game.Precision,
	5 * game.Precision,
	10 * game.Precision,
}

var crashBucketLabels = [7]string{
	"< 1.2x", "1.2-1.5x", "1.5-2x", "2-3x", "3-5x", "5-10x", ">= 10x",
}

// BucketStats tracks rounds within one crash point band.
type BucketStats struct {
	Rounds int
	Net    float64
}

// Statistics aggregates simulated rounds into house performance numbers
type Statistics struct {
	Rounds  int
	SumNet  float64
	SumNet2 float64   // Sum of squares for variance calculation
	Values  []float64 // Per-round house net, kept for median/percentile

	TotalStaked   int64
	TotalPaidOut  int64
	TotalRefunded int64
	TotalSwept    int64

	Bettors  int
	Cashouts int

	// Crash point analytics
	CrashBuckets  [7]BucketStats
	MaxCrashPoint int64
	InstantBusts  int // rounds that crashed at the floor multiplier

	// Payout analytics
	MaxRoundPayout int64 // largest single-round payout observed
}

// Mean returns the mean house net per round in units
func (s *Statistics) Mean() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.SumNet / float64(s.Rounds)
}

// Variance returns the sample variance of per-round house net
func (s *Statistics) Variance() float64 {
	if s.Rounds < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumNet2 - float64(s.Rounds)*mean*mean) / float64(s.Rounds-1)
}

// StdDev returns the sample standard deviation of per-round house net
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Rounds))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	se := s.StdError()
	margin := 1.96 * se // 95% confidence
	return mean - margin, mean + margin
}

// RTP returns the return-to-player ratio over settled stakes. Refunded
// stakes are excluded because they never reached settlement.
func (s *Statistics) RTP() float64 {
	settled := s.TotalStaked - s.TotalRefunded
	if settled == 0 {
		return 0
	}
	return float64(s.TotalPaidOut) / float64(settled)
}

// HouseEdge returns the house take as a fraction of settled stakes
func (s *Statistics) HouseEdge() float64 {
	if s.TotalStaked-s.TotalRefunded == 0 {
		return 0
	}
	return 1 - s.RTP()
}

// CashoutRate returns the fraction of bettors that cashed out in time
func (s *Statistics) CashoutRate() float64 {
	if s.Bettors == 0 {
		return 0
	}
	return float64(s.Cashouts) / float64(s.Bettors)
}

// Add incorporates a settled round into the statistics
func (s *Statistics) Add(result RoundResult) {
	net := float64(result.HouseNet())
	s.Rounds++
	s.SumNet += net
	s.SumNet2 += net * net
	s.Values = append(s.Values, net)

	s.TotalStaked += result.Staked
	s.TotalPaidOut += result.PaidOut
	s.TotalRefunded += result.Refunded
	s.TotalSwept += result.Swept

	s.Bettors += result.Bettors
	s.Cashouts += result.Cashouts

	bucket := bucketIndex(result.CrashPoint)
	s.CrashBuckets[bucket].Rounds++
	s.CrashBuckets[bucket].Net += net

	if result.CrashPoint > s.MaxCrashPoint {
		s.MaxCrashPoint = result.CrashPoint
	}
	if result.CrashPoint <= game.BaseMultiplier {
		s.InstantBusts++
	}
	if result.PaidOut > s.MaxRoundPayout {
		s.MaxRoundPayout = result.PaidOut
	}
}

// Median returns the median house net per round
func (s *Statistics) Median() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Percentile returns the house net at the given percentile (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// BucketLabel returns the display label for a crash histogram bucket
func BucketLabel(bucket int) string {
	if bucket < 0 || bucket >= len(crashBucketLabels) {
		return ""
	}
	return crashBucketLabels[bucket]
}

// BucketShare returns the fraction of rounds that fell in a bucket
func (s *Statistics) BucketShare(bucket int) float64 {
	if bucket < 0 || bucket >= len(s.CrashBuckets) || s.Rounds == 0 {
		return 0
	}
	return float64(s.CrashBuckets[bucket].Rounds) / float64(s.Rounds)
}

func bucketIndex(crashPoint int64) int {
	for i, bound := range crashBucketBounds {
		if crashPoint < bound {
			return i
		}
	}
	return len(crashBucketBounds)
}

// IsLedgerBalanced checks that the per-round series matches the totals
func (s *Statistics) IsLedgerBalanced() bool {
	return math.Abs(s.SumNet-float64(s.TotalStaked-s.TotalRefunded-s.TotalPaidOut)) <= 1e-6
}

// Validate performs consistency checks over the collected data
func (s *Statistics) Validate() error {
	if !s.IsLedgerBalanced() {
		return fmt.Errorf("ledger mismatch: SumNet=%.6f, staked=%d, refunded=%d, paid=%d",
			s.SumNet, s.TotalStaked, s.TotalRefunded, s.TotalPaidOut)
	}

	if s.Rounds <= 0 {
		return fmt.Errorf("invalid rounds count: %d", s.Rounds)
	}

	if len(s.Values) != s.Rounds {
		return fmt.Errorf("values array length (%d) does not match rounds count (%d)",
			len(s.Values), s.Rounds)
	}

	if s.Cashouts > s.Bettors {
		return fmt.Errorf("cashouts (%d) exceed bettors (%d)", s.Cashouts, s.Bettors)
	}

	bucketRounds := 0
	for _, bucket := range s.CrashBuckets {
		bucketRounds += bucket.Rounds
	}
	if bucketRounds != s.Rounds {
		return fmt.Errorf("bucket rounds total (%d) does not match rounds count (%d)",
			bucketRounds, s.Rounds)
	}

	return nil
}
