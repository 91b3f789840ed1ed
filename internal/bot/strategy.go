package bot

import (
	"fmt"
	rand "math/rand/v2"
	"strings"
)

// Stake range for drawn stakes, in base units. Matches the bettor
// population the simulator models.
const (
	minStake = 1000
	maxStake = 50000
)

// A Strategy picks fixed-point cash-out targets for a bettor. The
// ranges mirror the simulator's populations, so a live swarm
// reproduces the same economics the simulator predicts.
type Strategy struct {
	name string
	low  int64
	high int64
}

var strategies = []Strategy{
	{"cautious", 11000, 15000},  // 1.1x - 1.5x
	{"steady", 15000, 30000},    // 1.5x - 3x
	{"greedy", 30000, 100000},   // 3x - 10x
	{"yolo", 100000, 500000},    // 10x - 50x
}

// StrategyNames returns the known strategy names in declaration order.
func StrategyNames() []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.name
	}
	return names
}

// StrategyByName resolves a strategy by name.
func StrategyByName(name string) (Strategy, error) {
	for _, s := range strategies {
		if s.name == name {
			return s, nil
		}
	}
	return Strategy{}, fmt.Errorf("unknown strategy %q (want one of %s)", name, strings.Join(StrategyNames(), ", "))
}

// Name returns the strategy's name.
func (s Strategy) Name() string {
	return s.name
}

// DrawTarget picks a cash-out target within the strategy's range.
func (s Strategy) DrawTarget(rng *rand.Rand) int64 {
	return s.low + rng.Int64N(s.high-s.low+1)
}

// DrawStake picks a stake for one round.
func DrawStake(rng *rand.Rand) int64 {
	return minStake + rng.Int64N(maxStake-minStake+1)
}
