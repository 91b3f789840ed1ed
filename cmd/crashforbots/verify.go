package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lox/crashforbots/internal/game"
)

// VerifyCmd recomputes the commitment and crash point for a revealed
// seed. Players run it to check a finished round; operators run it to
// derive the hash to commit before a round starts.
type VerifyCmd struct {
	Seed  string `arg:"" help:"Round seed"`
	Hash  string `help:"Committed hash to check the seed against"`
	Crash string `help:"Announced crash point to check, either a multiplier like 2.7983 or raw units like 27983"`
}

func (c *VerifyCmd) Run() error {
	hash := game.HashSeed(c.Seed)
	crashPoint := game.CrashPoint(c.Seed)

	fmt.Printf("seed:        %s\n", c.Seed)
	fmt.Printf("commitment:  %s\n", hash)
	fmt.Printf("crash point: %.4fx (%d)\n", float64(crashPoint)/game.Precision, crashPoint)

	if c.Hash != "" {
		if !strings.EqualFold(c.Hash, hash) {
			return fmt.Errorf("commitment mismatch: round committed %s", c.Hash)
		}
		fmt.Println("commitment matches")
	}
	if c.Crash != "" {
		announced, err := parseCrashPoint(c.Crash)
		if err != nil {
			return err
		}
		if announced != crashPoint {
			return fmt.Errorf("crash point mismatch: round announced %.4fx (%d)",
				float64(announced)/game.Precision, announced)
		}
		fmt.Println("crash point matches")
	}
	return nil
}

// parseCrashPoint accepts either the human multiplier form ("2.7983")
// or the raw fixed point units bots see on the wire ("27983").
func parseCrashPoint(s string) (int64, error) {
	if strings.Contains(s, ".") {
		multiplier, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid crash point %q: %w", s, err)
		}
		return int64(math.Round(multiplier * game.Precision)), nil
	}
	units, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid crash point %q: %w", s, err)
	}
	return units, nil
}
