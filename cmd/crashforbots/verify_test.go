package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lox/crashforbots/internal/game"
	"github.com/lox/crashforbots/internal/sessiontag"
	"github.com/lox/crashforbots/internal/statistics"
)

func TestParseCrashPoint(t *testing.T) {
	cases := []struct {
		input string
		want  int64
	}{
		{"2.7983", 27983},
		{"27983", 27983},
		{"1.0", 10000},
		{"1000000", 1000000},
	}
	for _, tc := range cases {
		got, err := parseCrashPoint(tc.input)
		if err != nil {
			t.Fatalf("parseCrashPoint(%q) returned error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("parseCrashPoint(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}

	if _, err := parseCrashPoint("not-a-number"); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestVerifyCmdAcceptsMatchingRound(t *testing.T) {
	cmd := VerifyCmd{
		Seed:  "x",
		Hash:  game.HashSeed("x"),
		Crash: "2.7983",
	}
	if err := cmd.Run(); err != nil {
		t.Fatalf("expected matching round to verify, got %v", err)
	}
}

func TestVerifyCmdRejectsWrongCommitment(t *testing.T) {
	cmd := VerifyCmd{
		Seed: "x",
		Hash: game.HashSeed("y"),
	}
	if err := cmd.Run(); err == nil {
		t.Fatalf("expected commitment mismatch error")
	}
}

func TestVerifyCmdRejectsWrongCrashPoint(t *testing.T) {
	cmd := VerifyCmd{
		Seed:  "x",
		Crash: "2.0",
	}
	if err := cmd.Run(); err == nil {
		t.Fatalf("expected crash point mismatch error")
	}
}

func TestWriteStatsFile(t *testing.T) {
	stats := &statistics.Statistics{}
	stats.Add(statistics.RoundResult{
		Seed:       "x",
		CrashPoint: 27983,
		Bettors:    2,
		Cashouts:   1,
		Staked:     15000,
		PaidOut:    10200,
	})

	path := filepath.Join(t.TempDir(), "stats.json")
	if err := writeStatsFile(path, stats, "steady", 42); err != nil {
		t.Fatalf("writeStatsFile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read stats file: %v", err)
	}
	var summary simulationSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("failed to unmarshal stats file: %v", err)
	}

	if err := sessiontag.Validate(summary.RunID); err != nil {
		t.Errorf("Expected valid run id, got %q: %v", summary.RunID, err)
	}
	if summary.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", summary.Seed)
	}
	if summary.Strategy != "steady" {
		t.Errorf("Expected strategy steady, got %s", summary.Strategy)
	}
	if summary.Rounds != 1 {
		t.Errorf("Expected 1 round, got %d", summary.Rounds)
	}
	if summary.TotalStaked != 15000 {
		t.Errorf("Expected 15000 staked, got %d", summary.TotalStaked)
	}
	if summary.RTP != 0.68 {
		t.Errorf("Expected RTP 0.68, got %f", summary.RTP)
	}
	if summary.MaxCrashPoint != 2.7983 {
		t.Errorf("Expected max crash 2.7983, got %f", summary.MaxCrashPoint)
	}
}
