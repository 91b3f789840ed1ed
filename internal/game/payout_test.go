package game

import (
	"testing"
	"time"
)

func TestMultiplierAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		elapsed  time.Duration
		expected int64
	}{
		{"at start", 0, 10000},
		{"one second", time.Second, 10100},
		{"two seconds", 2 * time.Second, 10200},
		{"sub-second floors down", 1900 * time.Millisecond, 10100},
		{"just under a second", 999 * time.Millisecond, 10000},
		{"negative clamps to start", -time.Second, 10000},
		{"three minutes", 180 * time.Second, 28000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MultiplierAt(tc.elapsed); got != tc.expected {
				t.Errorf("MultiplierAt(%v) = %d, want %d", tc.elapsed, got, tc.expected)
			}
		})
	}
}

func TestTimeToReach(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target  int64
		elapsed time.Duration
	}{
		{9999, 0},
		{10000, 0},
		{10001, time.Second},
		{10100, time.Second},
		{10101, 2 * time.Second},
		{11000, 10 * time.Second},
		{11001, 11 * time.Second},
		{27983, 180 * time.Second},
	}

	for _, tc := range tests {
		if got := TimeToReach(tc.target); got != tc.elapsed {
			t.Errorf("TimeToReach(%d) = %v, want %v", tc.target, got, tc.elapsed)
		}
		// The returned delay actually reaches the target
		if got := MultiplierAt(TimeToReach(tc.target)); got < tc.target {
			t.Errorf("MultiplierAt(TimeToReach(%d)) = %d, does not reach target", tc.target, got)
		}
	}
}

func TestSettleBet(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		entry      BetEntry
		cashoutAt  time.Duration
		crashPoint int64
		payout     int64
		houseDelta int64
	}{
		{
			name:       "never cashed out forfeits stake",
			entry:      BetEntry{Amount: 10000},
			crashPoint: 27983,
			payout:     0,
			houseDelta: 10000,
		},
		{
			name:       "cashed out below crash wins",
			entry:      BetEntry{Amount: 10000, CashedOut: true},
			cashoutAt:  2 * time.Second,
			crashPoint: 27983,
			payout:     10200,
			houseDelta: -200,
		},
		{
			name:       "cashed out at crash forfeits",
			entry:      BetEntry{Amount: 10000, CashedOut: true},
			cashoutAt:  180 * time.Second, // multiplier 28000
			crashPoint: 28000,
			payout:     0,
			houseDelta: 10000,
		},
		{
			name:       "cashed out above crash forfeits",
			entry:      BetEntry{Amount: 10000, CashedOut: true},
			cashoutAt:  200 * time.Second,
			crashPoint: 28000,
			payout:     0,
			houseDelta: 10000,
		},
		{
			name:       "payout rounds down in integer math",
			entry:      BetEntry{Amount: 9999, CashedOut: true},
			cashoutAt:  time.Second, // multiplier 10100
			crashPoint: 27983,
			payout:     10098, // 9999 * 10100 / 10000 floored
			houseDelta: -99,
		},
		{
			name:       "instant cashout returns exactly the stake",
			entry:      BetEntry{Amount: 10000, CashedOut: true},
			cashoutAt:  0,
			crashPoint: 27983,
			payout:     10000,
			houseDelta: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entry := tc.entry
			if entry.CashedOut {
				entry.CashoutTime = start.Add(tc.cashoutAt)
			}
			s := SettleBet(&entry, start, tc.crashPoint)
			if s.Payout != tc.payout {
				t.Errorf("Expected payout %d, got %d", tc.payout, s.Payout)
			}
			if s.HouseDelta != tc.houseDelta {
				t.Errorf("Expected house delta %d, got %d", tc.houseDelta, s.HouseDelta)
			}
			// Each settlement conserves the stake exactly
			if s.Payout+s.HouseDelta != entry.Amount {
				t.Errorf("Settlement does not conserve stake: %d + %d != %d",
					s.Payout, s.HouseDelta, entry.Amount)
			}
		})
	}
}
