package game

import (
	"testing"
)

func TestCrashPointDeterministic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seed     string
		expected int64
	}{
		{"x", 27983},
		{"abc", 99651},
		{"hello", 87873},
		{"test-seed", 12612},
		{"4", 10562},
		{"deadbeef", 12179},
	}

	for _, tc := range tests {
		t.Run(tc.seed, func(t *testing.T) {
			got := CrashPoint(tc.seed)
			if got != tc.expected {
				t.Errorf("CrashPoint(%q) = %d, want %d", tc.seed, got, tc.expected)
			}
			// Same seed must always map to the same crash point
			if again := CrashPoint(tc.seed); again != got {
				t.Errorf("CrashPoint(%q) not deterministic: %d then %d", tc.seed, got, again)
			}
		})
	}
}

func TestCrashPointBounds(t *testing.T) {
	t.Parallel()

	seeds := []string{"", "x", "abc", "hello", "0", "1", "2", "3", "4", "5",
		"seed-1", "seed-2", "seed-3", "crash", "stall", "refund-round"}

	for _, seed := range seeds {
		cp := CrashPoint(seed)
		if cp < Precision {
			t.Errorf("CrashPoint(%q) = %d, below minimum %d", seed, cp, Precision)
		}
		if cp > MaxCrashPoint {
			t.Errorf("CrashPoint(%q) = %d, above cap %d", seed, cp, MaxCrashPoint)
		}
	}
}

func TestHashSeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seed     string
		expected string
	}{
		{"x", "2d711642b726b04401627ca9fbac32f5c8530fb1903cc4db02258717921a4881"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tc := range tests {
		if got := HashSeed(tc.seed); got != tc.expected {
			t.Errorf("HashSeed(%q) = %s, want %s", tc.seed, got, tc.expected)
		}
	}
}

func TestGenerateSeed(t *testing.T) {
	t.Parallel()

	first, err := GenerateSeed()
	if err != nil {
		t.Fatalf("GenerateSeed failed: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(first))
	}

	second, err := GenerateSeed()
	if err != nil {
		t.Fatalf("GenerateSeed failed: %v", err)
	}
	if first == second {
		t.Error("Two generated seeds should not collide")
	}

	// A generated seed commits and reveals like any other
	if HashSeed(first) == HashSeed(second) {
		t.Error("Distinct seeds should not share a commitment")
	}
}
