package game

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Fixed-point multiplier scale. A multiplier of 1.00x is Precision;
// payouts scale the stake by the multiplier and divide by Precision.
const (
	Precision     = 10000
	MaxCrashPoint = 100 * Precision
)

// Crash distribution parameters. The modulus is strictly below the
// scale, so the division never sees a zero denominator.
const (
	crashScale   = 100000
	crashModulus = 99000
)

// GenerateSeed returns a fresh 32-byte random seed, hex encoded. The
// operator commits HashSeed of it before the round and keeps the
// plaintext private until reveal.
func GenerateSeed() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate seed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashSeed returns the hex sha256 digest of the seed, the commitment
// published before any cash-out time is known.
func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// CrashPoint maps a revealed seed to the round's crash multiplier,
// scaled by Precision and capped at MaxCrashPoint. The digest is
// reduced modulo the crash range and fed through a house-edge-biased
// reciprocal curve. Deterministic and public: anyone holding the
// revealed seed can recompute and audit the result.
func CrashPoint(seed string) int64 {
	sum := sha256.Sum256([]byte(seed))
	n := new(big.Int).SetBytes(sum[:])
	r := new(big.Int).Mod(n, big.NewInt(crashModulus)).Int64()
	crash := int64(crashScale*Precision) / (crashScale - r)
	if crash > MaxCrashPoint {
		crash = MaxCrashPoint
	}
	return crash
}
