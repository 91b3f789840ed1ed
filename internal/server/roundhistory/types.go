package roundhistory

import (
	"time"

	"github.com/coder/quartz"
)

// Bet results as they appear in recorded rounds.
const (
	ResultWon      = "won"
	ResultLost     = "lost"
	ResultRefunded = "refunded"
	ResultSwept    = "swept"
)

// BetRecord captures one player's result within a recorded round.
type BetRecord struct {
	Player     string `json:"player"`
	Amount     int64  `json:"amount"`
	CashedOut  bool   `json:"cashedOut,omitempty"`
	Multiplier int64  `json:"multiplier,omitempty"`
	Payout     int64  `json:"payout,omitempty"`
	Result     string `json:"result"`
}

// Record is the durable form of one completed round, written as a
// single JSON line.
type Record struct {
	RoundID       uint64      `json:"roundId"`
	CommittedHash string      `json:"committedHash,omitempty"`
	Seed          string      `json:"seed,omitempty"`
	CrashPoint    int64       `json:"crashPoint,omitempty"`
	TotalStaked   int64       `json:"totalStaked"`
	TotalPaidOut  int64       `json:"totalPaidOut"`
	TotalRefunded int64       `json:"totalRefunded"`
	Swept         int64       `json:"swept"`
	HouseDelta    int64       `json:"houseDelta"`
	Bets          []BetRecord `json:"bets,omitempty"`
	CommittedAt   time.Time   `json:"committedAt"`
	StartedAt     time.Time   `json:"startedAt"`
	RevealedAt    time.Time   `json:"revealedAt"`
	ClosedAt      time.Time   `json:"closedAt"`
}

// Config configures a recorder.
type Config struct {
	// Dir receives one rounds-YYYY-MM-DD.jsonl file per day plus a
	// latest.json snapshot of the most recently flushed round.
	Dir string

	// FlushThreshold is the buffered round count that requests an
	// asynchronous flush.
	FlushThreshold int

	Clock quartz.Clock
}
