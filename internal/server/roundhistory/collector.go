package roundhistory

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/crashforbots/internal/game"
)

// Collector assembles round records from engine events and hands each
// completed round to the recorder. It implements game.EventSubscriber;
// OnEvent runs under the engine lock, so it only mutates the pending
// record and appends to the recorder's buffer, never touching disk.
type Collector struct {
	recorder *Recorder
	logger   *log.Logger

	mu      sync.Mutex
	current *Record
	index   map[string]int
}

// NewCollector creates a collector feeding the given recorder.
func NewCollector(recorder *Recorder, logger *log.Logger) *Collector {
	return &Collector{
		recorder: recorder,
		logger:   logger.WithPrefix("roundhistory"),
	}
}

// OnEvent folds one engine event into the pending round record.
func (c *Collector) OnEvent(event game.GameEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := event.(type) {
	case game.BetPlacedEvent:
		rec := c.pending(e.RoundID)
		c.index[e.Player] = len(rec.Bets)
		rec.Bets = append(rec.Bets, BetRecord{Player: e.Player, Amount: e.Amount})
		rec.TotalStaked += e.Amount

	case game.RoundCommittedEvent:
		rec := c.pending(e.RoundID)
		rec.CommittedHash = e.CommittedHash
		rec.CommittedAt = e.Timestamp()

	case game.RoundStartedEvent:
		c.pending(e.RoundID).StartedAt = e.Timestamp()

	case game.CashedOutEvent:
		if bet := c.bet(e.RoundID, e.Player); bet != nil {
			bet.CashedOut = true
			bet.Multiplier = e.Multiplier
		}

	case game.RoundRevealedEvent:
		rec := c.pending(e.RoundID)
		rec.Seed = e.Seed
		rec.CrashPoint = e.CrashPoint
		rec.RevealedAt = e.Timestamp()

	case game.PayoutClaimedEvent:
		rec := c.pending(e.RoundID)
		rec.TotalPaidOut += e.Payout
		rec.HouseDelta += e.HouseDelta
		if bet := c.bet(e.RoundID, e.Player); bet != nil {
			bet.Payout = e.Payout
			if e.Payout > 0 {
				bet.Result = ResultWon
			} else {
				bet.Result = ResultLost
			}
		}

	case game.RefundIssuedEvent:
		rec := c.pending(e.RoundID)
		rec.TotalRefunded += e.Amount
		if bet := c.bet(e.RoundID, e.Player); bet != nil {
			bet.Result = ResultRefunded
		}

	case game.RoundResetEvent:
		rec := c.pending(e.RoundID)
		rec.Swept = e.Swept
		rec.ClosedAt = e.Timestamp()
		for i := range rec.Bets {
			if rec.Bets[i].Result == "" {
				rec.Bets[i].Result = ResultSwept
			}
		}
		c.recorder.Append(rec)
		c.current = nil
	}
}

// pending returns the record under assembly for roundID, discarding a
// stale record left over from a round the collector never saw close.
func (c *Collector) pending(roundID uint64) *Record {
	if c.current != nil && c.current.RoundID != roundID {
		c.logger.Warn("Dropping incomplete round record", "round", c.current.RoundID)
		c.current = nil
	}
	if c.current == nil {
		c.current = &Record{RoundID: roundID}
		c.index = make(map[string]int)
	}
	return c.current
}

func (c *Collector) bet(roundID uint64, player string) *BetRecord {
	rec := c.pending(roundID)
	i, ok := c.index[player]
	if !ok || i >= len(rec.Bets) {
		return nil
	}
	return &rec.Bets[i]
}
