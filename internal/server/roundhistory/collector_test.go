package roundhistory

import (
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/crashforbots/internal/game"
)

func newTestCollector(t *testing.T) (*Collector, *Recorder) {
	t.Helper()
	rec := newTestRecorder(t, 10)
	return NewCollector(rec, testLogger()), rec
}

func TestCollectorAssemblesRound(t *testing.T) {
	collector, rec := newTestCollector(t)

	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	collector.OnEvent(game.NewBetPlacedEvent(5, "alice", 10000, 10000, base))
	collector.OnEvent(game.NewBetPlacedEvent(5, "bob", 5000, 15000, base.Add(time.Second)))
	collector.OnEvent(game.NewRoundCommittedEvent(5, "aabb", 2, base.Add(2*time.Second)))
	collector.OnEvent(game.NewRoundStartedEvent(5, base.Add(3*time.Second)))
	collector.OnEvent(game.NewCashedOutEvent(5, "alice", 10200, base.Add(5*time.Second)))
	collector.OnEvent(game.NewRoundRevealedEvent(5, "x", 27983, base.Add(9*time.Second)))
	collector.OnEvent(game.NewPayoutClaimedEvent(5, "alice", 10000, 10200, -200, base.Add(10*time.Second)))
	collector.OnEvent(game.NewPayoutClaimedEvent(5, "bob", 5000, 0, 5000, base.Add(11*time.Second)))
	collector.OnEvent(game.NewProfitWithdrawnEvent(5, "house", 4800, base.Add(12*time.Second)))
	collector.OnEvent(game.NewRoundResetEvent(5, 6, 0, base.Add(13*time.Second)))

	if len(rec.buffer) != 1 {
		t.Fatalf("expected 1 buffered round, got %d", len(rec.buffer))
	}
	round := rec.buffer[0]
	if round.RoundID != 5 {
		t.Errorf("round id = %d, want 5", round.RoundID)
	}
	if round.CommittedHash != "aabb" || round.Seed != "x" || round.CrashPoint != 27983 {
		t.Errorf("commit and reveal fields wrong: %+v", round)
	}
	if round.TotalStaked != 15000 || round.TotalPaidOut != 10200 || round.HouseDelta != 4800 {
		t.Errorf("totals wrong: staked=%d paid=%d delta=%d", round.TotalStaked, round.TotalPaidOut, round.HouseDelta)
	}
	if !round.CommittedAt.Equal(base.Add(2*time.Second)) || !round.StartedAt.Equal(base.Add(3*time.Second)) {
		t.Errorf("open timestamps wrong: %+v", round)
	}
	if !round.RevealedAt.Equal(base.Add(9*time.Second)) || !round.ClosedAt.Equal(base.Add(13*time.Second)) {
		t.Errorf("close timestamps wrong: %+v", round)
	}

	if len(round.Bets) != 2 {
		t.Fatalf("expected 2 bets, got %d", len(round.Bets))
	}
	alice := round.Bets[0]
	if !alice.CashedOut || alice.Multiplier != 10200 || alice.Payout != 10200 || alice.Result != ResultWon {
		t.Errorf("alice bet wrong: %+v", alice)
	}
	bob := round.Bets[1]
	if bob.CashedOut || bob.Payout != 0 || bob.Result != ResultLost {
		t.Errorf("bob bet wrong: %+v", bob)
	}

	if collector.current != nil {
		t.Error("expected pending record cleared after reset")
	}
}

func TestCollectorMarksUnclaimedBetsSwept(t *testing.T) {
	collector, rec := newTestCollector(t)

	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	collector.OnEvent(game.NewBetPlacedEvent(1, "alice", 10000, 10000, base))
	collector.OnEvent(game.NewRoundCommittedEvent(1, "hash", 1, base))
	collector.OnEvent(game.NewRoundStartedEvent(1, base))
	collector.OnEvent(game.NewRoundRevealedEvent(1, "seed", 20000, base))
	collector.OnEvent(game.NewRoundResetEvent(1, 2, 10000, base))

	if len(rec.buffer) != 1 {
		t.Fatalf("expected 1 buffered round, got %d", len(rec.buffer))
	}
	round := rec.buffer[0]
	if round.Swept != 10000 {
		t.Errorf("swept = %d, want 10000", round.Swept)
	}
	if round.Bets[0].Result != ResultSwept {
		t.Errorf("bet result = %q, want %q", round.Bets[0].Result, ResultSwept)
	}
}

func TestCollectorRecordsRefundedRound(t *testing.T) {
	collector, rec := newTestCollector(t)

	base := time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)
	collector.OnEvent(game.NewBetPlacedEvent(3, "alice", 10000, 10000, base))
	collector.OnEvent(game.NewBetPlacedEvent(3, "bob", 4000, 14000, base))
	collector.OnEvent(game.NewRoundCommittedEvent(3, "hash", 2, base.Add(time.Second)))
	collector.OnEvent(game.NewRefundIssuedEvent(3, "alice", 10000, base.Add(11*time.Minute)))
	collector.OnEvent(game.NewRoundStartedEvent(3, base.Add(12*time.Minute)))
	collector.OnEvent(game.NewRoundRevealedEvent(3, "stall", 27429, base.Add(12*time.Minute)))
	collector.OnEvent(game.NewRoundResetEvent(3, 4, 4000, base.Add(13*time.Minute)))

	if len(rec.buffer) != 1 {
		t.Fatalf("expected 1 buffered round, got %d", len(rec.buffer))
	}
	round := rec.buffer[0]
	if round.TotalRefunded != 10000 {
		t.Errorf("total refunded = %d, want 10000", round.TotalRefunded)
	}
	if round.Bets[0].Result != ResultRefunded {
		t.Errorf("alice result = %q, want %q", round.Bets[0].Result, ResultRefunded)
	}
	if round.Bets[1].Result != ResultSwept {
		t.Errorf("bob result = %q, want %q", round.Bets[1].Result, ResultSwept)
	}
	if round.Swept != 4000 {
		t.Errorf("swept = %d, want 4000", round.Swept)
	}
}

func TestCollectorDropsStaleRound(t *testing.T) {
	collector, rec := newTestCollector(t)

	base := time.Date(2025, time.June, 3, 10, 0, 0, 0, time.UTC)
	collector.OnEvent(game.NewBetPlacedEvent(1, "alice", 10000, 10000, base))
	collector.OnEvent(game.NewBetPlacedEvent(2, "bob", 5000, 5000, base.Add(time.Minute)))

	if len(rec.buffer) != 0 {
		t.Fatalf("expected nothing recorded, got %d", len(rec.buffer))
	}
	if collector.current == nil || collector.current.RoundID != 2 {
		t.Fatalf("expected pending record for round 2, got %+v", collector.current)
	}
	if len(collector.current.Bets) != 1 || collector.current.Bets[0].Player != "bob" {
		t.Errorf("unexpected bets: %+v", collector.current.Bets)
	}
}

func TestCollectorIgnoresCashOutWithoutBet(t *testing.T) {
	collector, _ := newTestCollector(t)

	ts := time.Date(2025, time.June, 3, 10, 0, 0, 0, time.UTC)
	collector.OnEvent(game.NewCashedOutEvent(1, "ghost", 10200, ts))

	if len(collector.current.Bets) != 0 {
		t.Errorf("expected no bets, got %+v", collector.current.Bets)
	}
}

// passSettler accepts every transfer so engine tests can run end to end.
type passSettler struct{}

func (passSettler) Collect(string, int64) error  { return nil }
func (passSettler) Transfer(string, int64) error { return nil }

func TestCollectorWithEngine(t *testing.T) {
	rec := newTestRecorder(t, 10)
	collector := NewCollector(rec, testLogger())

	clock := quartz.NewMock(t)
	engine := game.NewEngine(passSettler{},
		game.WithClock(clock),
		game.WithLogger(testLogger()),
	)
	engine.EventBus().Subscribe(collector)

	operator := game.Caller{Address: "house", Operator: true}
	alice := game.Caller{Address: "alice"}
	bob := game.Caller{Address: "bob"}

	if err := engine.PlaceBet(alice, 10000); err != nil {
		t.Fatalf("PlaceBet alice: %v", err)
	}
	if err := engine.PlaceBet(bob, 5000); err != nil {
		t.Fatalf("PlaceBet bob: %v", err)
	}
	if err := engine.CommitSeedHash(operator, game.HashSeed("x")); err != nil {
		t.Fatalf("CommitSeedHash: %v", err)
	}
	if err := engine.StartGame(operator); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	clock.Advance(2 * time.Second)
	if err := engine.CashOut(alice); err != nil {
		t.Fatalf("CashOut: %v", err)
	}
	if _, err := engine.Reveal(operator, "x"); err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if _, err := engine.ClaimPayout(alice); err != nil {
		t.Fatalf("ClaimPayout alice: %v", err)
	}
	if _, err := engine.ClaimPayout(bob); err != nil {
		t.Fatalf("ClaimPayout bob: %v", err)
	}
	if err := engine.ResetRound(operator); err != nil {
		t.Fatalf("ResetRound: %v", err)
	}

	if len(rec.buffer) != 1 {
		t.Fatalf("expected 1 recorded round, got %d", len(rec.buffer))
	}
	round := rec.buffer[0]
	if round.RoundID != 1 || round.Seed != "x" || round.CrashPoint != 27983 {
		t.Errorf("round fields wrong: %+v", round)
	}
	if round.CommittedHash != game.HashSeed("x") {
		t.Errorf("committed hash = %q, want hash of x", round.CommittedHash)
	}
	if round.TotalStaked != 15000 || round.TotalPaidOut != 10200 || round.HouseDelta != 4800 {
		t.Errorf("totals wrong: staked=%d paid=%d delta=%d", round.TotalStaked, round.TotalPaidOut, round.HouseDelta)
	}
	if len(round.Bets) != 2 {
		t.Fatalf("expected 2 bets, got %d", len(round.Bets))
	}
	if !round.Bets[0].CashedOut || round.Bets[0].Multiplier != 10200 || round.Bets[0].Result != ResultWon {
		t.Errorf("alice bet wrong: %+v", round.Bets[0])
	}
	if round.Bets[1].Result != ResultLost {
		t.Errorf("bob bet wrong: %+v", round.Bets[1])
	}
}
