package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/crashforbots/internal/auth"
	"github.com/lox/crashforbots/internal/bank"
	"github.com/lox/crashforbots/internal/client"
	"github.com/lox/crashforbots/internal/game"
	"github.com/lox/crashforbots/internal/server"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// botStack runs a full server for bot tests. The clock drives the
// engine, so tests passing a mock control the multiplier.
type botStack struct {
	bank *bank.Bank
	url  string
}

func newBotStack(t *testing.T, clock quartz.Clock) *botStack {
	t.Helper()
	logger := testLogger()

	bk := bank.New(100000)
	engine := game.NewEngine(bk,
		game.WithClock(clock),
		game.WithLogger(logger),
		game.WithRefundWindow(time.Minute),
	)

	srv := server.NewServer("localhost:0", logger)
	gs := server.NewGameService(srv, server.GameServiceConfig{
		Engine:        engine,
		Bank:          bk,
		Validator:     auth.NewNoopValidator(),
		DepositOnAuth: 100000,
	}, logger)
	srv.SetGameService(gs)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Stop()
	})

	return &botStack{bank: bk, url: ts.URL}
}

func (bs *botStack) connect(t *testing.T, token string) *client.Client {
	t.Helper()
	cli := client.New(bs.url, testLogger())
	require.NoError(t, cli.Connect())
	t.Cleanup(func() { _ = cli.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Auth(ctx, token)
	require.NoError(t, err)
	return cli
}

// watch funnels the given broadcast types into one ordered channel.
func watch(cli *client.Client, types ...server.MessageType) <-chan *server.Message {
	events := make(chan *server.Message, 64)
	for _, messageType := range types {
		cli.OnMessage(messageType, func(msg *server.Message) {
			events <- msg
		})
	}
	return events
}

func awaitType(t *testing.T, events <-chan *server.Message, want server.MessageType) *server.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-events:
			if msg.Type == want {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestBettorPlaysARoundInstantCashOut(t *testing.T) {
	clock := quartz.NewMock(t)
	stack := newBotStack(t, clock)

	op := stack.connect(t, "operator:house")
	events := watch(op,
		client.Event(game.EventTypeBetPlaced),
		client.Event(game.EventTypeCashedOut),
		client.Event(game.EventTypePayoutClaimed),
	)

	// A target at the opening multiplier cashes out the moment the
	// round starts, so the frozen clock pays exactly the stake back.
	bettor, err := NewBettorWithClock(testLogger(), BettorConfig{
		ServerURL: stack.url,
		Token:     "bob",
		Stake:     10000,
		Target:    game.BaseMultiplier,
		Seed:      1,
		Rounds:    1,
	}, clock)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- bettor.Run(ctx) }()

	awaitType(t, events, client.Event(game.EventTypeBetPlaced))
	require.NoError(t, op.Commit(game.HashSeed("x")))
	require.NoError(t, op.StartRound())
	awaitType(t, events, client.Event(game.EventTypeCashedOut))
	require.NoError(t, op.Reveal("x"))

	claim := awaitType(t, events, client.Event(game.EventTypePayoutClaimed))
	var claimed server.PayoutClaimedData
	require.NoError(t, json.Unmarshal(claim.Data, &claimed))
	require.Equal(t, "bob", claimed.Player)
	require.Equal(t, int64(10000), claimed.Stake)
	require.Equal(t, int64(10000), claimed.Payout)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bettor did not finish")
	}
	require.Equal(t, 1, bettor.Played())
	require.Equal(t, int64(0), bettor.Net())
	require.Equal(t, int64(100000), stack.bank.Balance("bob"))
}

func TestBettorCashOutTimerFiresOnAdvance(t *testing.T) {
	clock := quartz.NewMock(t)
	stack := newBotStack(t, clock)

	op := stack.connect(t, "operator:house")
	events := watch(op,
		client.Event(game.EventTypeBetPlaced),
		client.Event(game.EventTypeCashedOut),
		client.Event(game.EventTypePayoutClaimed),
	)

	bettor, err := NewBettorWithClock(testLogger(), BettorConfig{
		ServerURL: stack.url,
		Token:     "carol",
		Stake:     10000,
		Target:    10200, // reached two seconds in
		Seed:      1,
		Rounds:    1,
	}, clock)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- bettor.Run(ctx) }()

	awaitType(t, events, client.Event(game.EventTypeBetPlaced))
	require.NoError(t, op.Commit(game.HashSeed("x")))
	require.NoError(t, op.StartRound())

	// The cash-out timer arms when the bettor sees the round start.
	// Advance a second at a time until it has fired and the cash-out
	// has travelled back through the server.
	var cashed server.CashedOutData
	deadline := time.After(5 * time.Second)
advancing:
	for {
		clock.Advance(time.Second).MustWait(ctx)
		select {
		case msg := <-events:
			if msg.Type == client.Event(game.EventTypeCashedOut) {
				require.NoError(t, json.Unmarshal(msg.Data, &cashed))
				break advancing
			}
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for the cash-out")
		}
	}
	require.Equal(t, "carol", cashed.Player)
	require.GreaterOrEqual(t, cashed.Multiplier, int64(10200))
	require.Less(t, cashed.Multiplier, int64(27983), "cash-out must land before the crash for this seed")

	require.NoError(t, op.Reveal("x"))
	claim := awaitType(t, events, client.Event(game.EventTypePayoutClaimed))
	var claimed server.PayoutClaimedData
	require.NoError(t, json.Unmarshal(claim.Data, &claimed))

	// Stake 10000 makes the payout numerically equal the multiplier.
	require.Equal(t, cashed.Multiplier, claimed.Payout)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bettor did not finish")
	}
	require.Equal(t, claimed.Payout-10000, bettor.Net())
	require.Equal(t, 90000+claimed.Payout, stack.bank.Balance("carol"))
}

func TestBettorSkipsClaimAfterBust(t *testing.T) {
	clock := quartz.NewMock(t)
	stack := newBotStack(t, clock)

	op := stack.connect(t, "operator:house")
	events := watch(op,
		client.Event(game.EventTypeBetPlaced),
		client.Event(game.EventTypeRoundRevealed),
		client.Event(game.EventTypeRoundReset),
	)

	// A 50x target needs far more advancing than this test does, so
	// the bettor rides the round down and forfeits.
	bettor, err := NewBettorWithClock(testLogger(), BettorConfig{
		ServerURL: stack.url,
		Token:     "dave",
		Stake:     10000,
		Target:    500000,
		Seed:      1,
		Rounds:    1,
	}, clock)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- bettor.Run(ctx) }()

	awaitType(t, events, client.Event(game.EventTypeBetPlaced))
	require.NoError(t, op.Commit(game.HashSeed("x")))
	require.NoError(t, op.StartRound())
	require.NoError(t, op.Reveal("x"))
	awaitType(t, events, client.Event(game.EventTypeRoundRevealed))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bettor did not finish")
	}
	require.Equal(t, 1, bettor.Played())
	require.Equal(t, int64(-10000), bettor.Net())
	require.Equal(t, int64(90000), stack.bank.Balance("dave"))

	// The unclaimed stake sweeps to the house at reset.
	require.NoError(t, op.Reset())
	awaitType(t, events, client.Event(game.EventTypeRoundReset))
}

func TestBettorRejectsSeedSwap(t *testing.T) {
	bettor, err := NewBettor(testLogger(), BettorConfig{Target: game.BaseMultiplier})
	require.NoError(t, err)

	bettor.committedHash = game.HashSeed("honest")
	_, err = bettor.settleRound(context.Background(), nil, server.RoundRevealedData{
		RoundID:    3,
		Seed:       "swapped",
		CrashPoint: game.CrashPoint("swapped"),
	})
	require.ErrorContains(t, err, "does not match commitment")

	// A matching reveal passes, and with no bet there is nothing to
	// settle.
	bettor.committedHash = game.HashSeed("honest")
	finished, err := bettor.settleRound(context.Background(), nil, server.RoundRevealedData{
		RoundID:    3,
		Seed:       "honest",
		CrashPoint: game.CrashPoint("honest"),
	})
	require.NoError(t, err)
	require.False(t, finished)
	require.Equal(t, 0, bettor.Played())
}

func TestNewBettorValidatesStrategy(t *testing.T) {
	_, err := NewBettor(testLogger(), BettorConfig{Strategy: "reckless"})
	require.ErrorContains(t, err, "unknown strategy")

	// A fixed target needs no strategy at all.
	bettor, err := NewBettor(testLogger(), BettorConfig{Strategy: "reckless", Target: 12000})
	require.NoError(t, err)
	require.NotNil(t, bettor)
}
