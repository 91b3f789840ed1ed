package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lox/crashforbots/internal/client"
	"github.com/lox/crashforbots/internal/game"
)

// A committed round whose operator never starts it is refundable once
// the refund window passes.
func TestRefundUnwindsStalledRound(t *testing.T) {
	stack := StartStack(t, StackConfig{RefundWindow: time.Minute})
	ctx := ReqCtx(t)

	op := stack.Connect(t, "operator:house")
	alice := stack.Connect(t, "alice")

	events := Watch(op,
		client.Event(game.EventTypeBetPlaced),
		client.Event(game.EventTypeRoundCommitted),
	)

	require.NoError(t, alice.PlaceBet(10000))
	Await(t, events, client.Event(game.EventTypeBetPlaced))
	require.Equal(t, stack.Deposit-10000, stack.Bank.Balance("alice"))

	require.NoError(t, op.Commit(game.HashSeed("stall")))
	Await(t, events, client.Event(game.EventTypeRoundCommitted))

	// Too early: the operator still has time to start the round.
	_, err := alice.Refund(ctx)
	var serverErr *client.ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "refund_too_early", serverErr.Code)

	stack.Clock.Advance(61 * time.Second).MustWait(ctx)

	res, err := alice.Refund(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(10000), res.Amount)
	require.Equal(t, stack.Deposit, stack.Bank.Balance("alice"))

	state := stack.Engine.State()
	require.Equal(t, 0, state.Bettors)
	require.Equal(t, int64(0), state.TotalBets)

	// The stake is gone, so a second refund has nothing to return.
	_, err = alice.Refund(ctx)
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "no_bet", serverErr.Code)
}

func TestRefundNeedsACommittedRound(t *testing.T) {
	stack := StartStack(t, StackConfig{RefundWindow: time.Minute})
	ctx := ReqCtx(t)

	op := stack.Connect(t, "operator:house")
	alice := stack.Connect(t, "alice")

	events := Watch(op,
		client.Event(game.EventTypeBetPlaced),
		client.Event(game.EventTypeRoundStarted),
	)

	// While betting is open the stake can still become a round.
	require.NoError(t, alice.PlaceBet(10000))
	Await(t, events, client.Event(game.EventTypeBetPlaced))
	_, err := alice.Refund(ctx)
	var serverErr *client.ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "invalid_phase", serverErr.Code)

	// Once the round is running the stake is committed for good.
	require.NoError(t, op.Commit(game.HashSeed("x")))
	require.NoError(t, op.StartRound())
	Await(t, events, client.Event(game.EventTypeRoundStarted))

	stack.Clock.Advance(61 * time.Second).MustWait(ctx)
	_, err = alice.Refund(ctx)
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "invalid_phase", serverErr.Code)
}
