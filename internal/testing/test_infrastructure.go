// Package testing hosts full-stack integration tests. Each test runs a
// complete server in-process and talks to it only through the public
// surfaces: the WebSocket client, the bots and the engine snapshot.
package testing

import (
	"context"
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
	"github.com/lox/crashforbots/internal/server/roundhistory"
)

// StackConfig shapes the in-process server a test runs against. The
// zero value gives a mock clock, a one minute refund window and no
// history recording.
type StackConfig struct {
	RealClock    bool
	RefundWindow time.Duration
	HouseFloat   int64
	Deposit      int64
	History      bool // wire a round history recorder that flushes every round
}

// Stack is one running server plus handles into its internals for
// assertions.
type Stack struct {
	Bank       *bank.Bank
	Engine     *game.Engine
	Clock      *quartz.Mock // nil when the stack runs on the wall clock
	URL        string
	HistoryDir string // set when history recording is wired
	Deposit    int64
}

// StartStack boots a server for the lifetime of the test.
func StartStack(t *testing.T, cfg StackConfig) *Stack {
	t.Helper()
	logger := log.New(io.Discard)

	if cfg.RefundWindow <= 0 {
		cfg.RefundWindow = time.Minute
	}
	if cfg.HouseFloat == 0 {
		cfg.HouseFloat = 1000000
	}
	if cfg.Deposit == 0 {
		cfg.Deposit = 100000
	}

	var mock *quartz.Mock
	var clock quartz.Clock
	if cfg.RealClock {
		clock = quartz.NewReal()
	} else {
		mock = quartz.NewMock(t)
		clock = mock
	}

	bk := bank.New(cfg.HouseFloat)
	engine := game.NewEngine(bk,
		game.WithClock(clock),
		game.WithLogger(logger),
		game.WithRefundWindow(cfg.RefundWindow),
	)

	stack := &Stack{
		Bank:    bk,
		Engine:  engine,
		Clock:   mock,
		Deposit: cfg.Deposit,
	}

	if cfg.History {
		stack.HistoryDir = t.TempDir()
		recorder, err := roundhistory.NewRecorder(roundhistory.Config{
			Dir:            stack.HistoryDir,
			FlushThreshold: 1,
		}, logger)
		require.NoError(t, err)
		engine.EventBus().Subscribe(roundhistory.NewCollector(recorder, logger))
		manager := roundhistory.NewManager(recorder, logger, time.Second)
		t.Cleanup(manager.Shutdown)
	}

	srv := server.NewServer("localhost:0", logger)
	gs := server.NewGameService(srv, server.GameServiceConfig{
		Engine:        engine,
		Bank:          bk,
		Validator:     auth.NewNoopValidator(),
		DepositOnAuth: cfg.Deposit,
	}, logger)
	srv.SetGameService(gs)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Stop()
	})
	stack.URL = ts.URL

	return stack
}

// Connect dials the stack and authenticates with the given token.
func (s *Stack) Connect(t *testing.T, token string) *client.Client {
	t.Helper()
	cli := client.New(s.URL, log.New(io.Discard))
	require.NoError(t, cli.Connect())
	t.Cleanup(func() { _ = cli.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Auth(ctx, token)
	require.NoError(t, err)
	return cli
}

// Watch funnels the given broadcast types into one ordered channel.
func Watch(cli *client.Client, types ...server.MessageType) <-chan *server.Message {
	events := make(chan *server.Message, 128)
	for _, messageType := range types {
		cli.OnMessage(messageType, func(msg *server.Message) {
			events <- msg
		})
	}
	return events
}

// Await blocks until a message of the wanted type arrives, skipping
// others.
func Await(t *testing.T, events <-chan *server.Message, want server.MessageType) *server.Message {
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

// ReqCtx returns a context bounded to a short test deadline.
func ReqCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
