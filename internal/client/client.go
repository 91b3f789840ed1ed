// Package client implements the WebSocket client bots use to talk to
// a crashforbots server. Requests that have a direct reply (auth,
// state, claim, refund, withdraw) are exposed as synchronous calls
// correlated by request id; everything else is fire-and-forget, with
// round events and uncorrelated errors dispatched to registered
// handlers in arrival order.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/crashforbots/internal/game"
	"github.com/lox/crashforbots/internal/server"
)

// Handler receives one incoming message. Handlers run sequentially on
// the dispatch goroutine, so they see messages in arrival order and
// may call the client's synchronous operations.
type Handler func(*server.Message)

// Event returns the message type a round event is broadcast under, so
// handlers can be registered with the game package's typed constants.
func Event(eventType game.EventType) server.MessageType {
	return server.MessageType(eventType)
}

// ServerError is an error payload returned by the server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

// Client is a WebSocket connection to a crashforbots server. A Client
// is single-use: after Close, create a new one to reconnect.
type Client struct {
	serverURL string
	conn      *websocket.Conn
	send      chan *server.Message
	receive   chan *server.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc

	mu        sync.RWMutex
	connected bool
	address   string
	operator  bool
	handlers  map[server.MessageType][]Handler
	closeOnce sync.Once

	pendingMu sync.Mutex
	pending   map[string]chan *server.Message
	nextID    atomic.Uint64
}

// New creates a client for the given server URL. http/https schemes
// are converted to ws/wss; the /ws path is appended automatically.
func New(serverURL string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		serverURL: serverURL,
		send:      make(chan *server.Message, 64),
		receive:   make(chan *server.Message, 256),
		logger:    logger.WithPrefix("client"),
		ctx:       ctx,
		cancel:    cancel,
		handlers:  make(map[server.MessageType][]Handler),
		pending:   make(map[string]chan *server.Message),
	}
}

// Connect establishes the WebSocket connection and starts the read,
// write, and dispatch loops.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()
	go c.dispatchLoop()

	c.logger.Debug("Connected to server", "url", u.String())
	return nil
}

// Close tears the connection down. Pending synchronous calls fail with
// the client context's error.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.connected = false
		c.mu.Unlock()

		c.logger.Debug("Disconnected from server")
	})
	return nil
}

// Done closes when the connection is torn down, whether by Close or by
// the server going away.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Connected reports whether the connection is up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Address returns the authenticated address, empty before Auth.
func (c *Client) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// Operator reports whether the authenticated identity holds the
// operator flag.
func (c *Client) Operator() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.operator
}

// OnMessage registers a handler for a message type. Broadcast round
// events arrive under their event type ("bet_placed", "round_started",
// ...); uncorrelated failures arrive as "error".
func (c *Client) OnMessage(messageType server.MessageType, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[messageType] = append(c.handlers[messageType], handler)
}

func (c *Client) readPump() {
	defer func() {
		_ = c.Close()
		c.failPending()
		close(c.receive)
	}()

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if c.ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket read failed", "error", err)
			}
			return
		}

		// Correlated replies go straight to the waiter; everything
		// else queues for the dispatch loop.
		if msg.RequestID != "" {
			if waiter := c.takePending(msg.RequestID); waiter != nil {
				waiter <- &msg
				continue
			}
		}

		select {
		case c.receive <- &msg:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Error("Failed to write message", "type", msg.Type, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) dispatchLoop() {
	for msg := range c.receive {
		c.mu.RLock()
		handlers := c.handlers[msg.Type]
		c.mu.RUnlock()

		if len(handlers) == 0 {
			c.logger.Debug("No handler for message type", "type", msg.Type)
			continue
		}
		for _, handler := range handlers {
			handler(msg)
		}
	}
}

// enqueue hands a message to the write pump without blocking.
func (c *Client) enqueue(msg *server.Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		return fmt.Errorf("send buffer full")
	}
}

func (c *Client) sendAsync(messageType server.MessageType, data interface{}) error {
	msg, err := server.NewMessage(messageType, data)
	if err != nil {
		return err
	}
	return c.enqueue(msg)
}

// request sends a message with a fresh request id and waits for the
// correlated reply or error.
func (c *Client) request(ctx context.Context, messageType server.MessageType, data interface{}) (*server.Message, error) {
	msg, err := server.NewMessage(messageType, data)
	if err != nil {
		return nil, err
	}

	id := strconv.FormatUint(c.nextID.Add(1), 10)
	msg.RequestID = id

	waiter := make(chan *server.Message, 1)
	c.pendingMu.Lock()
	c.pending[id] = waiter
	c.pendingMu.Unlock()

	if err := c.enqueue(msg); err != nil {
		c.takePending(id)
		return nil, err
	}

	select {
	case reply, ok := <-waiter:
		if !ok {
			return nil, fmt.Errorf("connection closed")
		}
		if reply.Type == server.MessageTypeError {
			var errData server.ErrorData
			if err := json.Unmarshal(reply.Data, &errData); err != nil {
				return nil, fmt.Errorf("failed to parse error reply: %w", err)
			}
			return nil, &ServerError{Code: errData.Code, Message: errData.Message}
		}
		return reply, nil
	case <-ctx.Done():
		c.takePending(id)
		return nil, ctx.Err()
	case <-c.ctx.Done():
		c.takePending(id)
		return nil, c.ctx.Err()
	}
}

func (c *Client) takePending(id string) chan *server.Message {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	waiter := c.pending[id]
	delete(c.pending, id)
	return waiter
}

// failPending closes every waiter so in-flight requests return.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, waiter := range c.pending {
		close(waiter)
		delete(c.pending, id)
	}
}

// Auth authenticates with the given token and records the resolved
// address for Address and Operator.
func (c *Client) Auth(ctx context.Context, token string) (*server.AuthResponseData, error) {
	reply, err := c.request(ctx, server.MessageTypeAuth, server.AuthData{Token: token})
	if err != nil {
		return nil, err
	}

	var data server.AuthResponseData
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse auth response: %w", err)
	}
	if !data.Success {
		return nil, fmt.Errorf("authentication rejected: %s", data.Error)
	}

	c.mu.Lock()
	c.address = data.Address
	c.operator = data.Operator
	c.mu.Unlock()

	return &data, nil
}

// State fetches the current round snapshot.
func (c *Client) State(ctx context.Context) (*server.StateData, error) {
	reply, err := c.request(ctx, server.MessageTypeState, nil)
	if err != nil {
		return nil, err
	}

	var data server.StateData
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse state snapshot: %w", err)
	}
	return &data, nil
}

// ClaimPayout settles the caller's bet for the revealed round.
func (c *Client) ClaimPayout(ctx context.Context) (*server.ClaimResultData, error) {
	reply, err := c.request(ctx, server.MessageTypeClaimPayout, nil)
	if err != nil {
		return nil, err
	}

	var data server.ClaimResultData
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse claim result: %w", err)
	}
	return &data, nil
}

// Refund reclaims the caller's stake from a stalled committed round.
func (c *Client) Refund(ctx context.Context) (*server.RefundResultData, error) {
	reply, err := c.request(ctx, server.MessageTypeRefund, nil)
	if err != nil {
		return nil, err
	}

	var data server.RefundResultData
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse refund result: %w", err)
	}
	return &data, nil
}

// Withdraw moves accumulated house profit to the caller. Operator
// only.
func (c *Client) Withdraw(ctx context.Context) (*server.WithdrawResultData, error) {
	reply, err := c.request(ctx, server.MessageTypeWithdraw, nil)
	if err != nil {
		return nil, err
	}

	var data server.WithdrawResultData
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse withdraw result: %w", err)
	}
	return &data, nil
}

// PlaceBet stakes the given amount in the betting window. Success is
// broadcast as bet_placed; failures arrive on the error handler.
func (c *Client) PlaceBet(amount int64) error {
	return c.sendAsync(server.MessageTypePlaceBet, server.PlaceBetData{Amount: amount})
}

// CashOut registers the caller's cash-out for the running round.
func (c *Client) CashOut() error {
	return c.sendAsync(server.MessageTypeCashOut, nil)
}

// Commit publishes the seed hash for the round. Operator only.
func (c *Client) Commit(hash string) error {
	return c.sendAsync(server.MessageTypeCommit, server.CommitData{Hash: hash})
}

// StartRound starts the committed round. Operator only.
func (c *Client) StartRound() error {
	return c.sendAsync(server.MessageTypeStart, nil)
}

// Reveal discloses the seed, fixing the crash point. Operator only.
func (c *Client) Reveal(seed string) error {
	return c.sendAsync(server.MessageTypeReveal, server.RevealData{Seed: seed})
}

// Reset closes the revealed round and opens betting for the next one.
// Operator only.
func (c *Client) Reset() error {
	return c.sendAsync(server.MessageTypeReset, nil)
}
