package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/crashforbots/internal/auth"
	"github.com/lox/crashforbots/internal/game"
	"github.com/lox/crashforbots/internal/sessiontag"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn        *websocket.Conn
	tag         string
	send        chan *Message
	identity    *auth.Identity
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	closeOnce   sync.Once
	gameService *GameService
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, gameService *GameService) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	tag := sessiontag.Generate()

	return &Connection{
		conn:        conn,
		tag:         tag,
		send:        make(chan *Message, 256),
		logger:      logger.WithPrefix("conn").With("session", tag),
		ctx:         ctx,
		cancel:      cancel,
		gameService: gameService,
	}
}

// Tag returns the session tag assigned at connect time.
func (c *Connection) Tag() string {
	return c.tag
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, this is expected during shutdown
			// Log at debug level to avoid spam during tests
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

// SetIdentity associates this connection with an authenticated caller
func (c *Connection) SetIdentity(identity *auth.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// Identity returns the authenticated identity, nil before auth
func (c *Connection) Identity() *auth.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Address returns the authenticated address, empty before auth
func (c *Connection) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return ""
	}
	return c.identity.Address
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "address", c.Address())

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse auth data")
			return
		}
		c.handleAuth(msg, data)

	case MessageTypePlaceBet:
		var data PlaceBetData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse bet data")
			return
		}
		c.handlePlaceBet(msg, data)

	case MessageTypeCashOut:
		c.handleCashOut(msg)

	case MessageTypeClaimPayout:
		c.handleClaimPayout(msg)

	case MessageTypeRefund:
		c.handleRefund(msg)

	case MessageTypeCommit:
		var data CommitData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse commit data")
			return
		}
		c.handleCommit(msg, data)

	case MessageTypeStart:
		c.handleStart(msg)

	case MessageTypeReveal:
		var data RevealData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse reveal data")
			return
		}
		c.handleReveal(msg, data)

	case MessageTypeReset:
		c.handleReset(msg)

	case MessageTypeWithdraw:
		c.handleWithdraw(msg)

	case MessageTypeState:
		c.handleState(msg)

	default:
		c.sendError(msg, "unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(msg *Message, code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	errorMsg.RequestID = msg.RequestID

	_ = c.SendMessage(errorMsg) // Ignore send errors during error handling
}

// reply sends a direct response correlated to the originating request
func (c *Connection) reply(msg *Message, messageType MessageType, data interface{}) {
	response, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("Failed to create response", "type", messageType, "error", err)
		return
	}
	response.RequestID = msg.RequestID

	_ = c.SendMessage(response) // Ignore send errors
}

// caller resolves the connection's identity to an engine caller,
// rejecting unauthenticated requests
func (c *Connection) caller(msg *Message) (game.Caller, bool) {
	identity := c.Identity()
	if identity == nil {
		c.sendError(msg, "not_authenticated", "Must authenticate first")
		return game.Caller{}, false
	}
	return game.Caller{Address: identity.Address, Operator: identity.Operator}, true
}

func (c *Connection) handleAuth(msg *Message, data AuthData) {
	identity, err := c.gameService.Authenticate(c.ctx, data.Token)
	if err != nil {
		code := "invalid_auth"
		if errors.Is(err, auth.ErrUnavailable) {
			code = "auth_unavailable"
		}
		c.sendError(msg, code, err.Error())
		return
	}

	c.SetIdentity(identity)
	c.logger.Info("Client authenticated", "address", identity.Address, "operator", identity.Operator)

	c.reply(msg, MessageTypeAuthResponse, AuthResponseData{
		Success:  true,
		Address:  identity.Address,
		Operator: identity.Operator,
		Balance:  c.gameService.Balance(identity.Address),
		Session:  c.tag,
	})
}

func (c *Connection) handlePlaceBet(msg *Message, data PlaceBetData) {
	caller, ok := c.caller(msg)
	if !ok {
		return
	}

	if err := c.gameService.PlaceBet(caller, data.Amount); err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}

	// No direct response - the engine broadcasts bet_placed to everyone
}

func (c *Connection) handleCashOut(msg *Message) {
	caller, ok := c.caller(msg)
	if !ok {
		return
	}

	if err := c.gameService.CashOut(caller); err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}

	// No direct response - the engine broadcasts cashed_out
}

func (c *Connection) handleClaimPayout(msg *Message) {
	caller, ok := c.caller(msg)
	if !ok {
		return
	}

	s, err := c.gameService.ClaimPayout(caller)
	if err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}

	c.reply(msg, MessageTypeClaimResult, ClaimResultData{
		RoundID:    c.gameService.RoundID(),
		Payout:     s.Payout,
		HouseDelta: s.HouseDelta,
	})
}

func (c *Connection) handleRefund(msg *Message) {
	caller, ok := c.caller(msg)
	if !ok {
		return
	}

	amount, err := c.gameService.Refund(caller)
	if err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}

	c.reply(msg, MessageTypeRefundResult, RefundResultData{
		RoundID: c.gameService.RoundID(),
		Amount:  amount,
	})
}

func (c *Connection) handleCommit(msg *Message, data CommitData) {
	caller, ok := c.caller(msg)
	if !ok {
		return
	}

	if err := c.gameService.Commit(caller, data.Hash); err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}

	// No direct response - the engine broadcasts round_committed
}

func (c *Connection) handleStart(msg *Message) {
	caller, ok := c.caller(msg)
	if !ok {
		return
	}

	if err := c.gameService.Start(caller); err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}

	// No direct response - the engine broadcasts round_started
}

func (c *Connection) handleReveal(msg *Message, data RevealData) {
	caller, ok := c.caller(msg)
	if !ok {
		return
	}

	if _, err := c.gameService.Reveal(caller, data.Seed); err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}

	// No direct response - round_revealed carries the crash point
}

func (c *Connection) handleReset(msg *Message) {
	caller, ok := c.caller(msg)
	if !ok {
		return
	}

	if err := c.gameService.Reset(caller); err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}

	// No direct response - the engine broadcasts round_reset
}

func (c *Connection) handleWithdraw(msg *Message) {
	caller, ok := c.caller(msg)
	if !ok {
		return
	}

	amount, err := c.gameService.Withdraw(caller)
	if err != nil {
		c.sendError(msg, errorCode(err), err.Error())
		return
	}

	c.reply(msg, MessageTypeWithdrawResult, WithdrawResultData{Amount: amount})
}

func (c *Connection) handleState(msg *Message) {
	if _, ok := c.caller(msg); !ok {
		return
	}

	c.reply(msg, MessageTypeStateSnapshot, StateFromGame(c.gameService.State()))
}
