package server

// Note: round events (bet_placed, round_revealed, etc.) are defined in
// internal/game/events.go and are also sent as WebSocket messages

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
// These are used for client-server communication protocol
const (
	// Client to server messages
	MessageTypeAuth        MessageType = "auth"
	MessageTypePlaceBet    MessageType = "place_bet"
	MessageTypeCashOut     MessageType = "cash_out"
	MessageTypeClaimPayout MessageType = "claim_payout"
	MessageTypeRefund      MessageType = "refund"
	MessageTypeCommit      MessageType = "commit"
	MessageTypeStart       MessageType = "start"
	MessageTypeReveal      MessageType = "reveal"
	MessageTypeReset       MessageType = "reset"
	MessageTypeWithdraw    MessageType = "withdraw"
	MessageTypeState       MessageType = "state"

	// Server to client messages
	MessageTypeAuthResponse   MessageType = "auth_response"
	MessageTypeError          MessageType = "error"
	MessageTypeClaimResult    MessageType = "claim_result"
	MessageTypeRefundResult   MessageType = "refund_result"
	MessageTypeWithdrawResult MessageType = "withdraw_result"
	MessageTypeStateSnapshot  MessageType = "state_snapshot"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
