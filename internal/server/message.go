package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/crashforbots/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type AuthData struct {
	Token string `json:"token"`
}

type PlaceBetData struct {
	Amount int64 `json:"amount"`
}

type CommitData struct {
	Hash string `json:"hash"`
}

type RevealData struct {
	Seed string `json:"seed"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success  bool   `json:"success"`
	Address  string `json:"address,omitempty"`
	Operator bool   `json:"operator,omitempty"`
	Balance  int64  `json:"balance,omitempty"`
	Session  string `json:"session,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ClaimResultData struct {
	RoundID    uint64 `json:"roundId"`
	Payout     int64  `json:"payout"`
	HouseDelta int64  `json:"houseDelta"`
}

type RefundResultData struct {
	RoundID uint64 `json:"roundId"`
	Amount  int64  `json:"amount"`
}

type WithdrawResultData struct {
	Amount int64 `json:"amount"`
}

type StateData struct {
	RoundID       uint64 `json:"roundId"`
	Phase         string `json:"phase"`
	CommittedHash string `json:"committedHash,omitempty"`
	RevealedSeed  string `json:"revealedSeed,omitempty"`
	CrashPoint    int64  `json:"crashPoint,omitempty"`
	TotalBets     int64  `json:"totalBets"`
	Bettors       int    `json:"bettors"`
	HouseProfit   int64  `json:"houseProfit"`
}

// Broadcast event payloads, one per round event

type BetPlacedData struct {
	RoundID   uint64 `json:"roundId"`
	Player    string `json:"player"`
	Amount    int64  `json:"amount"`
	TotalBets int64  `json:"totalBets"`
}

type RoundCommittedData struct {
	RoundID       uint64 `json:"roundId"`
	CommittedHash string `json:"committedHash"`
	Bettors       int    `json:"bettors"`
}

type RoundStartedData struct {
	RoundID uint64 `json:"roundId"`
}

type CashedOutData struct {
	RoundID    uint64 `json:"roundId"`
	Player     string `json:"player"`
	Multiplier int64  `json:"multiplier"`
}

type RoundRevealedData struct {
	RoundID    uint64 `json:"roundId"`
	Seed       string `json:"seed"`
	CrashPoint int64  `json:"crashPoint"`
}

type PayoutClaimedData struct {
	RoundID uint64 `json:"roundId"`
	Player  string `json:"player"`
	Stake   int64  `json:"stake"`
	Payout  int64  `json:"payout"`
}

type RefundIssuedData struct {
	RoundID uint64 `json:"roundId"`
	Player  string `json:"player"`
	Amount  int64  `json:"amount"`
}

type ProfitWithdrawnData struct {
	RoundID uint64 `json:"roundId"`
	Amount  int64  `json:"amount"`
}

type RoundResetData struct {
	RoundID     uint64 `json:"roundId"`
	NextRoundID uint64 `json:"nextRoundId"`
}

// Helper functions to convert between internal types and message types

// StateFromGame converts an engine snapshot to its wire form.
func StateFromGame(st game.State) StateData {
	return StateData{
		RoundID:       st.RoundID,
		Phase:         st.Phase.String(),
		CommittedHash: st.CommittedHash,
		RevealedSeed:  st.RevealedSeed,
		CrashPoint:    st.CrashPoint,
		TotalBets:     st.TotalBets,
		Bettors:       st.Bettors,
		HouseProfit:   st.HouseProfit,
	}
}

// MessageFromEvent converts a round event to its broadcast message. The
// message type is the event type string, so clients switch on one
// vocabulary.
func MessageFromEvent(event game.GameEvent) (*Message, error) {
	var data interface{}

	switch e := event.(type) {
	case game.BetPlacedEvent:
		data = BetPlacedData{RoundID: e.RoundID, Player: e.Player, Amount: e.Amount, TotalBets: e.TotalBets}
	case game.RoundCommittedEvent:
		data = RoundCommittedData{RoundID: e.RoundID, CommittedHash: e.CommittedHash, Bettors: e.Bettors}
	case game.RoundStartedEvent:
		data = RoundStartedData{RoundID: e.RoundID}
	case game.CashedOutEvent:
		data = CashedOutData{RoundID: e.RoundID, Player: e.Player, Multiplier: e.Multiplier}
	case game.RoundRevealedEvent:
		data = RoundRevealedData{RoundID: e.RoundID, Seed: e.Seed, CrashPoint: e.CrashPoint}
	case game.PayoutClaimedEvent:
		data = PayoutClaimedData{RoundID: e.RoundID, Player: e.Player, Stake: e.Stake, Payout: e.Payout}
	case game.RefundIssuedEvent:
		data = RefundIssuedData{RoundID: e.RoundID, Player: e.Player, Amount: e.Amount}
	case game.ProfitWithdrawnEvent:
		data = ProfitWithdrawnData{RoundID: e.RoundID, Amount: e.Amount}
	case game.RoundResetEvent:
		data = RoundResetData{RoundID: e.RoundID, NextRoundID: e.NextRoundID}
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.EventType())
	}

	msg, err := NewMessage(MessageType(event.EventType()), data)
	if err != nil {
		return nil, err
	}
	msg.Timestamp = event.Timestamp()
	return msg, nil
}
