package game

import "time"

// EventType represents a round event type with type safety
type EventType string

// EventType constants for round domain events, one per observable state
// change in the round lifecycle
const (
	EventTypeBetPlaced       EventType = "bet_placed"
	EventTypeRoundCommitted  EventType = "round_committed"
	EventTypeRoundStarted    EventType = "round_started"
	EventTypeCashedOut       EventType = "cashed_out"
	EventTypeRoundRevealed   EventType = "round_revealed"
	EventTypePayoutClaimed   EventType = "payout_claimed"
	EventTypeRefundIssued    EventType = "refund_issued"
	EventTypeProfitWithdrawn EventType = "profit_withdrawn"
	EventTypeRoundReset      EventType = "round_reset"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// GameEvent represents any event published by the round engine
type GameEvent interface {
	EventType() EventType
	Timestamp() time.Time
}

// BetPlacedEvent is published when a stake is accepted
type BetPlacedEvent struct {
	RoundID   uint64
	Player    string
	Amount    int64
	TotalBets int64
	timestamp time.Time
}

func (e BetPlacedEvent) EventType() EventType { return EventTypeBetPlaced }
func (e BetPlacedEvent) Timestamp() time.Time { return e.timestamp }

// NewBetPlacedEvent creates a new bet placed event
func NewBetPlacedEvent(roundID uint64, player string, amount, totalBets int64, ts time.Time) BetPlacedEvent {
	return BetPlacedEvent{
		RoundID:   roundID,
		Player:    player,
		Amount:    amount,
		TotalBets: totalBets,
		timestamp: ts,
	}
}

// RoundCommittedEvent is published when the seed hash is fixed and
// betting closes
type RoundCommittedEvent struct {
	RoundID       uint64
	CommittedHash string
	Bettors       int
	timestamp     time.Time
}

func (e RoundCommittedEvent) EventType() EventType { return EventTypeRoundCommitted }
func (e RoundCommittedEvent) Timestamp() time.Time { return e.timestamp }

// NewRoundCommittedEvent creates a new round committed event
func NewRoundCommittedEvent(roundID uint64, hash string, bettors int, ts time.Time) RoundCommittedEvent {
	return RoundCommittedEvent{
		RoundID:       roundID,
		CommittedHash: hash,
		Bettors:       bettors,
		timestamp:     ts,
	}
}

// RoundStartedEvent is published when the multiplier run begins
type RoundStartedEvent struct {
	RoundID   uint64
	timestamp time.Time
}

func (e RoundStartedEvent) EventType() EventType { return EventTypeRoundStarted }
func (e RoundStartedEvent) Timestamp() time.Time { return e.timestamp }

// NewRoundStartedEvent creates a new round started event
func NewRoundStartedEvent(roundID uint64, ts time.Time) RoundStartedEvent {
	return RoundStartedEvent{RoundID: roundID, timestamp: ts}
}

// CashedOutEvent is published when a player registers a cash-out.
// Multiplier is the settlement multiplier locked in at that moment.
type CashedOutEvent struct {
	RoundID    uint64
	Player     string
	Multiplier int64
	timestamp  time.Time
}

func (e CashedOutEvent) EventType() EventType { return EventTypeCashedOut }
func (e CashedOutEvent) Timestamp() time.Time { return e.timestamp }

// NewCashedOutEvent creates a new cashed out event
func NewCashedOutEvent(roundID uint64, player string, multiplier int64, ts time.Time) CashedOutEvent {
	return CashedOutEvent{RoundID: roundID, Player: player, Multiplier: multiplier, timestamp: ts}
}

// RoundRevealedEvent is published when the seed verifies and the crash
// point is fixed
type RoundRevealedEvent struct {
	RoundID    uint64
	Seed       string
	CrashPoint int64
	timestamp  time.Time
}

func (e RoundRevealedEvent) EventType() EventType { return EventTypeRoundRevealed }
func (e RoundRevealedEvent) Timestamp() time.Time { return e.timestamp }

// NewRoundRevealedEvent creates a new round revealed event
func NewRoundRevealedEvent(roundID uint64, seed string, crashPoint int64, ts time.Time) RoundRevealedEvent {
	return RoundRevealedEvent{
		RoundID:    roundID,
		Seed:       seed,
		CrashPoint: crashPoint,
		timestamp:  ts,
	}
}

// PayoutClaimedEvent is published when a bet settles
type PayoutClaimedEvent struct {
	RoundID    uint64
	Player     string
	Stake      int64
	Payout     int64
	HouseDelta int64
	timestamp  time.Time
}

func (e PayoutClaimedEvent) EventType() EventType { return EventTypePayoutClaimed }
func (e PayoutClaimedEvent) Timestamp() time.Time { return e.timestamp }

// NewPayoutClaimedEvent creates a new payout claimed event
func NewPayoutClaimedEvent(roundID uint64, player string, stake, payout, houseDelta int64, ts time.Time) PayoutClaimedEvent {
	return PayoutClaimedEvent{
		RoundID:    roundID,
		Player:     player,
		Stake:      stake,
		Payout:     payout,
		HouseDelta: houseDelta,
		timestamp:  ts,
	}
}

// RefundIssuedEvent is published when a stake returns from a stalled
// round
type RefundIssuedEvent struct {
	RoundID   uint64
	Player    string
	Amount    int64
	timestamp time.Time
}

func (e RefundIssuedEvent) EventType() EventType { return EventTypeRefundIssued }
func (e RefundIssuedEvent) Timestamp() time.Time { return e.timestamp }

// NewRefundIssuedEvent creates a new refund issued event
func NewRefundIssuedEvent(roundID uint64, player string, amount int64, ts time.Time) RefundIssuedEvent {
	return RefundIssuedEvent{
		RoundID:   roundID,
		Player:    player,
		Amount:    amount,
		timestamp: ts,
	}
}

// ProfitWithdrawnEvent is published when the operator drains the
// treasury
type ProfitWithdrawnEvent struct {
	RoundID   uint64
	Recipient string
	Amount    int64
	timestamp time.Time
}

func (e ProfitWithdrawnEvent) EventType() EventType { return EventTypeProfitWithdrawn }
func (e ProfitWithdrawnEvent) Timestamp() time.Time { return e.timestamp }

// NewProfitWithdrawnEvent creates a new profit withdrawn event
func NewProfitWithdrawnEvent(roundID uint64, recipient string, amount int64, ts time.Time) ProfitWithdrawnEvent {
	return ProfitWithdrawnEvent{
		RoundID:   roundID,
		Recipient: recipient,
		Amount:    amount,
		timestamp: ts,
	}
}

// RoundResetEvent is published when a revealed round closes and the
// next betting window opens. Swept is the total of stakes that were
// never claimed and moved to house profit.
type RoundResetEvent struct {
	RoundID     uint64
	NextRoundID uint64
	Swept       int64
	timestamp   time.Time
}

func (e RoundResetEvent) EventType() EventType { return EventTypeRoundReset }
func (e RoundResetEvent) Timestamp() time.Time { return e.timestamp }

// NewRoundResetEvent creates a new round reset event
func NewRoundResetEvent(roundID, nextRoundID uint64, swept int64, ts time.Time) RoundResetEvent {
	return RoundResetEvent{
		RoundID:     roundID,
		NextRoundID: nextRoundID,
		Swept:       swept,
		timestamp:   ts,
	}
}

// EventSubscriber can subscribe to round events
type EventSubscriber interface {
	OnEvent(event GameEvent)
}

// EventBus manages event publishing and subscription
type EventBus interface {
	Subscribe(subscriber EventSubscriber)
	Unsubscribe(subscriber EventSubscriber)
	Publish(event GameEvent)
}

// SimpleEventBus is a basic in-memory event bus implementation.
// Publish runs subscribers synchronously in subscription order, and the
// Engine publishes with its lock held, so subscribers must not call
// back into the Engine.
type SimpleEventBus struct {
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() EventBus {
	return &SimpleEventBus{
		subscribers: make([]EventSubscriber, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (bus *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	bus.subscribers = append(bus.subscribers, subscriber)
}

// Unsubscribe removes a subscriber from receiving events
func (bus *SimpleEventBus) Unsubscribe(subscriber EventSubscriber) {
	for i, sub := range bus.subscribers {
		if sub == subscriber {
			bus.subscribers = append(bus.subscribers[:i], bus.subscribers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers
func (bus *SimpleEventBus) Publish(event GameEvent) {
	for _, subscriber := range bus.subscribers {
		subscriber.OnEvent(event)
	}
}
