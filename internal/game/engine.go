package game

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// DefaultRefundWindow is how long after commit a bettor must wait
// before reclaiming a stake from a stalled round.
const DefaultRefundWindow = 10 * time.Minute

// Caller identifies who is invoking an operation and whether they hold
// operator privileges. Token resolution happens outside the engine; the
// engine only consumes the resolved identity.
type Caller struct {
	Address  string
	Operator bool
}

// Settler moves value between the game and its players. Collect pulls a
// stake in when a bet is placed; Transfer pays out claims, refunds and
// withdrawals. Both are called synchronously with the engine lock held
// and must not call back into the Engine. A returned error is treated
// as retryable: the operation that hit it commits nothing.
type Settler interface {
	Collect(player string, amount int64) error
	Transfer(recipient string, amount int64) error
}

// Engine owns the active round and serializes every operation against
// it. One engine runs one round at a time; ResetRound reincarnates the
// round under the next identity. All mutating operations and reads go
// through a single lock covering round, ledger and treasury together.
type Engine struct {
	mu       sync.RWMutex
	round    Round
	ledger   *BetLedger
	treasury *Treasury

	settler      Settler
	bus          EventBus
	clock        quartz.Clock
	logger       *log.Logger
	refundWindow time.Duration
}

type engineConfig struct {
	clock        quartz.Clock
	logger       *log.Logger
	bus          EventBus
	refundWindow time.Duration
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithClock injects the time source. Tests pass quartz.NewMock.
func WithClock(clock quartz.Clock) Option {
	return func(c *engineConfig) { c.clock = clock }
}

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *engineConfig) { c.logger = logger }
}

// WithEventBus sets the bus round events publish to.
func WithEventBus(bus EventBus) Option {
	return func(c *engineConfig) { c.bus = bus }
}

// WithRefundWindow overrides DefaultRefundWindow.
func WithRefundWindow(d time.Duration) Option {
	return func(c *engineConfig) { c.refundWindow = d }
}

// NewEngine creates an engine with round 1 open for betting.
func NewEngine(settler Settler, opts ...Option) *Engine {
	cfg := engineConfig{
		clock:        quartz.NewReal(),
		logger:       log.New(io.Discard),
		bus:          NewEventBus(),
		refundWindow: DefaultRefundWindow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		round:        Round{ID: 1, Phase: Betting},
		ledger:       NewBetLedger(),
		treasury:     NewTreasury(),
		settler:      settler,
		bus:          cfg.bus,
		clock:        cfg.clock,
		logger:       cfg.logger,
		refundWindow: cfg.refundWindow,
	}
}

// EventBus returns the bus round events publish to.
func (e *Engine) EventBus() EventBus {
	return e.bus
}

// PlaceBet stakes amount for the caller in the active round. The stake
// is collected through the settler before the ledger is touched, so a
// failed collection leaves no trace.
func (e *Engine) PlaceBet(caller Caller, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.round.requirePhase(Betting); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBet, amount)
	}
	if e.ledger.Has(caller.Address) {
		return fmt.Errorf("%w: %s", ErrDuplicateBet, caller.Address)
	}
	if err := e.settler.Collect(caller.Address, amount); err != nil {
		return fmt.Errorf("%w: collect stake: %v", ErrTransferFailed, err)
	}
	e.ledger.Place(caller.Address, amount)
	e.logger.Info("Bet placed", "round", e.round.ID, "player", caller.Address, "amount", amount, "totalBets", e.ledger.Total())
	e.bus.Publish(NewBetPlacedEvent(e.round.ID, caller.Address, amount, e.ledger.Total(), e.clock.Now()))
	return nil
}

// CommitSeedHash fixes the seed commitment for the round and closes
// betting. At least one bet must exist; committing an empty round would
// burn the commitment with nobody to settle.
func (e *Engine) CommitSeedHash(caller Caller, hash string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Operator {
		return ErrUnauthorized
	}
	if err := e.round.requirePhase(Betting); err != nil {
		return err
	}
	if e.ledger.Size() == 0 {
		return ErrEmptyRound
	}
	now := e.clock.Now()
	e.round.CommittedHash = hash
	e.round.CommitTime = now
	e.round.Phase = Committed
	e.logger.Info("Round committed", "round", e.round.ID, "hash", hash, "bettors", e.ledger.Size())
	e.bus.Publish(NewRoundCommittedEvent(e.round.ID, hash, e.ledger.Size(), now))
	return nil
}

// StartGame opens the multiplier run. Cash-outs are timed from this
// moment.
func (e *Engine) StartGame(caller Caller) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Operator {
		return ErrUnauthorized
	}
	if err := e.round.requirePhase(Committed); err != nil {
		return err
	}
	now := e.clock.Now()
	e.round.StartTime = now
	e.round.Phase = InGame
	e.logger.Info("Round started", "round", e.round.ID)
	e.bus.Publish(NewRoundStartedEvent(e.round.ID, now))
	return nil
}

// CashOut registers the caller's cash-out time. Whether it beat the
// crash point is unknown until reveal; settlement happens at claim.
func (e *Engine) CashOut(caller Caller) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.round.requirePhase(InGame); err != nil {
		return err
	}
	entry := e.ledger.Entry(caller.Address)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrNoBet, caller.Address)
	}
	if entry.CashedOut {
		return fmt.Errorf("%w: %s", ErrAlreadyCashedOut, caller.Address)
	}
	now := e.clock.Now()
	entry.CashedOut = true
	entry.CashoutTime = now
	mult := MultiplierAt(now.Sub(e.round.StartTime))
	e.logger.Info("Player cashed out", "round", e.round.ID, "player", caller.Address, "multiplier", mult)
	e.bus.Publish(NewCashedOutEvent(e.round.ID, caller.Address, mult, now))
	return nil
}

// Reveal verifies the seed against the commitment, fixes the crash
// point, and opens claims. A mismatched seed leaves the round in play.
func (e *Engine) Reveal(caller Caller, seed string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Operator {
		return 0, ErrUnauthorized
	}
	if err := e.round.requirePhase(InGame); err != nil {
		return 0, err
	}
	if HashSeed(seed) != e.round.CommittedHash {
		return 0, fmt.Errorf("%w: round %d", ErrSeedMismatch, e.round.ID)
	}
	crash := CrashPoint(seed)
	e.round.RevealedSeed = seed
	e.round.CrashPoint = crash
	e.round.Phase = Revealed
	e.logger.Info("Round revealed", "round", e.round.ID, "crashPoint", crash)
	e.bus.Publish(NewRoundRevealedEvent(e.round.ID, seed, crash, e.clock.Now()))
	return crash, nil
}

// ClaimPayout settles the caller's bet against the revealed crash
// point. The transfer is attempted before any accounting commits, so a
// failed transfer leaves the claim retryable.
func (e *Engine) ClaimPayout(caller Caller) (Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.round.requirePhase(Revealed); err != nil {
		return Settlement{}, err
	}
	entry := e.ledger.Entry(caller.Address)
	if entry == nil {
		return Settlement{}, fmt.Errorf("%w: %s", ErrNoBet, caller.Address)
	}
	if entry.PayoutClaimed {
		return Settlement{}, fmt.Errorf("%w: %s", ErrAlreadyClaimed, caller.Address)
	}
	s := SettleBet(entry, e.round.StartTime, e.round.CrashPoint)
	if s.Payout > 0 {
		if err := e.settler.Transfer(caller.Address, s.Payout); err != nil {
			return Settlement{}, fmt.Errorf("%w: payout: %v", ErrTransferFailed, err)
		}
	}
	entry.PayoutClaimed = true
	e.treasury.Add(s.HouseDelta)
	e.logger.Info("Payout claimed", "round", e.round.ID, "player", caller.Address, "payout", s.Payout, "houseDelta", s.HouseDelta)
	e.bus.Publish(NewPayoutClaimedEvent(e.round.ID, caller.Address, entry.Amount, s.Payout, s.HouseDelta, e.clock.Now()))
	return s, nil
}

// Refund returns the caller's stake from a stalled committed round,
// once the refund window has elapsed. The registry slot is freed by
// swapping the last bettor into it.
func (e *Engine) Refund(caller Caller) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.round.requirePhase(Committed); err != nil {
		return 0, err
	}
	entry := e.ledger.Entry(caller.Address)
	if entry == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoBet, caller.Address)
	}
	now := e.clock.Now()
	available := e.round.CommitTime.Add(e.refundWindow)
	if !now.After(available) {
		return 0, fmt.Errorf("%w: available after %s", ErrRefundTooEarly, available.Format(time.RFC3339))
	}
	if err := e.settler.Transfer(caller.Address, entry.Amount); err != nil {
		return 0, fmt.Errorf("%w: refund: %v", ErrTransferFailed, err)
	}
	amount := entry.Amount
	e.ledger.Remove(caller.Address)
	e.logger.Info("Refund issued", "round", e.round.ID, "player", caller.Address, "amount", amount)
	e.bus.Publish(NewRefundIssuedEvent(e.round.ID, caller.Address, amount, now))
	return amount, nil
}

// ResetRound closes a revealed round and opens betting for the next
// one. Stakes still unclaimed at reset are swept into house profit, so
// every stake settles exactly once.
func (e *Engine) ResetRound(caller Caller) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Operator {
		return ErrUnauthorized
	}
	if err := e.round.requirePhase(Revealed); err != nil {
		return err
	}
	var swept int64
	for _, player := range e.ledger.Bettors() {
		if entry := e.ledger.Entry(player); !entry.PayoutClaimed {
			swept += entry.Amount
		}
	}
	e.treasury.Add(swept)
	closed := e.round.ID
	e.ledger.Reset()
	e.round.next()
	e.logger.Info("Round reset", "closed", closed, "next", e.round.ID, "swept", swept)
	e.bus.Publish(NewRoundResetEvent(closed, e.round.ID, swept, e.clock.Now()))
	return nil
}

// WithdrawProfit moves the accumulated house profit to the caller and
// returns the amount moved. The treasury is zeroed only after the
// transfer succeeds; zero or negative profit is a no-op.
func (e *Engine) WithdrawProfit(caller Caller) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caller.Operator {
		return 0, ErrUnauthorized
	}
	amount := e.treasury.Withdrawable()
	if amount == 0 {
		return 0, nil
	}
	if err := e.settler.Transfer(caller.Address, amount); err != nil {
		return 0, fmt.Errorf("%w: withdrawal: %v", ErrTransferFailed, err)
	}
	e.treasury.Add(-amount)
	e.logger.Info("Profit withdrawn", "recipient", caller.Address, "amount", amount)
	e.bus.Publish(NewProfitWithdrawnEvent(e.round.ID, caller.Address, amount, e.clock.Now()))
	return amount, nil
}

// State is a point-in-time snapshot of the public read surface.
type State struct {
	RoundID       uint64
	Phase         Phase
	CommittedHash string
	RevealedSeed  string
	CrashPoint    int64
	TotalBets     int64
	Bettors       int
	HouseProfit   int64
}

// State returns a consistent snapshot of the round and treasury.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		RoundID:       e.round.ID,
		Phase:         e.round.Phase,
		CommittedHash: e.round.CommittedHash,
		RevealedSeed:  e.round.RevealedSeed,
		CrashPoint:    e.round.CrashPoint,
		TotalBets:     e.ledger.Total(),
		Bettors:       e.ledger.Size(),
		HouseProfit:   e.treasury.Profit(),
	}
}

// Phase returns the current round phase.
func (e *Engine) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.round.Phase
}

// RoundID returns the active round's identity.
func (e *Engine) RoundID() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.round.ID
}

// CommittedHash returns the committed seed hash, empty before commit.
func (e *Engine) CommittedHash() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.round.CommittedHash
}

// CrashPoint returns the revealed crash point, zero before reveal.
func (e *Engine) CrashPoint() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.round.CrashPoint
}

// RevealedSeed returns the revealed seed, empty before reveal.
func (e *Engine) RevealedSeed() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.round.RevealedSeed
}

// HouseProfit returns the treasury balance.
func (e *Engine) HouseProfit() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.treasury.Profit()
}

// TotalBets returns the sum of active stakes.
func (e *Engine) TotalBets() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Total()
}

// BettorCount returns the number of active bettors.
func (e *Engine) BettorCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Size()
}

// Bettors returns the active registry. Order is not meaningful after a
// refund.
func (e *Engine) Bettors() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Bettors()
}

// BetStatus is the public view of one player's entry.
type BetStatus struct {
	Amount        int64
	CashedOut     bool
	CashoutTime   time.Time
	PayoutClaimed bool
}

// BetOf returns the status of a player's bet in the active round.
func (e *Engine) BetOf(player string) (BetStatus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry := e.ledger.Entry(player)
	if entry == nil {
		return BetStatus{}, false
	}
	return BetStatus{
		Amount:        entry.Amount,
		CashedOut:     entry.CashedOut,
		CashoutTime:   entry.CashoutTime,
		PayoutClaimed: entry.PayoutClaimed,
	}, true
}
