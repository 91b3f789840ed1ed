// Package bank provides the in-memory settlement ledger backing the
// round engine. Player accounts and the house float are plain balances;
// no balance ever goes negative, so an underfunded transfer fails
// instead of overdrawing.
package bank

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInsufficientFunds indicates the debited account cannot cover
	// the amount.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")

	// ErrInvalidAmount indicates a zero or negative amount.
	ErrInvalidAmount = errors.New("bank: invalid amount")

	// ErrDeclined indicates an injected settlement failure.
	ErrDeclined = errors.New("bank: declined")
)

// Bank is an in-memory settlement ledger: player accounts keyed by
// address plus a house account. Collect moves a stake from a player to
// the house; Transfer moves value from the house to a recipient. Both
// are safe to call from the engine's critical section as the bank never
// calls back.
type Bank struct {
	mu       sync.Mutex
	accounts map[string]int64
	house    int64
	failNext int
}

// New creates a bank with the given house float in base units.
func New(houseFloat int64) *Bank {
	return &Bank{
		accounts: make(map[string]int64),
		house:    houseFloat,
	}
}

// Deposit credits a player account.
func (b *Bank) Deposit(address string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[address] += amount
	return nil
}

// Balance returns a player's balance, zero for unknown addresses.
func (b *Bank) Balance(address string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[address]
}

// HouseBalance returns the house float.
func (b *Bank) HouseBalance() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.house
}

// Collect debits a player account and credits the house.
func (b *Bank) Collect(player string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext > 0 {
		b.failNext--
		return ErrDeclined
	}
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if b.accounts[player] < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, player, b.accounts[player], amount)
	}
	b.accounts[player] -= amount
	b.house += amount
	return nil
}

// Transfer debits the house and credits a recipient account.
func (b *Bank) Transfer(recipient string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext > 0 {
		b.failNext--
		return ErrDeclined
	}
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if b.house < amount {
		return fmt.Errorf("%w: house has %d, need %d", ErrInsufficientFunds, b.house, amount)
	}
	b.house -= amount
	b.accounts[recipient] += amount
	return nil
}

// FailNext makes the next n Collect or Transfer calls fail with
// ErrDeclined, leaving balances untouched. Used to exercise the
// engine's retry paths.
func (b *Bank) FailNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = n
}
