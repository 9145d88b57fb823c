// Package token provides the fungible-token ledger consumed by the curation
// engine for escrow movements. It is an in-process stand-in for the external
// token contract: balances, allowances granted to the curation module, and
// the module's escrow custody.
package token

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// ErrInvalidAmount rejects nil, zero or negative transfer amounts.
	ErrInvalidAmount = errors.New("token ledger: amount must be positive")
	// ErrInsufficientBalance is returned when an account cannot cover a debit.
	ErrInsufficientBalance = errors.New("token ledger: insufficient balance")
	// ErrInsufficientAllowance is returned when an escrow exceeds the
	// authorization granted to the module.
	ErrInsufficientAllowance = errors.New("token ledger: insufficient allowance")
	// ErrInsufficientCustody is returned when a release exceeds the escrowed
	// total, which indicates ledger corruption.
	ErrInsufficientCustody = errors.New("token ledger: release exceeds custody")
)

// Ledger tracks account balances and module allowances. All mutations are
// serialized by a single mutex, mirroring the per-account serialization the
// escrow abstraction requires.
type Ledger struct {
	mu         sync.Mutex
	balances   map[[20]byte]*big.Int
	allowances map[[20]byte]*big.Int
	custody    *big.Int
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[[20]byte]*big.Int),
		custody:    big.NewInt(0),
	}
}

// Mint credits freshly issued tokens to an account.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = new(big.Int).Add(l.balance(addr), amount)
	return nil
}

// Approve authorizes the curation module to escrow up to amount from owner,
// replacing any previous authorization.
func (l *Ledger) Approve(owner [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[owner] = new(big.Int).Set(amount)
	return nil
}

// BalanceOf reports the spendable balance of an account.
func (l *Ledger) BalanceOf(addr [20]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(addr))
}

// Custody reports the total currently held in escrow by the module.
func (l *Ledger) Custody() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.custody)
}

// AllowanceOf reports the remaining authorization granted to the module.
func (l *Ledger) AllowanceOf(owner [20]byte) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowance(owner)), nil
}

// Escrow moves amount from the owner's balance into module custody, consuming
// the matching allowance. The balance, allowance and custody updates commit
// together or not at all.
func (l *Ledger) Escrow(owner [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.balance(owner)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	allowance := l.allowance(owner)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	l.balances[owner] = new(big.Int).Sub(balance, amount)
	l.allowances[owner] = new(big.Int).Sub(allowance, amount)
	l.custody = new(big.Int).Add(l.custody, amount)
	return nil
}

// Release pays amount out of module custody to the recipient.
func (l *Ledger) Release(recipient [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.custody.Cmp(amount) < 0 {
		return ErrInsufficientCustody
	}
	l.custody = new(big.Int).Sub(l.custody, amount)
	l.balances[recipient] = new(big.Int).Add(l.balance(recipient), amount)
	return nil
}

func (l *Ledger) balance(addr [20]byte) *big.Int {
	if v, ok := l.balances[addr]; ok && v != nil {
		return v
	}
	return big.NewInt(0)
}

func (l *Ledger) allowance(owner [20]byte) *big.Int {
	if v, ok := l.allowances[owner]; ok && v != nil {
		return v
	}
	return big.NewInt(0)
}
