package curation

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"dappstore/core/events"
)

// TokenAdapter provides escrow semantics for moving staked tokens in and out
// of the module's custody. Implementations must serialize balance mutations
// per account.
type TokenAdapter interface {
	AllowanceOf(owner [20]byte) (*big.Int, error)
	Escrow(owner [20]byte, amount *big.Int) error
	Release(recipient [20]byte, amount *big.Int) error
}

type engineState interface {
	CurationEntryGet(id [32]byte) (*Entry, bool, error)
	CurationEntryPut(entry *Entry) error
	CurationEntryList() ([]*Entry, error)
}

// Engine implements the stake-weighted curation operations over the entry
// ledger. Each mutating call locks its entry id for the duration of the
// operation, so concurrent calls against distinct entries proceed in parallel
// while calls against the same entry serialize.
type Engine struct {
	params  *Params
	curve   *curve
	state   engineState
	token   TokenAdapter
	emitter events.Emitter
	locks   sync.Map // entry id -> *sync.Mutex
}

// NewEngine constructs a curation engine bound to the supplied curve
// parameters.
func NewEngine(params *Params) (*Engine, error) {
	if params == nil {
		return nil, errNilParams
	}
	curve, err := newCurve(params)
	if err != nil {
		return nil, err
	}
	return &Engine{
		params:  params,
		curve:   curve,
		emitter: events.NoopEmitter{},
	}, nil
}

// SetState configures the entry ledger backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken configures the token adapter used for escrow movements.
func (e *Engine) SetToken(token TokenAdapter) { e.token = token }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Params returns the curve parameters the engine was constructed with.
func (e *Engine) Params() *Params {
	return &Params{
		Total:    cloneBigInt(e.params.Total),
		Ceiling:  cloneBigInt(e.params.Ceiling),
		Decimals: cloneBigInt(e.params.Decimals),
		Max:      cloneBigInt(e.params.Max),
		SafeMax:  cloneBigInt(e.params.SafeMax),
	}
}

// Create curates a new identifier with an initial stake escrowed from the
// caller. The full stake counts toward the ranking because no votes have been
// cast yet.
func (e *Engine) Create(caller [20]byte, id [32]byte, amount *big.Int) (*Entry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	unlock := e.lockEntry(id)
	defer unlock()

	if _, ok, err := e.state.CurationEntryGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrEntryExists
	}
	stake, err := toU256(amount)
	if err != nil {
		return nil, err
	}
	if stake.Cmp(e.curve.safeMax) >= 0 {
		return nil, ErrExceedsCeiling
	}
	pt, err := e.curve.evaluate(stake)
	if err != nil {
		return nil, err
	}
	entry := &Entry{
		Owner:            caller,
		ID:               id,
		Balance:          new(big.Int).Set(amount),
		Rate:             pt.rate.ToBig(),
		Available:        pt.available.ToBig(),
		VotesMinted:      pt.votesMinted.ToBig(),
		VotesCast:        big.NewInt(0),
		EffectiveBalance: new(big.Int).Set(amount),
	}
	if err := e.checkInvariants(entry); err != nil {
		return nil, err
	}
	if err := e.escrowFrom(caller, amount); err != nil {
		return nil, err
	}
	if err := e.state.CurationEntryPut(entry); err != nil {
		_ = e.token.Release(caller, amount)
		return nil, err
	}
	e.emit(EntryCreated{
		ID:               id,
		Owner:            caller,
		VotesMinted:      cloneBigInt(entry.VotesMinted),
		EffectiveBalance: cloneBigInt(entry.EffectiveBalance),
	})
	return entry.Clone(), nil
}

// UpvotePreview reports how much the entry's effective balance would grow if
// the supplied stake were added. It performs the full curve computation but
// mutates nothing and moves no tokens.
func (e *Engine) UpvotePreview(id [32]byte, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	entry, err := e.loadEntry(id)
	if err != nil {
		return nil, err
	}
	cur, err := entryState(entry)
	if err != nil {
		return nil, err
	}
	add, err := toU256(amount)
	if err != nil {
		return nil, err
	}
	newBalance, overflow := new(uint256.Int).AddOverflow(cur.balance, add)
	if overflow {
		return nil, ErrArithmetic
	}
	if newBalance.Cmp(e.curve.safeMax) >= 0 {
		return nil, ErrExceedsCeiling
	}
	if cur.votesCast.IsZero() {
		// Nothing has been diluted yet, so stake converts one to one.
		return new(big.Int).Set(amount), nil
	}
	pt, err := e.curve.evaluate(newBalance)
	if err != nil {
		return nil, err
	}
	effective, err := e.curve.effectiveBalance(pt, cur.votesCast)
	if err != nil {
		return nil, err
	}
	delta := new(uint256.Int)
	if _, underflow := delta.SubOverflow(effective, cur.effective); underflow {
		return nil, ErrArithmetic
	}
	return delta.ToBig(), nil
}

// Upvote adds stake behind an existing entry, recomputing the curve tuple at
// the higher balance and escrowing the stake from the caller.
func (e *Engine) Upvote(caller [20]byte, id [32]byte, amount *big.Int) (*Entry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	unlock := e.lockEntry(id)
	defer unlock()

	entry, err := e.loadEntry(id)
	if err != nil {
		return nil, err
	}
	cur, err := entryState(entry)
	if err != nil {
		return nil, err
	}
	add, err := toU256(amount)
	if err != nil {
		return nil, err
	}
	newBalance, overflow := new(uint256.Int).AddOverflow(cur.balance, add)
	if overflow {
		return nil, ErrArithmetic
	}
	if newBalance.Cmp(e.curve.safeMax) >= 0 {
		return nil, ErrExceedsCeiling
	}
	pt, err := e.curve.evaluate(newBalance)
	if err != nil {
		return nil, err
	}
	effective, err := e.curve.effectiveBalance(pt, cur.votesCast)
	if err != nil {
		return nil, err
	}
	entry.Balance = newBalance.ToBig()
	entry.Rate = pt.rate.ToBig()
	entry.Available = pt.available.ToBig()
	entry.VotesMinted = pt.votesMinted.ToBig()
	entry.EffectiveBalance = effective.ToBig()
	if err := e.checkInvariants(entry); err != nil {
		return nil, err
	}
	if err := e.escrowFrom(caller, amount); err != nil {
		return nil, err
	}
	if err := e.state.CurationEntryPut(entry); err != nil {
		_ = e.token.Release(caller, amount)
		return nil, err
	}
	e.emit(EntryUpvoted{ID: id, EffectiveBalance: cloneBigInt(entry.EffectiveBalance)})
	return entry.Clone(), nil
}

// DownvoteCost prices the removal of exactly 1% of the entry's current
// effective balance. The quote is recomputed from live state on every call.
func (e *Engine) DownvoteCost(id [32]byte) (*DownvoteQuote, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	entry, err := e.loadEntry(id)
	if err != nil {
		return nil, err
	}
	st, err := entryState(entry)
	if err != nil {
		return nil, err
	}
	return e.curve.downvoteQuote(st)
}

// Downvote removes exactly 1% of the entry's effective balance. The caller
// must pay the freshly computed cost to the token's cent; the payment is
// escrowed from the caller and forwarded to the entry owner.
func (e *Engine) Downvote(caller [20]byte, id [32]byte, amount *big.Int) (*Entry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	unlock := e.lockEntry(id)
	defer unlock()

	entry, err := e.loadEntry(id)
	if err != nil {
		return nil, err
	}
	st, err := entryState(entry)
	if err != nil {
		return nil, err
	}
	quote, err := e.curve.downvoteQuote(st)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(quote.Cost) != 0 {
		return nil, ErrAmountMismatch
	}
	cost, err := toU256(amount)
	if err != nil {
		return nil, err
	}
	votesRequired, err := toU256(quote.VotesRequired)
	if err != nil {
		return nil, err
	}
	balanceDownBy, err := toU256(quote.BalanceDownBy)
	if err != nil {
		return nil, err
	}
	newAvailable := new(uint256.Int)
	if _, underflow := newAvailable.SubOverflow(st.available, cost); underflow {
		return nil, ErrArithmetic
	}
	newVotesCast, overflow := new(uint256.Int).AddOverflow(st.votesCast, votesRequired)
	if overflow {
		return nil, ErrArithmetic
	}
	newEffective := new(uint256.Int)
	if _, underflow := newEffective.SubOverflow(st.effective, balanceDownBy); underflow {
		return nil, ErrArithmetic
	}
	prev := entry.Clone()
	entry.Available = newAvailable.ToBig()
	entry.VotesCast = newVotesCast.ToBig()
	entry.EffectiveBalance = newEffective.ToBig()
	if err := e.checkInvariants(entry); err != nil {
		return nil, err
	}
	if err := e.escrowFrom(caller, amount); err != nil {
		return nil, err
	}
	if err := e.state.CurationEntryPut(entry); err != nil {
		_ = e.token.Release(caller, amount)
		return nil, err
	}
	if err := e.token.Release(entry.Owner, amount); err != nil {
		// Forwarding the payment failed: restore the ledger and refund.
		_ = e.state.CurationEntryPut(prev)
		_ = e.token.Release(caller, amount)
		return nil, fmt.Errorf("%w: %v", ErrEscrow, err)
	}
	e.emit(EntryDownvoted{ID: id, EffectiveBalance: cloneBigInt(entry.EffectiveBalance)})
	return entry.Clone(), nil
}

// Withdraw returns unlocked stake to the entry owner. Shrinking the balance
// can shrink the total vote supply below what downvoters already cast, in
// which case the cast votes are clamped down to the new supply.
func (e *Engine) Withdraw(caller [20]byte, id [32]byte, amount *big.Int) (*Entry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	unlock := e.lockEntry(id)
	defer unlock()

	entry, err := e.loadEntry(id)
	if err != nil {
		return nil, err
	}
	if entry.Owner != caller {
		return nil, ErrNotOwner
	}
	st, err := entryState(entry)
	if err != nil {
		return nil, err
	}
	amt, err := toU256(amount)
	if err != nil {
		return nil, err
	}
	if amt.Cmp(st.available) > 0 {
		return nil, ErrExceedsAvailable
	}
	newBalance := new(uint256.Int)
	if _, underflow := newBalance.SubOverflow(st.balance, amt); underflow {
		return nil, ErrArithmetic
	}
	pt, err := e.curve.evaluate(newBalance)
	if err != nil {
		return nil, err
	}
	votesCast := st.votesCast.Clone()
	if votesCast.Cmp(pt.votesMinted) > 0 {
		votesCast = pt.votesMinted.Clone()
	}
	effective, err := e.curve.effectiveBalance(pt, votesCast)
	if err != nil {
		return nil, err
	}
	prev := entry.Clone()
	entry.Balance = newBalance.ToBig()
	entry.Rate = pt.rate.ToBig()
	entry.Available = pt.available.ToBig()
	entry.VotesMinted = pt.votesMinted.ToBig()
	entry.VotesCast = votesCast.ToBig()
	entry.EffectiveBalance = effective.ToBig()
	if err := e.checkInvariants(entry); err != nil {
		return nil, err
	}
	if err := e.state.CurationEntryPut(entry); err != nil {
		return nil, err
	}
	if err := e.token.Release(caller, amount); err != nil {
		_ = e.state.CurationEntryPut(prev)
		return nil, fmt.Errorf("%w: %v", ErrEscrow, err)
	}
	e.emit(EntryWithdrawn{ID: id, EffectiveBalance: cloneBigInt(entry.EffectiveBalance)})
	return entry.Clone(), nil
}

// Entry returns a clone of a single curated entry.
func (e *Engine) Entry(id [32]byte) (*Entry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadEntry(id)
}

// Entries returns clones of every curated entry in insertion order.
func (e *Engine) Entries() ([]*Entry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	entries, err := e.state.CurationEntryList()
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Clone())
	}
	return out, nil
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.token == nil {
		return errNilToken
	}
	return nil
}

func (e *Engine) lockEntry(id [32]byte) func() {
	v, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) loadEntry(id [32]byte) (*Entry, error) {
	entry, ok, err := e.state.CurationEntryGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || entry == nil {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

// escrowFrom verifies the caller's allowance and pulls the stake into custody.
func (e *Engine) escrowFrom(caller [20]byte, amount *big.Int) error {
	allowance, err := e.token.AllowanceOf(caller)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEscrow, err)
	}
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := e.token.Escrow(caller, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrEscrow, err)
	}
	return nil
}

// checkInvariants enforces the structural invariant shared by every mutating
// operation: 0 <= votesCast <= votesMinted and
// 0 <= effectiveBalance <= balance < safeMax.
func (e *Engine) checkInvariants(entry *Entry) error {
	if entry == nil || entry.Balance == nil || entry.VotesCast == nil ||
		entry.VotesMinted == nil || entry.EffectiveBalance == nil {
		return errCorruptEntry
	}
	if entry.VotesCast.Sign() < 0 || entry.VotesCast.Cmp(entry.VotesMinted) > 0 {
		return errCorruptEntry
	}
	if entry.EffectiveBalance.Sign() < 0 || entry.EffectiveBalance.Cmp(entry.Balance) > 0 {
		return errCorruptEntry
	}
	if entry.Balance.Sign() < 0 || entry.Balance.Cmp(e.params.SafeMax) >= 0 {
		return errCorruptEntry
	}
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}
