package curation

import (
	"errors"
	"math/big"
)

var (
	errInvalidTotal    = errors.New("curation params: total supply estimate must be positive")
	errInvalidCeiling  = errors.New("curation params: ceiling must be positive")
	errInvalidDecimals = errors.New("curation params: decimals must be positive")
	errInvalidMax      = errors.New("curation params: derived maximum stake is zero")
)

// Params holds the bonding-curve constants fixed at construction. Max is the
// theoretical per-entry stake bound derived from the supply estimate and the
// ceiling; SafeMax is the enforced bound, kept at 98% of Max so the rate never
// reaches zero and the curve math keeps headroom.
type Params struct {
	Total    *big.Int
	Ceiling  *big.Int
	Decimals *big.Int
	Max      *big.Int
	SafeMax  *big.Int
}

// NewParams validates the raw curve constants and derives Max and SafeMax.
func NewParams(total, ceiling, decimals *big.Int) (*Params, error) {
	if total == nil || total.Sign() <= 0 {
		return nil, errInvalidTotal
	}
	if ceiling == nil || ceiling.Sign() <= 0 {
		return nil, errInvalidCeiling
	}
	if decimals == nil || decimals.Sign() <= 0 {
		return nil, errInvalidDecimals
	}
	max := new(big.Int).Mul(total, ceiling)
	max.Div(max, decimals)
	if max.Sign() <= 0 {
		return nil, errInvalidMax
	}
	safeMax := new(big.Int).Mul(max, big.NewInt(98))
	safeMax.Div(safeMax, big.NewInt(100))
	if safeMax.Sign() <= 0 {
		return nil, errInvalidMax
	}
	return &Params{
		Total:    new(big.Int).Set(total),
		Ceiling:  new(big.Int).Set(ceiling),
		Decimals: new(big.Int).Set(decimals),
		Max:      max,
		SafeMax:  safeMax,
	}, nil
}

// Entry is one curated identifier with its curve-derived ranking state. The
// EffectiveBalance is the externally visible ranking score; the remaining
// fields are the interlocking curve quantities recomputed on every mutation.
type Entry struct {
	Owner            [20]byte `json:"owner"`
	ID               [32]byte `json:"id"`
	Balance          *big.Int `json:"balance"`
	Rate             *big.Int `json:"rate"`
	Available        *big.Int `json:"available"`
	VotesMinted      *big.Int `json:"votesMinted"`
	VotesCast        *big.Int `json:"votesCast"`
	EffectiveBalance *big.Int `json:"effectiveBalance"`
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Balance = cloneBigInt(e.Balance)
	clone.Rate = cloneBigInt(e.Rate)
	clone.Available = cloneBigInt(e.Available)
	clone.VotesMinted = cloneBigInt(e.VotesMinted)
	clone.VotesCast = cloneBigInt(e.VotesCast)
	clone.EffectiveBalance = cloneBigInt(e.EffectiveBalance)
	return &clone
}

// DownvoteQuote prices the removal of exactly 1% of an entry's effective
// balance at the moment it was computed.
type DownvoteQuote struct {
	BalanceDownBy *big.Int `json:"balanceDownBy"`
	VotesRequired *big.Int `json:"votesRequired"`
	Cost          *big.Int `json:"cost"`
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
