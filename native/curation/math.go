package curation

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"dappstore/fixedmath"
)

// curve carries the parameters as 256-bit integers so every formula runs on
// explicit overflow-checked arithmetic instead of wrapping silently.
type curve struct {
	decimals *uint256.Int
	max      *uint256.Int
	safeMax  *uint256.Int
}

// curvePoint is the tuple of quantities derived from a candidate balance.
type curvePoint struct {
	balance     *uint256.Int
	rate        *uint256.Int
	available   *uint256.Int
	votesMinted *uint256.Int
}

func newCurve(p *Params) (*curve, error) {
	decimals, err := toU256(p.Decimals)
	if err != nil {
		return nil, err
	}
	max, err := toU256(p.Max)
	if err != nil {
		return nil, err
	}
	safeMax, err := toU256(p.SafeMax)
	if err != nil {
		return nil, err
	}
	return &curve{decimals: decimals, max: max, safeMax: safeMax}, nil
}

// evaluate recomputes rate, available and votesMinted for a candidate balance:
//
//	rate      = decimals - balance*decimals/max
//	available = balance*rate
//	votes     = floor(power(available, decimals, decimals, rate))
func (c *curve) evaluate(balance *uint256.Int) (*curvePoint, error) {
	consumed, overflow := new(uint256.Int).MulOverflow(balance, c.decimals)
	if overflow {
		return nil, ErrArithmetic
	}
	consumed.Div(consumed, c.max)
	rate := new(uint256.Int)
	if _, underflow := rate.SubOverflow(c.decimals, consumed); underflow {
		return nil, ErrArithmetic
	}
	if rate.IsZero() {
		return nil, ErrArithmetic
	}
	available, overflow := new(uint256.Int).MulOverflow(balance, rate)
	if overflow {
		return nil, ErrArithmetic
	}
	votesMinted := new(uint256.Int)
	if available.Cmp(c.decimals) >= 0 {
		mantissa, shift, err := fixedmath.Power(available, c.decimals, c.decimals, rate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArithmetic, err)
		}
		votesMinted.Rsh(mantissa, shift)
	}
	// Bases below one raise to less than one and floor to zero votes.
	return &curvePoint{
		balance:     balance.Clone(),
		rate:        rate,
		available:   available,
		votesMinted: votesMinted,
	}, nil
}

// effectiveBalance applies the vote-dilution formula at the supplied point:
//
//	effect = votesCast*rate*available / (votesMinted*decimals*decimals)
//
// and returns balance - effect. With no votes cast there is nothing to dilute.
func (c *curve) effectiveBalance(pt *curvePoint, votesCast *uint256.Int) (*uint256.Int, error) {
	if votesCast.IsZero() {
		return pt.balance.Clone(), nil
	}
	if pt.votesMinted.IsZero() {
		return nil, ErrArithmetic
	}
	num, overflow := new(uint256.Int).MulOverflow(votesCast, pt.rate)
	if overflow {
		return nil, ErrArithmetic
	}
	if num, overflow = num.MulOverflow(num, pt.available); overflow {
		return nil, ErrArithmetic
	}
	den, overflow := new(uint256.Int).MulOverflow(pt.votesMinted, c.decimals)
	if overflow {
		return nil, ErrArithmetic
	}
	if den, overflow = den.MulOverflow(den, c.decimals); overflow {
		return nil, ErrArithmetic
	}
	effect := new(uint256.Int).Div(num, den)
	effective := new(uint256.Int)
	if _, underflow := effective.SubOverflow(pt.balance, effect); underflow {
		return nil, ErrArithmetic
	}
	return effective, nil
}

// downvoteQuote prices the removal of exactly 1% of the entry's effective
// balance. The cost grows as the remaining vote headroom shrinks; exhausted
// headroom surfaces as an arithmetic error instead of a division fault.
func (c *curve) downvoteQuote(e *entryCurveState) (*DownvoteQuote, error) {
	balanceDownBy := new(uint256.Int).Div(e.effective, uint256.NewInt(100))
	if e.available.IsZero() {
		return nil, ErrArithmetic
	}
	votesRequired, overflow := new(uint256.Int).MulOverflow(balanceDownBy, e.votesMinted)
	if overflow {
		return nil, ErrArithmetic
	}
	if votesRequired, overflow = votesRequired.MulOverflow(votesRequired, e.rate); overflow {
		return nil, ErrArithmetic
	}
	votesRequired.Div(votesRequired, e.available)

	votesAvailable := new(uint256.Int)
	if _, underflow := votesAvailable.SubOverflow(e.votesMinted, e.votesCast); underflow {
		return nil, ErrArithmetic
	}
	if _, underflow := votesAvailable.SubOverflow(votesAvailable, votesRequired); underflow {
		return nil, ErrArithmetic
	}
	if votesAvailable.IsZero() {
		return nil, ErrArithmetic
	}

	cost := new(uint256.Int).Div(e.available, votesAvailable)
	if cost, overflow = cost.MulOverflow(cost, votesRequired); overflow {
		return nil, ErrArithmetic
	}
	cost.Div(cost, c.decimals)

	return &DownvoteQuote{
		BalanceDownBy: balanceDownBy.ToBig(),
		VotesRequired: votesRequired.ToBig(),
		Cost:          cost.ToBig(),
	}, nil
}

// entryCurveState mirrors an entry's curve quantities in 256-bit form.
type entryCurveState struct {
	balance     *uint256.Int
	rate        *uint256.Int
	available   *uint256.Int
	votesMinted *uint256.Int
	votesCast   *uint256.Int
	effective   *uint256.Int
}

func entryState(e *Entry) (*entryCurveState, error) {
	balance, err := toU256(e.Balance)
	if err != nil {
		return nil, err
	}
	rate, err := toU256(e.Rate)
	if err != nil {
		return nil, err
	}
	available, err := toU256(e.Available)
	if err != nil {
		return nil, err
	}
	votesMinted, err := toU256(e.VotesMinted)
	if err != nil {
		return nil, err
	}
	votesCast, err := toU256(e.VotesCast)
	if err != nil {
		return nil, err
	}
	effective, err := toU256(e.EffectiveBalance)
	if err != nil {
		return nil, err
	}
	return &entryCurveState{
		balance:     balance,
		rate:        rate,
		available:   available,
		votesMinted: votesMinted,
		votesCast:   votesCast,
		effective:   effective,
	}, nil
}

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, ErrArithmetic
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrArithmetic
	}
	return u, nil
}
