// Package fixedmath provides the fixed-point exponentiation primitive used by
// the curation bonding curve. All arithmetic is integer-only so results are
// identical across platforms.
package fixedmath

import (
	"errors"

	"github.com/holiman/uint256"
)

// Precision is the number of binary fraction bits carried through the
// approximation. Power results are interpreted as mantissa / 2^shift.
const Precision = 127

var (
	// ErrNilOperand is returned when any operand is nil.
	ErrNilOperand = errors.New("fixedmath: nil operand")
	// ErrZeroDenominator is returned when a denominator is zero.
	ErrZeroDenominator = errors.New("fixedmath: zero denominator")
	// ErrBaseTooSmall is returned when the base is below one; the curve only
	// ever evaluates bases at or above one.
	ErrBaseTooSmall = errors.New("fixedmath: base must be at least one")
	// ErrOverflow is returned when an intermediate value exceeds 256 bits.
	ErrOverflow = errors.New("fixedmath: value exceeds 256 bits")
)

// Power approximates (baseN/baseD)^(expN/expD) and returns the result as a
// mantissa plus a binary shift such that the true value is close to
// mantissa >> shift. The approximation truncates toward zero. It requires
// baseN >= baseD > 0 and expD > 0.
func Power(baseN, baseD, expN, expD *uint256.Int) (*uint256.Int, uint, error) {
	if baseN == nil || baseD == nil || expN == nil || expD == nil {
		return nil, 0, ErrNilOperand
	}
	if baseD.IsZero() || expD.IsZero() {
		return nil, 0, ErrZeroDenominator
	}
	if baseN.Lt(baseD) {
		return nil, 0, ErrBaseTooSmall
	}
	one := fixedOne()
	if expN.IsZero() || baseN.Eq(baseD) {
		return one, Precision, nil
	}

	logBase, err := log2(baseN, baseD)
	if err != nil {
		return nil, 0, err
	}
	exp, overflow := new(uint256.Int).MulOverflow(logBase, expN)
	if overflow {
		return nil, 0, ErrOverflow
	}
	exp.Div(exp, expD)

	intPart := new(uint256.Int).Rsh(exp, Precision)
	if !intPart.IsUint64() || intPart.Uint64() >= 128 {
		return nil, 0, ErrOverflow
	}
	frac := new(uint256.Int).And(exp, new(uint256.Int).Sub(one, uint256.NewInt(1)))

	mantissa, err := exp2Frac(frac)
	if err != nil {
		return nil, 0, err
	}
	shiftUp := uint(intPart.Uint64())
	if mantissa.BitLen()+int(shiftUp) > 256 {
		return nil, 0, ErrOverflow
	}
	mantissa.Lsh(mantissa, shiftUp)
	return mantissa, Precision, nil
}

// log2 computes log2(n/d) for n >= d in Precision-bit fixed point using the
// classic normalize-then-square digit extraction.
func log2(n, d *uint256.Int) (*uint256.Int, error) {
	if n.BitLen()+Precision > 256 {
		return nil, ErrOverflow
	}
	x := new(uint256.Int).Lsh(n, Precision)
	x.Div(x, d)

	two := new(uint256.Int).Lsh(uint256.NewInt(1), Precision+1)
	var intPart uint64
	for x.Cmp(two) >= 0 {
		x.Rsh(x, 1)
		intPart++
	}

	res := new(uint256.Int).Lsh(uint256.NewInt(intPart), Precision)
	bit := new(uint256.Int).Lsh(uint256.NewInt(1), Precision-1)
	one := fixedOne()
	for i := 0; i < Precision; i++ {
		if x.Eq(one) {
			break
		}
		// x is normalized to [1, 2), so the square stays under 256 bits.
		x.Mul(x, x)
		x.Rsh(x, Precision)
		if x.Cmp(two) >= 0 {
			x.Rsh(x, 1)
			res.Or(res, bit)
		}
		bit.Rsh(bit, 1)
	}
	return res, nil
}

// exp2Frac computes 2^(frac/2^Precision) for frac in [0, 2^Precision) by
// combining iterated square roots of two with binary exponentiation.
func exp2Frac(frac *uint256.Int) (*uint256.Int, error) {
	one := fixedOne()
	r := one.Clone()
	if frac.IsZero() {
		return r, nil
	}
	v := new(uint256.Int).Lsh(uint256.NewInt(1), Precision+1) // 2.0
	bit := new(uint256.Int).Lsh(uint256.NewInt(1), Precision-1)
	for i := 0; i < Precision; i++ {
		// v walks down the chain 2^(1/2), 2^(1/4), ...
		v.Sqrt(new(uint256.Int).Lsh(v, Precision))
		if !new(uint256.Int).And(frac, bit).IsZero() {
			r.Mul(r, v)
			r.Rsh(r, Precision)
		}
		if v.Eq(one) {
			break
		}
		bit.Rsh(bit, 1)
	}
	return r, nil
}

func fixedOne() *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), Precision)
}
