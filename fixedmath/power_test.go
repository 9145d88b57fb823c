package fixedmath

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
)

func floorPower(t *testing.T, baseN, baseD, expN, expD uint64) *big.Int {
	t.Helper()
	mantissa, shift, err := Power(
		uint256.NewInt(baseN), uint256.NewInt(baseD),
		uint256.NewInt(expN), uint256.NewInt(expD),
	)
	if err != nil {
		t.Fatalf("power(%d/%d)^(%d/%d): %v", baseN, baseD, expN, expD, err)
	}
	return new(big.Int).Rsh(mantissa.ToBig(), shift)
}

func TestPowerExactCases(t *testing.T) {
	cases := []struct {
		baseN, baseD, expN, expD uint64
		want                     int64
	}{
		{1, 1, 1, 1, 1},
		{7, 7, 3, 5, 1},    // base one
		{12345, 1, 0, 1, 1}, // exponent zero
		{4, 1, 1, 2, 2},
		{8, 1, 2, 3, 4},
		{16, 1, 3, 4, 8},
		{1024, 1, 1, 1, 1024},
		{256, 4, 1, 2, 8},
	}
	for _, tc := range cases {
		got := floorPower(t, tc.baseN, tc.baseD, tc.expN, tc.expD)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("(%d/%d)^(%d/%d) = %s, want %d", tc.baseN, tc.baseD, tc.expN, tc.expD, got, tc.want)
		}
	}
}

func TestPowerTruncatesFromBelow(t *testing.T) {
	// Irrational results truncate toward zero, so x^1 lands on x or just
	// beneath it, never above.
	for _, x := range []uint64{3, 5, 7, 999, 509959, 1 << 40} {
		mantissa, shift, err := Power(uint256.NewInt(x), uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(1))
		if err != nil {
			t.Fatalf("power(%d^1): %v", x, err)
		}
		exact := new(big.Int).Lsh(new(big.Int).SetUint64(x), shift)
		got := mantissa.ToBig()
		if got.Cmp(exact) > 0 {
			t.Fatalf("%d^1 overshoots: got %s want <= %s", x, got, exact)
		}
		slack := new(big.Int).Lsh(big.NewInt(1), shift-64)
		if diff := new(big.Int).Sub(exact, got); diff.Cmp(slack) > 0 {
			t.Fatalf("%d^1 undershoots by %s (slack %s)", x, diff, slack)
		}
	}
}

func TestPowerSquareRootOfTwo(t *testing.T) {
	mantissa, shift, err := Power(uint256.NewInt(2), uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(2))
	if err != nil {
		t.Fatalf("power(2^1/2): %v", err)
	}
	// Squaring the mantissa should land just below 2 in the same fixed point.
	square := new(big.Int).Mul(mantissa.ToBig(), mantissa.ToBig())
	square.Rsh(square, shift)
	two := new(big.Int).Lsh(big.NewInt(2), shift)
	if square.Cmp(two) > 0 {
		t.Fatalf("sqrt(2) overshoots: %s > %s", square, two)
	}
	slack := new(big.Int).Lsh(big.NewInt(1), shift-64)
	if diff := new(big.Int).Sub(two, square); diff.Cmp(slack) > 0 {
		t.Fatalf("sqrt(2) off by %s (slack %s)", diff, slack)
	}
}

func TestPowerMonotonicInBase(t *testing.T) {
	prev := big.NewInt(0)
	for base := uint64(100); base <= 200; base += 10 {
		got := floorPower(t, base, 1, 1, 2)
		if got.Cmp(prev) < 0 {
			t.Fatalf("power not monotonic at base %d: %s < %s", base, got, prev)
		}
		prev = got
	}
}

func TestPowerArgumentErrors(t *testing.T) {
	one := uint256.NewInt(1)
	if _, _, err := Power(one, uint256.NewInt(0), one, one); !errors.Is(err, ErrZeroDenominator) {
		t.Fatalf("expected zero denominator error, got %v", err)
	}
	if _, _, err := Power(one, one, one, uint256.NewInt(0)); !errors.Is(err, ErrZeroDenominator) {
		t.Fatalf("expected zero denominator error, got %v", err)
	}
	if _, _, err := Power(one, uint256.NewInt(2), one, one); !errors.Is(err, ErrBaseTooSmall) {
		t.Fatalf("expected base-too-small error, got %v", err)
	}
	if _, _, err := Power(nil, one, one, one); !errors.Is(err, ErrNilOperand) {
		t.Fatalf("expected nil operand error, got %v", err)
	}
	huge := new(uint256.Int).Lsh(one, 130)
	if _, _, err := Power(huge, one, one, one); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}
