package launchpad

import (
	"math"
	"math/bits"

	"github.com/holiman/uint256"
)

func checkedMul(a, b uint64) (uint64, error) {
	z, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !z.IsUint64() {
		return 0, ErrNumberOverflow
	}
	return z.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrNumberOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrNumberOverflow
	}
	return diff, nil
}

// checkedMulDiv returns floor(a*b/d). The product is formed in 256 bits so
// only a quotient that does not fit in uint64 is an overflow.
func checkedMulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrNumberOverflow
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient := new(uint256.Int).Div(product, uint256.NewInt(d))
	if !quotient.IsUint64() {
		return 0, ErrNumberOverflow
	}
	return quotient.Uint64(), nil
}

func checkedAddInt64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrNumberOverflow
	}
	return a + b, nil
}

func checkedSubInt64(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, ErrNumberOverflow
	}
	return a - b, nil
}
